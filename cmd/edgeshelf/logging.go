package main

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/sagarc03/edgeshelf/config"
)

// installLogger makes the edgeshelf handler the process-wide slog default and
// routes the standard logger through it.
func installLogger(cfg *config.Config) {
	logger := slog.New(newLogHandler(os.Stdout, cfg))
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer())
}

// newLogHandler writes JSON in production and colored text otherwise.
// Production records are stamped with the service name and env.
func newLogHandler(w io.Writer, cfg *config.Config) slog.Handler {
	level := logLevel(cfg.Log.Level)

	if !cfg.IsProd() {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: "15:04:05.000",
		})
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Time(slog.TimeKey, a.Value.Time().UTC())
			}
			return a
		},
	})
	return h.WithAttrs([]slog.Attr{
		slog.String("service", "edgeshelf"),
		slog.String("env", cfg.Env),
	})
}

// logLevel maps log.level to a slog level. Unknown values log at info.
func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
