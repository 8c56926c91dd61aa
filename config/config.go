package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/edgeshelf/database"
	edgehttp "github.com/sagarc03/edgeshelf/http"
	"github.com/sagarc03/edgeshelf/s3"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Origin store types.
const (
	OriginLocal = "local"
	OriginS3    = "s3"
)

// Edge cache backends.
const (
	CacheMemory = "memory"
	CacheDisk   = "disk"
	CacheNone   = "none"
)

// Config is the root configuration struct for edgeshelf.
type Config struct {
	Env      string              `mapstructure:"env" validate:"oneof=dev prod production"`
	Server   ServerConfig        `mapstructure:"server"`
	Origin   OriginConfig        `mapstructure:"origin"`
	Database database.Config     `mapstructure:"database"`
	Storage  StorageConfig       `mapstructure:"storage"`
	S3       s3.Config           `mapstructure:"s3"`
	Cache    CacheConfig         `mapstructure:"cache"`
	Admin    AdminConfig         `mapstructure:"admin"`
	CORS     edgehttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig       `mapstructure:"metrics"`
	Log      LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// OriginConfig selects the authoritative object store.
type OriginConfig struct {
	Type           string        `mapstructure:"type" validate:"required,oneof=local s3"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"min=0"`
}

// StorageConfig holds file storage configuration for the local origin.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CacheConfig configures the edge cache.
type CacheConfig struct {
	Backend        string        `mapstructure:"backend" validate:"required,oneof=memory disk none"`
	MaxEntries     int           `mapstructure:"max_entries" validate:"min=0"`
	TTL            time.Duration `mapstructure:"ttl" validate:"min=0"`
	MaxEntryBytes  int64         `mapstructure:"max_entry_bytes" validate:"min=0"`
	StoreTimeout   time.Duration `mapstructure:"store_timeout" validate:"min=0"`
	CanonicalQuery bool          `mapstructure:"canonical_query"`
	Path           string        `mapstructure:"path"`
}

// AdminConfig holds the admin surface settings. An empty secret disables it.
type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProd reports whether the production log format should be used.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":       "database.type",
	"db-dsn":        "database.dsn",
	"storage-path":  "storage.path",
	"port":          "server.port",
	"origin":        "origin.type",
	"cache":         "cache.backend",
	"cache-path":    "cache.path",
	"log-level":     "log.level",
	"metrics":       "metrics.enabled",
	"s3-endpoint":   "s3.endpoint",
	"s3-bucket":     "s3.bucket",
	"s3-prefix":     "s3.prefix",
	"auto-migrate":  "database.auto_migrate",
	"canonical-key": "cache.canonical_query",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5708)
	v.SetDefault("server.max_upload_size", 50<<20)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("origin.type", OriginLocal)
	v.SetDefault("origin.cleanup_timeout", 30*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "edgeshelf.db")
	v.SetDefault("database.tables.meta_data", "edgeshelf_metadata")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.path", "./data")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.auto_create_bucket", false)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.ttl", 365*24*time.Hour)
	v.SetDefault("cache.max_entry_bytes", 32<<20)
	v.SetDefault("cache.store_timeout", 30*time.Second)
	v.SetDefault("cache.canonical_query", false)
	v.SetDefault("cache.path", "edgeshelf-cache.db")

	v.SetDefault("admin.secret", "")

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 0)

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("EDGESHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.validateSections(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validateSections checks settings that depend on the selected backends.
func (c *Config) validateSections() error {
	var problems []string

	if c.Origin.Type == OriginS3 {
		if strings.TrimSpace(c.S3.Endpoint) == "" {
			problems = append(problems, "s3.endpoint is required when origin.type is s3")
		}
		if strings.TrimSpace(c.S3.Bucket) == "" {
			problems = append(problems, "s3.bucket is required when origin.type is s3")
		}
	}

	if c.Origin.Type == OriginLocal {
		if err := c.Database.Tables.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if c.Cache.Backend == CacheDisk && strings.TrimSpace(c.Cache.Path) == "" {
		problems = append(problems, "cache.path is required when cache.backend is disk")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
