package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/config"
	edgehttp "github.com/sagarc03/edgeshelf/http"
	"github.com/sagarc03/edgeshelf/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the edgeshelf HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port")
	serveCmd.Flags().String("cache", "memory", "edge cache backend: memory, disk, none")
	serveCmd.Flags().String("cache-path", "", "disk cache file (env: EDGESHELF_CACHE_PATH)")
	serveCmd.Flags().Bool("metrics", false, "expose Prometheus metrics on /metrics")
	serveCmd.Flags().Bool("canonical-key", false, "sort query parameters when building cache keys")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, closeStore, err := openOrigin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	gatewayCfg := edgeshelf.GatewayConfig{
		CanonicalQuery: cfg.Cache.CanonicalQuery,
		MaxEntryBytes:  cfg.Cache.MaxEntryBytes,
		StoreTimeout:   cfg.Cache.StoreTimeout,
	}
	if cfg.Metrics.Enabled {
		gatewayCfg.Observer = observability.GatewayMetrics{}
	}
	gateway := edgeshelf.NewGateway(edgeshelf.NewFetcher(store), cache, gatewayCfg)

	handlerConfig := edgehttp.HandlerConfig{
		AdminSecret:   cfg.Admin.Secret,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Metrics:       cfg.Metrics.Enabled,
		CORS:          cfg.CORS,
	}
	if handlerConfig.AdminSecret == "" {
		slog.Info("admin routes disabled (admin.secret is empty)")
	}

	handler := edgehttp.NewHandler(&handlerConfig, gateway, store)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	slog.Info("starting server",
		"addr", addr,
		"origin", cfg.Origin.Type,
		"cache", cfg.Cache.Backend,
		"metrics", cfg.Metrics.Enabled,
	)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServer(sigCtx, server, ln, gateway, cfg.Server.ShutdownTimeout, cfg.Cache.StoreTimeout)
}

// runServer serves on ln until ctx is done or the server fails. It returns
// only after in-flight requests have finished (bounded by shutdownTimeout)
// and detached cache writes have drained (bounded by drainTimeout).
func runServer(ctx context.Context, server *http.Server, ln net.Listener, gateway *edgeshelf.Gateway, shutdownTimeout, drainTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		return nil
	})

	err := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if drainErr := gateway.Shutdown(drainCtx); drainErr != nil {
		slog.Warn("pending cache writes abandoned", "err", drainErr)
	}

	return err
}
