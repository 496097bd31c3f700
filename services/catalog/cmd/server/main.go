package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimestream/nimestream/services/catalog/internal/cache"
	"github.com/nimestream/nimestream/services/catalog/internal/catalog"
	"github.com/nimestream/nimestream/services/catalog/internal/config"
	"github.com/nimestream/nimestream/services/catalog/internal/logging"
	"github.com/nimestream/nimestream/services/catalog/internal/metrics"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

var (
	configPath  string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog gRPC server relaying the Samehadaku API",
	Long: `Serves catalog.v1.Catalog over gRPC. Every Fetch is relayed to the
upstream anime API and the raw body is returned unchanged.

Settings come from --config (YAML) and are overridden by the environment,
e.g. CATALOG_PORT, UPSTREAM_BASE_URL, CACHE_TTL and REDIS_ADDR.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if metricsAddr != "" {
			cfg.Catalog.MetricsAddr = metricsAddr
		}
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New()

	opts := catalog.ServerOptions{Logger: logger, Metrics: m}
	if cfg.Cache.TTL > 0 {
		c := cache.Open(ctx, cfg.Cache.RedisAddr, logger)
		defer c.Close()
		opts.Cache = c
		opts.CacheTTL = cfg.Cache.TTL
	}
	upstream := samehadaku.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	srv := catalog.NewServer(upstream, opts)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Catalog.Port))
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}

	grpcServer, hs := catalog.NewGRPCServer(srv)

	var metricsSrv *http.Server
	if cfg.Catalog.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Catalog.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.Catalog.MetricsAddr))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalog gRPC server listening",
			zap.Int("port", cfg.Catalog.Port),
			zap.String("upstream", upstream.BaseURL()),
			zap.Duration("cache_ttl", opts.CacheTTL),
		)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	hs.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		grpcServer.Stop()
	}
	return nil
}
