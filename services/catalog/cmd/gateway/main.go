package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nimestream/nimestream/services/catalog/internal/bookmarks"
	"github.com/nimestream/nimestream/services/catalog/internal/catalog"
	"github.com/nimestream/nimestream/services/catalog/internal/config"
	"github.com/nimestream/nimestream/services/catalog/internal/logging"
	"github.com/nimestream/nimestream/services/catalog/internal/metrics"
	"github.com/nimestream/nimestream/services/catalog/internal/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "HTTP gateway serving the NimeStream site and /api proxy",
	Long: `Serves the server-rendered NimeStream pages and the /api/samehadaku
pass-through routes. Upstream data is fetched through the catalog gRPC
server at CATALOG_GRPC_ADDR.

Settings come from --config (YAML) and are overridden by the environment,
e.g. PORT, CATALOG_GRPC_ADDR, TIMEZONE and BOOKMARKS_DB.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if !cfg.Logging.Development {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	grpcAddr := cfg.Gateway.CatalogAddr
	opts := append(catalog.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	cc, err := grpc.NewClient(grpcAddr, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gRPC client: %w", err)
	}
	defer cc.Close()

	waitReady(ctx, cc, cfg.Gateway.DialTimeout, logger.With(zap.String("addr", grpcAddr)))

	store, err := bookmarks.Open(cfg.Bookmarks.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	r := web.NewRouter(web.Deps{
		Catalog:   catalog.NewClient(cc),
		Bookmarks: store,
		Logger:    logger,
		Metrics:   metrics.New(),
		Location:  cfg.Location(),
		Timeout:   cfg.Upstream.Timeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Gateway.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			zap.String("port", cfg.Gateway.Port),
			zap.String("url", fmt.Sprintf("http://localhost:%s", cfg.Gateway.Port)),
			zap.String("catalog", grpcAddr),
			zap.String("bookmarks", cfg.Bookmarks.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("gateway failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	return nil
}

// waitReady blocks until the catalog connection is READY or timeout passes.
// The gateway still starts either way; requests fail until the catalog is up.
func waitReady(ctx context.Context, cc *grpc.ClientConn, timeout time.Duration, logger *zap.Logger) {
	cc.Connect()

	ctxWait, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()
	for {
		state := cc.GetState()
		if state == connectivity.Ready {
			logger.Info("gRPC connection is READY")
			return
		}
		if !cc.WaitForStateChange(ctxWait, state) {
			logger.Warn("timed out waiting for connection state change", zap.Stringer("state", cc.GetState()))
			return
		}
	}
}
