package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternalApril/moonmock/internal/config"
	"github.com/eternalApril/moonmock/internal/logger"
	"github.com/eternalApril/moonmock/internal/metrics"
	"github.com/eternalApril/moonmock/internal/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve RESP over TCP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithFlags(configDir, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml")
	f.String("host", "", "address to bind")
	f.StringP("port", "p", "", "port to bind")
	f.Int("databases", 0, "number of logical databases")
	f.String("redis-version", "", "emulated server version")
	f.String("notify-keyspace", "", "notify-keyspace-events flags")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "json or console")
	f.Bool("metrics", false, "expose Prometheus metrics")
	f.String("metrics-addr", "", "address of the metrics endpoint")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	log.Info("moonmock starting",
		zap.String("port", cfg.Server.Port),
		zap.String("version", cfg.Engine.Version),
		zap.Int("databases", cfg.Engine.Databases),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	engine, err := server.NewEngine(cfg, log, m)
	if err != nil {
		log.Error("cant initialize engine", zap.Error(err))
		return err
	}

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := engine.Listen("tcp", address)
	if err != nil {
		engine.Shutdown()
		log.Error("listener error", zap.Error(err))
		return err
	}
	log.Info("listening on", zap.String("address", listener.Addr().String()))

	var metricsSrv *http.Server
	if m != nil {
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		log.Info("metrics exposed", zap.String("address", cfg.Metrics.Addr))
	}

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		listener.Close() //nolint:errcheck
		engine.Shutdown()
		close(done)
	}()

	if metricsSrv != nil {
		metricsSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}

	select {
	case <-done:
		log.Info("all connections closed gracefully")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
	}

	log.Info("moonmock stopped")
	return nil
}
