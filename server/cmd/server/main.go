package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/metage/metage/pkg/estimatorv1"
	"github.com/metage/metage/server/internal/api"
	"github.com/metage/metage/server/internal/auth"
	"github.com/metage/metage/server/internal/config"
	"github.com/metage/metage/server/internal/estimator"
	"github.com/metage/metage/server/internal/metrics"
	"github.com/metage/metage/server/internal/rpc"
	"github.com/metage/metage/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the config; missing file is ignored")
	uiDir := flag.String("ui-dir", "", "serve pre-built UI static files from this directory; leave empty to disable")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.Log.SlogLevel())
	logger := newLogger(cfg.Server.Log.Format, level)
	slog.SetDefault(logger)

	slog.Info("metage-server starting",
		"config", *configPath,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"log_level", cfg.Server.Log.Level,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, *uiDir, level, logger); err != nil {
		slog.Error("metage-server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("metage-server shut down")
}

func run(ctx context.Context, cfg *config.Config, configPath, uiDir string, level *slog.LevelVar, logger *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	svc := estimator.New(logger, m)

	authCfg := cfg.Server.Auth
	header := authCfg.EffectiveHeader()
	key := authCfg.Key()
	if authCfg.Mode == "apikey" && key == "" {
		slog.Warn("auth mode is apikey but key env is empty; authentication disabled", "key_env", authCfg.KeyEnv)
	}

	// gRPC server with optional API key authentication interceptor.
	grpcSrv := grpc.NewServer(
		grpc.ForceServerCodec(estimatorv1.Codec{}),
		grpc.UnaryInterceptor(auth.APIKeyInterceptor(authCfg.Mode, header, key)),
	)
	estimatorv1.Register(grpcSrv, rpc.New(svc, logger))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
	}

	hub := ws.New(svc, cfg.Server.WS.ReadLimit, m, logger)

	// Combined HTTP server: REST API, /metrics, live channel and optional UI.
	handler := api.New(svc, api.Options{
		Logger:      logger,
		Auth:        auth.APIKeyMiddleware(authCfg.Mode, header, key),
		Metrics:     promhttp.Handler(),
		Live:        hub,
		LiveClients: hub.Count,
		UIDir:       uiDir,
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if uiDir != "" {
		slog.Info("serving UI static files", "dir", uiDir)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gRPC estimator listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return config.Watch(gctx, configPath,
			func(next *config.Config) {
				level.Set(next.Server.Log.SlogLevel())
				m.IncConfigReload(true)
				slog.Info("log level applied", "log_level", next.Server.Log.Level)
			},
			func(error) { m.IncConfigReload(false) },
		)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("metage-server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
