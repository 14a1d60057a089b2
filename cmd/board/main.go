package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/config"
	"github.com/quantarax/backend/internal/httpapi"
	"github.com/quantarax/backend/internal/observability"
	"github.com/quantarax/backend/internal/ratelimit"
	"github.com/quantarax/backend/internal/validation"
)

func main() {
	listenAddr := flag.String("listen-addr", "", "HTTP listen address (overrides LISTEN_ADDRESS)")
	observAddr := flag.String("observ-addr", "127.0.0.1:8081", "metrics/health/pprof listen address")
	flag.Parse()

	logger := observability.NewLogger("canvas-board", "1.0.0", os.Stdout)
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "canvas-board"); err == nil {
		defer shutdown(context.Background())
	}

	logger.Info("canvas board server starting")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal(err, "failed to load config")
	}
	if *listenAddr != "" {
		cfg.ListenAddress = *listenAddr
	}
	if err := validation.ValidateAddr(cfg.ListenAddress); err != nil {
		logger.Fatal(err, "invalid listen address")
	}
	if cfg.StorageKind == config.StorageFilesystem || cfg.StorageKind == config.StorageBolt {
		if err := validation.ValidateFilePath(cfg.StorageDir, false); err != nil {
			logger.Fatal(err, "invalid storage directory")
		}
	}
	if cfg.StorageKind == config.StorageS3 {
		if err := validation.ValidateStringNonEmpty(cfg.S3Bucket); err != nil {
			logger.Fatal(err, "S3_BUCKET must be set when STORAGE_KIND=s3")
		}
	}

	logger.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := cfg.NewBackend(ctx)
	if err != nil {
		logger.Fatal(err, "failed to open storage backend")
	}

	b := board.New(backend, cfg.BoardConfig(), logger, metrics)
	go b.Run(ctx)
	logger.Info("board manager running")

	healthChecker.RegisterCheck("http_listener", observability.HTTPListenerCheck(cfg.ListenAddress))
	healthChecker.RegisterCheck("live_chunks", observability.LiveChunksCheck(func() int {
		return b.LiveChunkCount(ctx)
	}, cfg.MaxLiveChunks))

	connLimit := ratelimit.NewTokenBucket(50, 100) // 50 conn/s, burst 100
	api := httpapi.New(b, connLimit, logger, metrics)

	go startObservabilityServer(*observAddr, metrics, healthChecker, logger)

	server := &http.Server{Addr: cfg.ListenAddress, Handler: api.Handler()}
	go func() {
		logger.Info("HTTP server listening on " + cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "HTTP server error")
		}
	}()

	logger.Info("canvas board server running")
	logger.Info("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully...")
	cancel()
	_ = server.Shutdown(context.Background())
	if closer, ok := backend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error(err, "failed to close storage backend")
		}
	}
	logger.Info("canvas board server stopped")
}

func startObservabilityServer(addr string, metrics *observability.Metrics, health *observability.HealthChecker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{Addr: addr, Handler: mux}
	logger.Info("observability server listening on " + addr + " (metrics, health, pprof)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}
