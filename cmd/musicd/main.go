package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"musicd/internal/httpapi"
	"musicd/internal/logging"
	"musicd/internal/manager"
	"musicd/internal/registry"
)

func main() {
	// A local .env fills in variables not already set in the environment.
	_ = godotenv.Load()

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "musicd:", err)
		os.Exit(2)
	}

	logger := logging.New(logging.Config{Level: opts.logLevel, Format: opts.logFormat})
	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(opts.requestLog)
	httpapi.SetMaxBodyBytes(opts.maxBodyBytes)
	httpapi.SetGenerateTimeout(opts.generateTimeout)
	httpapi.SetGeneratedDir(opts.outputDir, "/static/generated")
	httpapi.SetCORSOptions(opts.corsEnabled, opts.corsOrigins, opts.corsMethods, opts.corsHeaders)

	var backend manager.Backend
	if opts.backendURL != "" {
		backend = manager.NewWorkerBackend(opts.backendURL, opts.backendAPIKey, opts.backendTimeout, 5*time.Second)
	} else {
		logger.Warn().Msg("no inference worker configured; generation requests will fail (set --backend-url or MUSICD_BACKEND_URL)")
		backend = manager.NewUnavailableBackend("no inference worker configured (set --backend-url or MUSICD_BACKEND_URL)")
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Variants:       opts.variants,
		Backend:        backend,
		Device:         opts.device,
		OutputDir:      opts.outputDir,
		UniqueNames:    true,
		MaxQueueDepth:  opts.maxQueueDepth,
		MaxWait:        opts.maxWait,
		LoadTimeout:    opts.loadTimeout,
		MaxTokensLimit: opts.maxTokensLimit,
		Logger:         &logger,
		Publisher:      httpapi.MetricsPublisher{},
	})
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	if report := mgr.SanityCheck(ctx); !report.OK() {
		logger.Warn().Interface("sanity", report).Msg("startup checks failed; /readyz will report not ready")
	}
	if len(opts.preload) > 0 {
		go func() {
			if err := mgr.Preload(ctx, opts.preload...); err != nil {
				logger.Error().Err(err).Strs("variants", opts.preload).Msg("preload failed")
			}
		}()
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().
			Str("addr", opts.addr).
			Str("output_dir", opts.outputDir).
			Strs("variants", registry.Names(opts.variants)).
			Msg("musicd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}
