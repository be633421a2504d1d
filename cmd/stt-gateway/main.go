package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/api"
	"github.com/snarg/stt-gateway/internal/config"
	"github.com/snarg/stt-gateway/internal/credstore"
	"github.com/snarg/stt-gateway/internal/metrics"
	"github.com/snarg/stt-gateway/internal/retry"
	"github.com/snarg/stt-gateway/internal/speech"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env-file", "", "path to .env file (default .env)")
	httpAddr := flag.String("http-addr", "", "listen address, overrides HTTP_ADDR")
	logLevel := flag.String("log-level", "", "log level, overrides LOG_LEVEL")
	credsFile := flag.String("credentials", "", "credentials file, overrides CREDENTIALS_FILE")
	flag.Parse()

	// Config
	cfg, err := config.Load(config.Overrides{
		EnvFile:         *envFile,
		HTTPAddr:        *httpAddr,
		LogLevel:        *logLevel,
		CredentialsFile: *credsFile,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("stt-gateway starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential store with hot reload
	store := credstore.New(cfg.CredentialsFile, log)
	if err := store.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load credentials")
	}
	if err := store.Watch(); err != nil {
		log.Warn().Err(err).Msg("credential hot reload disabled")
	}
	defer store.Stop()

	// Providers
	src := api.NewProviderSource(store, speech.Options{
		HTTPTimeout:   cfg.ProviderHTTPTimeout,
		StreamTimeout: cfg.ProviderStreamTimeout,
		Retry: retry.Config{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
		},
		PollInterval: cfg.PollInterval,
		PollAttempts: cfg.PollAttempts,
		Logger:       log.With().Str("component", "speech").Logger(),
	})
	log.Info().Int("configured", src.ConfiguredCount()).Msg("credential store loaded")

	// Job pool
	pool := api.NewJobPool(api.JobPoolOptions{
		Workers:   cfg.JobWorkers,
		QueueSize: cfg.JobQueueSize,
		Retention: cfg.JobRetention,
		Run: func(ctx context.Context, req *api.AudioRequest) (*speech.Result, error) {
			return api.Execute(ctx, src, req)
		},
		Log: log.With().Str("component", "jobs").Logger(),
	})
	pool.Start()

	prometheus.MustRegister(metrics.NewCollector(pool, store))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, src, pool, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout. The server drains first; Enqueue
	// on a stopped pool panics.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	pool.Stop()

	log.Info().Msg("stt-gateway stopped")
}
