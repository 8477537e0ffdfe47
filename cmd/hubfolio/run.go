package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/hubfolio/hubfolio/internal/auth"
	"github.com/hubfolio/hubfolio/internal/cache"
	"github.com/hubfolio/hubfolio/internal/circuitbreaker"
	"github.com/hubfolio/hubfolio/internal/config"
	"github.com/hubfolio/hubfolio/internal/github"
	"github.com/hubfolio/hubfolio/internal/ratelimit"
	"github.com/hubfolio/hubfolio/internal/server"
	"github.com/hubfolio/hubfolio/internal/storage/sqlite"
	"github.com/hubfolio/hubfolio/internal/telemetry"
	"github.com/hubfolio/hubfolio/internal/worker"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting hubfolio", "version", version, "addr", cfg.Server.Addr)

	// Validate the upstream credential. An invalid token is not fatal:
	// the proxy runs unauthenticated on the reduced upstream quota.
	var cred *auth.Credential
	if cfg.Upstream.Token != "" {
		cred, err = auth.ValidateToken(cfg.Upstream.Token)
		if err != nil {
			slog.Warn("upstream token rejected, running unauthenticated", "error", err)
			cred = nil
		}
	}
	if cred == nil {
		slog.Warn("no upstream credential configured, requests count against the unauthenticated quota")
	}

	// Open database
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Shared outbound HTTP client with cached DNS lookups.
	resolver := &dnscache.Resolver{}
	httpClient := &http.Client{Transport: github.NewTransport(resolver)}

	lru := cache.NewLRU(cfg.Cache.MaxSize)
	limiter := ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxMutations)

	deps := server.Deps{
		Upstream: &server.Upstream{
			BaseURL: cfg.Upstream.BaseURL,
			Cred:    cred,
			HTTP:    httpClient,
			Timeout: cfg.Upstream.Timeout,
			Breaker: circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig()),
		},
		Cache:   lru,
		Limiter: limiter,
		TTL:     cfg.Cache.TTL,
		Store:   store,
		Version: version,
	}

	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		deps.Metrics = telemetry.NewMetrics(reg)
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(context.Background(),
			cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Create HTTP server
	handler := server.New(deps)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	runner := worker.NewRunner(
		worker.NewSweeper(limiter, cfg.RateLimit.SweepInterval, cfg.RateLimit.SweepAge),
	)
	workerCh := make(chan error, 1)
	go func() { workerCh <- runner.Run(workerCtx) }()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("hubfolio ready", "addr", cfg.Server.Addr, "upstream", cfg.Upstream.BaseURL)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-workerCh:
		return err
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	stopWorkers()
	<-workerCh

	slog.Info("hubfolio stopped")
	return nil
}
