package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/api"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/config"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/metrics"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/rating"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting telrate",
		"http_port", cfg.HTTPPort,
		"db_driver", cfg.DBDriver,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DBDriver, cfg.DataDir, cfg.DBDSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Load the reference snapshot the engine rates against.
	refs := database.NewRefRepository(db)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), time.Minute)
	rows, err := refs.LoadTables(loadCtx)
	loadCancel()
	if err != nil {
		slog.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}
	tables := refdata.NewTables(rows)
	slog.Info("reference data loaded", "rows", tables.Stats())

	prefixes := refdata.NewPrefixCache(refs, cfg.PrefixCacheTTL, logger)
	engine := rating.NewEngine(tables, prefixes, rating.Config{
		MaxRewriteHops: cfg.MaxRewriteHops,
		BatchWorkers:   cfg.BatchWorkers,
	}, logger)

	quarantines := database.NewQuarantineRepository(db)

	// Prometheus metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(engine.Stats(), prefixes, quarantines, tables, startTime),
	)

	handler := api.NewServer(api.Options{
		Engine:      engine,
		Quarantines: quarantines,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimit:   cfg.RateLimit,
		Logger:      logger,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	snap := engine.Stats().Snapshot()
	slog.Info("telrate stopped", "rated", snap.Total(), "uptime", time.Since(startTime).Round(time.Second).String())
}
