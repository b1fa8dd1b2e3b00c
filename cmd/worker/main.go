package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/demoslots/internal/config"
	"github.com/geocoder89/demoslots/internal/db"
	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/geocoder89/demoslots/internal/repo/postgres"
	"github.com/geocoder89/demoslots/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env).With("component", "auditor")
	slog.SetDefault(log)

	if cfg.Store == "memory" {
		return errors.New("auditor needs STORE=postgres; the memory store lives inside the api process")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(registry)

	slotsRepo := postgres.NewSlotsRepo(pool, prom)

	w := worker.New(worker.Config{
		Interval: cfg.AuditInterval,
		Timeout:  5 * time.Second,
	}, slotsRepo, prom, log)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("auditor started", "interval", cfg.AuditInterval.String(), "health_port", cfg.WorkerHealthPort)
		return w.Run(gctx)
	})

	g.Go(func() error {
		err := healthSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		return healthSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("auditor shutdown complete")
	return nil
}
