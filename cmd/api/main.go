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

	"github.com/geocoder89/demoslots/internal/cache"
	"github.com/geocoder89/demoslots/internal/config"
	"github.com/geocoder89/demoslots/internal/db"
	"github.com/geocoder89/demoslots/internal/domain/slot"
	httpx "github.com/geocoder89/demoslots/internal/http"
	"github.com/geocoder89/demoslots/internal/http/handlers"
	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/geocoder89/demoslots/internal/redisclient"
	"github.com/geocoder89/demoslots/internal/repo/memory"
	"github.com/geocoder89/demoslots/internal/repo/postgres"
	"github.com/geocoder89/demoslots/internal/reservation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "demoslots-api",
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		log.Warn("tracing disabled", "err", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(registry)

	slots, regs, pinger, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer closeStore()

	slotsCache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	svc := reservation.NewService(slots, regs,
		reservation.WithCache(slotsCache),
		reservation.WithMetrics(prom),
		reservation.WithLogger(log),
	)

	seeds := slot.BuildSeeds(cfg.SlotSeed.Start, cfg.SlotSeed.Count, cfg.SlotSeed.Interval, cfg.SlotSeed.Capacity)
	if err := svc.Seed(ctx, seeds); err != nil {
		return err
	}

	// set up routers with the log
	router := httpx.NewRouter(log, httpx.Deps{
		Reservations: svc,
		Store:        pinger,
		Prom:         prom,
		Gatherer:     registry,
	}, cfg)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (
	reservation.SlotStore, reservation.RegistrationStore, handlers.Pinger, func(), error,
) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store; bookings are lost on restart")
		store := memory.NewStore()
		return store, store, store, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("db connect: %w", err)
	}

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("db migrate: %w", err)
	}
	if len(applied) > 0 {
		log.Info("applied migrations", "files", applied)
	}

	return postgres.NewSlotsRepo(pool, prom),
		postgres.NewRegistrationsRepo(pool, prom),
		postgres.NewPinger(pool),
		pool.Close,
		nil
}

// openCache prefers redis so replicas share slot listings, and falls back to
// an in-process cache when redis is not configured or not reachable.
func openCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.SlotsCacheTTL), func() {}
	}

	client := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pctx); err != nil {
		log.Warn("redis unreachable, using in-process cache", "addr", cfg.RedisAddr, "err", err)
		_ = client.Close()
		return cache.NewMemory(cfg.SlotsCacheTTL), func() {}
	}

	return cache.NewRedis(client, cfg.SlotsCacheTTL), func() { _ = client.Close() }
}
