package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/platform/config"
	"vigil/internal/platform/health"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/middleware"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/simulator"
	"vigil/internal/token"
	"vigil/pkg/secrets"
)

const poolStatsInterval = 15 * time.Second

// main wires the development presence backend: the store, the seeded
// population, the websocket hub, background churn, and the HTTP surface.
// Business logic lives in internal/simulator.
func main() {
	cfg := config.SimulatorFromEnv()
	log := logger.New()

	log.Info("initializing vigil-sim",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"seed", cfg.Seed,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthHandler := health.New(cfg.Environment)

	var store simulator.Store
	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck // shutting down anyway
		healthHandler.RegisterCheck("redis", rdb.Health)
		store = simulator.NewRedis(rdb.Client, cfg.Retention)
		log.Info("using redis presence store")
	} else {
		store = simulator.NewMemory()
		log.Info("using in-memory presence store")
	}

	seeded, err := simulator.Seed(ctx, store, cfg.Seed, time.Now(), log)
	if err != nil {
		log.Error("seeding presence data failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeded presence population", "users", seeded)

	metrics := simulator.NewMetrics()
	httpMetrics := middleware.NewMetrics()

	hub := simulator.NewHub(log, metrics)
	sim := simulator.New(store, hub, log,
		simulator.WithMetrics(metrics),
		simulator.WithIdleTimeout(cfg.IdleTimeout),
		simulator.WithRetention(cfg.Retention),
	)

	generator := simulator.NewActivityGenerator(sim, store, log,
		simulator.WithActivityInterval(cfg.ActivityInterval),
		simulator.WithUsersInterval(cfg.UsersInterval),
		simulator.WithGeneratorSeed(cfg.Seed),
	)
	sweeper := simulator.NewSweeper(sim, cfg.SweepInterval, log)

	go func() {
		if err := generator.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("activity generator stopped", "error", err)
		}
	}()
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("presence sweeper stopped", "error", err)
		}
	}()

	if rdb != nil {
		go func() {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rdb.RecordPoolStats()
				}
			}
		}()
	}

	tokens := token.NewService(cfg.JWTSigningKey, "vigil-sim", cfg.TokenTTL)
	validator := token.NewValidatorAdapter(tokens)

	secretHash, err := secrets.Hash(cfg.ClientSecret)
	if err != nil {
		log.Error("hashing client secret failed", "error", err)
		os.Exit(1)
	}

	router := simulator.NewRouter(simulator.RouterConfig{
		Handler:     simulator.NewHandler(sim, log),
		Auth:        simulator.NewAuthHandler(tokens, cfg.ClientID, secretHash, cfg.TokenTTL, log),
		WS:          simulator.NewWSHandler(sim, hub, validator, token.ScopePresenceRead, log),
		Validator:   validator,
		Health:      healthHandler,
		HTTPMetrics: httpMetrics,
		Logger:      log,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	log.Info("shutting down server gracefully")

	// Drop socket clients first; Shutdown does not wait for hijacked
	// connections.
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
