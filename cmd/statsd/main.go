package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/arbiter"
	"github.com/freeeve/policy-arena/internal/config"
	"github.com/freeeve/policy-arena/internal/handler"
	"github.com/freeeve/policy-arena/internal/logger"
	"github.com/freeeve/policy-arena/internal/middleware"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/internal/repository/postgres"
	redisrepo "github.com/freeeve/policy-arena/internal/repository/redis"
)

func main() {
	configPath := flag.String("config", "", "Optional config file")
	flag.Parse()

	logger.Init()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	if cfg.PrimaryDatabaseURL == "" || cfg.SecondaryDatabaseURL == "" {
		log.Fatal().Msg("PRIMARY_DATABASE_URL and SECONDARY_DATABASE_URL are required")
	}
	failover, err := arbiter.ParseFailurePolicy(cfg.ArbiterFailover)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ARBITER_FAILOVER")
	}
	log.Info().Str("port", cfg.Port).Str("failover", failover.String()).Bool("cache", cfg.RedisURL != "").Msg("Config loaded")

	// Databases
	primaryDB := mustConnect(cfg.PrimaryDatabaseURL, "primary")
	defer primaryDB.Close()
	secondaryDB := mustConnect(cfg.SecondaryDatabaseURL, "secondary")
	defer secondaryDB.Close()

	var primary, secondary repository.StatsStore = postgres.NewStatsRepo(primaryDB), postgres.NewStatsRepo(secondaryDB)
	checks := map[string]handler.Check{
		arbiter.Primary.String():   primaryDB.PingContext,
		arbiter.Secondary.String(): secondaryDB.PingContext,
	}

	// Redis cache (optional)
	if cfg.RedisURL != "" {
		redisClient, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		checks["redis"] = redisClient.Ping
		cache := redisrepo.NewStatsCache(redisClient, cfg.CacheTTL)
		primary = repository.NewCachedStore(arbiter.Primary.String(), primary, cache)
		secondary = repository.NewCachedStore(arbiter.Secondary.String(), secondary, cache)
	}

	statsHandler := handler.NewStatsHandler(arbiter.New(primary, secondary, arbiter.WithFailurePolicy(failover)))

	// Router
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /readyz", handler.Ready(checks))
	statsHandler.Register(mux)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.Recover, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

func mustConnect(url, dataset string) *sql.DB {
	db, err := postgres.Connect(url)
	if err != nil {
		log.Fatal().Err(err).Str("dataset", dataset).Msg("Database connection failed")
	}
	return db
}
