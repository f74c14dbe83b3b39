// ==============================================================================
// SETTLEMENT SERVICE MAIN - cmd/settlement/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"settleup/internal/handler"
	"settleup/internal/ledgerio"
	"settleup/internal/middleware"
	"settleup/internal/repository/postgres"
	"settleup/internal/scheduler"
	"settleup/internal/settlement"
	"settleup/pkg/cache"
	"settleup/pkg/config"
	"settleup/pkg/logger"
	"settleup/pkg/metrics"
	"settleup/pkg/validator"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithWriter("settlement-service", os.Stdout, logger.ParseLevel(cfg.Log.Level))

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Starting Settlement Service", map[string]interface{}{
		"port":             cfg.Server.Port,
		"parallel":         cfg.Settlement.Parallel,
		"subset_max_group": cfg.Settlement.SubsetMaxGroup,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	settlementRepo := postgres.NewSettlementRepository(db)
	deps := map[string]handler.Pinger{"database": settlementRepo}

	if cfg.Settlement.Retention > 0 {
		sweeper := scheduler.NewSweeper(settlementRepo, cfg.Settlement.Retention, cfg.Settlement.SweepInterval, log)
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Redis backs the plan cache, rate limiting and idempotent replays.
	var (
		planCache   settlement.Cache
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer rc.Close()
			planCache = rc
			deps["redis"] = rc
			redisClient = rc.Client()
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	recorder := metrics.NewSettlementRecorder(registry)

	selector := settlement.NewSelector(settlement.Options{
		Subset: settlement.SubsetLimits{
			MaxGroup:   cfg.Settlement.SubsetMaxGroup,
			StepBudget: cfg.Settlement.SubsetStepBudget,
		},
		Logger:   log,
		Recorder: recorder,
	}, cfg.Settlement.Parallel)

	settlementService := settlement.NewService(settlementRepo, planCache, selector, log, cfg.Settlement.CacheTTL)
	settlementHandler := handler.NewSettlementHandler(
		settlementService,
		ledgerio.NewCodec(cfg.Settlement.MinorUnitDigits),
		validator.New(),
		log,
		cfg.Settlement.MaxEntries,
	)
	systemHandler := handler.NewSystemHandler(deps)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log, httpMetrics).Log)
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// Routes
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")
	r.Handle("/metrics", metrics.Handler(registry)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	if redisClient != nil {
		if cfg.Server.RateLimitRequests > 0 {
			api.Use(middleware.NewRateLimiter(redisClient, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow, log).Limit)
		}
		api.Use(middleware.NewIdempotencyMiddleware(redisClient, cfg.Server.IdempotencyTTL, log).Handle)
	}
	api.HandleFunc("/settlements", settlementHandler.CreateSettlement).Methods("POST")
	api.HandleFunc("/settlements/{id}", settlementHandler.GetSettlement).Methods("GET")

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Settlement service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down settlement service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Settlement service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Settlement service stopped gracefully", nil)
}
