package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/margemcerta/backoffice/internal"
	"github.com/margemcerta/backoffice/internal/handler/api"
	"github.com/margemcerta/backoffice/internal/middleware"
	"github.com/margemcerta/backoffice/internal/postgres"
	"github.com/margemcerta/backoffice/internal/router"
	"github.com/margemcerta/backoffice/internal/service"
	"github.com/margemcerta/backoffice/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	tenantUUID, err := uuid.Parse(cfg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to parse tenant ID: %w", err)
	}

	// Initialize metrics
	httpMetrics := middleware.NewMetrics(cfg.Metrics.Namespace)
	pricingMetrics := telemetry.NewPricingMetrics(cfg.Metrics.Namespace)

	// Initialize store and service
	store := postgres.NewPricingStore(pool)
	pricingService := service.NewPricingService(store, tenantUUID, logger, pricingMetrics)
	pricingHandler := api.NewPricingHandler(pricingService, logger)

	// Router with the global middleware chain
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		httpMetrics.Middleware,
		middleware.WithRequestLogger(logger),
	)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint (protect via firewall in production)
	if cfg.Metrics.Enabled {
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			httpMetrics.Handler().ServeHTTP(w, req)
		})
	}

	// Pricing API
	r.Post("/api/pricing/solve", pricingHandler.Solve)
	r.Post("/api/pricing/simulate", pricingHandler.Simulate)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
