// Server binary: wires config, database, cache, provider, services and
// handlers, starts the refresh heartbeat, and serves the HTTP API with
// graceful shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/pfennig-app/pfennig/docs"
	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	"github.com/pfennig-app/pfennig/internal/db"
	"github.com/pfennig-app/pfennig/internal/handlers"
	"github.com/pfennig-app/pfennig/internal/logger"
	"github.com/pfennig-app/pfennig/internal/repositories"
	"github.com/pfennig-app/pfennig/internal/services"
)

// @title Pfennig Exchange-Rate API
// @version 1.0
// @description Historical exchange-rate capture, conversion and migration for the pfennig expense tracker.
// @BasePath /api
func main() {
	// Missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	database, err := db.Connect(&db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	if err := database.Health(); err != nil {
		zlog.Fatal("database health check failed", zap.Error(err))
	}
	zlog.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName))

	rateCache := cache.New(cfg.CacheCapacity, zlog.Named("cache"))
	rateCache.StartHousekeeping(cfg.HousekeepingInterval)
	defer rateCache.Stop()

	provider := services.NewHTTPFXProvider(cfg.ProviderURLFor, cfg.ProviderTimeout, cfg.TargetCurrencies, zlog.Named("provider"))

	rateRepo := repositories.NewRateRepository(database)
	expenseRepo := repositories.NewExpenseRepository(database)

	refreshService := services.NewRefreshService(rateRepo, rateCache, provider, cfg, zlog.Named("refresh"))
	captureService := services.NewCaptureService(rateRepo, rateCache, provider, cfg, zlog.Named("capture"))
	conversionService := services.NewConversionService(rateRepo, expenseRepo, rateCache, provider, cfg, zlog.Named("conversion"))
	currencyService := services.NewCurrencyService(rateRepo, zlog.Named("currency"))
	expenseService := services.NewExpenseService(expenseRepo, rateRepo, captureService, conversionService, rateCache, zlog.Named("expense"))

	refreshService.Start()
	defer refreshService.Stop()
	defer captureService.Close()

	router := handlers.NewRouter(
		handlers.NewFXHandler(conversionService, refreshService, currencyService, zlog.Named("http")),
		handlers.NewExpenseHandler(expenseService, zlog.Named("http")),
		handlers.NewCacheHandler(rateCache, zlog.Named("http")),
		handlers.NewHealthHandler(database, zlog.Named("http")),
	)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handlers.CORS(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("shutdown incomplete", zap.Error(err))
	}
	zlog.Info("server stopped")
}
