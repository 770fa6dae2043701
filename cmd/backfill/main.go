// Backfill CLI: runs, rolls back, or inspects the frozen-rate migration
// for pre-existing expenses.
//
//	backfill migrate  [--batch-size=N] [--max-retries=N] [--no-rollback] [--state-file=F] [--log-file=F]
//	backfill rollback [--state-file=F] [--log-file=F]
//	backfill status   [--state-file=F]
//
// SIGINT/SIGTERM pauses a running migration cleanly; the next invocation
// resumes from the persisted checkpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pfennig-app/pfennig/internal/cache"
	"github.com/pfennig-app/pfennig/internal/config"
	"github.com/pfennig-app/pfennig/internal/db"
	"github.com/pfennig-app/pfennig/internal/logger"
	"github.com/pfennig-app/pfennig/internal/models"
	"github.com/pfennig-app/pfennig/internal/repositories"
	"github.com/pfennig-app/pfennig/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet("backfill "+command, flag.ExitOnError)
	batchSize := flags.Int("batch-size", 50, "expenses per batch")
	maxRetries := flags.Int("max-retries", 3, "retries per expense before recording a failure")
	noRollback := flags.Bool("no-rollback", false, "disable the rollback command for this run's state")
	stateFile := flags.String("state-file", "", "migration state file (default from env)")
	logFile := flags.String("log-file", "", "migration log file (default from env)")
	_ = flags.Parse(os.Args[2:])

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *stateFile == "" {
		*stateFile = cfg.MigrationStateFile
	}
	if *logFile == "" {
		*logFile = cfg.MigrationLogFile
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

	mc := services.DefaultMigrationConfig(*stateFile, *logFile)
	mc.BatchSize = *batchSize
	mc.MaxRetries = *maxRetries
	mc.EnableRollback = !*noRollback

	rateCache := cache.New(cfg.CacheCapacity, zlog.Named("cache"))
	provider := services.NewHTTPFXProvider(cfg.ProviderURLFor, cfg.ProviderTimeout, cfg.TargetCurrencies, zlog.Named("provider"))
	migrator := services.NewMigrationService(
		repositories.NewExpenseRepository(database),
		repositories.NewRateRepository(database),
		rateCache,
		provider,
		cfg,
		mc,
		zlog.Named("migration"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "migrate":
		state, err := migrator.Run(ctx)
		if err != nil {
			zlog.Error("migration failed", zap.Error(err))
			os.Exit(1)
		}
		printState(state)
		if state.Status == models.MigrationStatusPaused {
			fmt.Println("paused; rerun `backfill migrate` to resume")
		}

	case "rollback":
		removed, err := migrator.Rollback(ctx)
		if err != nil {
			zlog.Error("rollback failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("rollback removed %d frozen rate rows\n", removed)

	case "status":
		state, err := migrator.Status()
		if err != nil {
			zlog.Error("status failed", zap.Error(err))
			os.Exit(1)
		}
		if state == nil {
			fmt.Println("no migration has run")
			return
		}
		printState(state)

	default:
		usage()
		os.Exit(1)
	}
}

func printState(state *models.MigrationState) {
	fmt.Printf("run:       %s\n", state.RunID)
	fmt.Printf("status:    %s\n", state.Status)
	fmt.Printf("processed: %d/%d (migrated %d, skipped %d)\n",
		state.ProcessedCount, state.TotalExpenses, state.MigratedCount, state.SkippedCount)
	fmt.Printf("errors:    %d\n", len(state.Errors))
	if state.Remaining() > 0 {
		fmt.Printf("remaining: %d\n", state.Remaining())
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: backfill <migrate|rollback|status> [flags]")
}
