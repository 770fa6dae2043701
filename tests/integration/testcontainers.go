// Package integration runs the exchange-rate core against a real
// PostgreSQL instance. These tests require Docker.
//
// Usage:
//
//	go test ./tests/integration/
//
// One container is started for the whole package and migrations are
// applied once; individual tests truncate the tables they touch.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pfennig-app/pfennig/internal/db"
)

// TestContainer holds the PostgreSQL container and the connected database.
type TestContainer struct {
	Container testcontainers.Container
	DB        *db.DB
	Config    *db.Config
}

var suiteContainer *TestContainer

// setupWithContext starts a PostgreSQL container, connects, and applies
// the SQL migrations.
func setupWithContext(ctx context.Context) (*TestContainer, error) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pfennig_test"),
		postgres.WithUsername("pfennig_user"),
		postgres.WithPassword("pfennig_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("container port: %w", err)
	}

	config := &db.Config{
		Host:     host,
		Port:     port.Port(),
		User:     "pfennig_user",
		Password: "pfennig_password",
		Name:     "pfennig_test",
		SSLMode:  "disable",
	}

	database, err := db.Connect(config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &TestContainer{Container: pgContainer, DB: database, Config: config}, nil
}

// runMigrations applies every .sql file under migrations/ in name order,
// except the development seed.
func runMigrations(database *db.DB) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		// Tests control their own data; the seed would make row counts
		// nondeterministic.
		if strings.Contains(e.Name(), "seed") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			return err
		}
		if _, err := sqlDB.Exec(string(b)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}
