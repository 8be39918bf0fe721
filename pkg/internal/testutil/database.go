package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StartDatabase boots a throwaway postgres container, wires the global gorm
// handle to it and runs the migrations. Call the returned teardown once the
// package's tests complete.
func StartDatabase() (func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ballotbox"),
		tcpostgres.WithUsername("ballotbox"),
		tcpostgres.WithPassword("ballotbox"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	teardown := func() {
		_ = container.Terminate(context.Background())
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to resolve postgres connection string: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		teardown()
		return nil, fmt.Errorf("failed to connect to postgres container: %w", err)
	}

	if err := database.RunMigration(db); err != nil {
		teardown()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database.C = db

	return teardown, nil
}

// TruncateAll wipes mutable state between tests while keeping the schema.
func TruncateAll(tb testing.TB) {
	tb.Helper()

	for _, table := range []string{"votes", "sync_deliveries", "options", "questions"} {
		if err := database.C.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE").Error; err != nil {
			tb.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
