package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"synapse-project-api/internal/database"
)

const postgresImage = "postgres:16-alpine"

var (
	sharedDSN     string
	sharedDSNOnce sync.Once
	sharedDSNErr  error
)

// PostgresDSN returns a migrated PostgreSQL database for the test run.
// TEST_DATABASE_URL is used when set; otherwise one container is started and
// shared by every test in the package.
func PostgresDSN(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedDSNOnce.Do(func() {
		sharedDSN, sharedDSNErr = setupPostgres()
	})
	if sharedDSNErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedDSNErr)
	}
	return sharedDSN
}

func setupPostgres() (string, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		var err error
		if dsn, err = startContainer(); err != nil {
			return "", err
		}
	}

	if err := database.RunMigrations(database.DriverPostgres, dsn, zap.NewNop()); err != nil {
		return "", fmt.Errorf("failed to run migrations: %w", err)
	}
	return dsn, nil
}

func startContainer() (string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "synapse_test",
			"POSTGRES_USER":     "synapse",
			"POSTGRES_PASSWORD": "test_password",
		},
		// the server restarts once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	return fmt.Sprintf("postgres://synapse:test_password@%s:%s/synapse_test?sslmode=disable", host, port.Port()), nil
}

// ResetProjects empties the projects table.
func ResetProjects(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, database.DriverPostgres, dsn, 1)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE projects"); err != nil {
		t.Fatalf("Failed to reset projects: %v", err)
	}
}

// RequireIntegration skips the test unless INTEGRATION=1
func RequireIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
}
