//go:build database

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/stablelint/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStablelintWithMySQL tests the stablelint CLI with a MySQL backend.
func TestStablelintWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "stablelint",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/stablelint?parseTime=true", host, port.Port())
	runBackendScenario(t, "mysql", connStr)
}

// TestStablelintWithPostgres tests the stablelint CLI with a PostgreSQL backend.
func TestStablelintWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	runBackendScenario(t, "postgresql", connStr)
}

// runBackendScenario migrates, tracks across two processes, inspects and clears the store.
func runBackendScenario(t *testing.T, backend, connStr string) {
	g := testutil.FeatureScenario(t)
	mainPath := filepath.Join(g.Dir, "main.go")
	require.NoError(t, os.WriteFile(mainPath, []byte(mainV1), 0o644))

	c := newCLI(t,
		"STABLELINT_STORE_BACKEND="+backend,
		"STABLELINT_STORE_DB_CONNECT="+connStr,
		"STABLELINT_REPO="+g.Dir,
	)

	// Run stablelint store clear to start from an empty table
	_, err := c.run("", "store", "clear")
	require.NoError(t, err)

	out, err := c.run("", "store", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "to version 2")

	out, err = c.run(rawFindings(t, 4), "track", "--file", "main.go", "--output", "json")
	require.NoError(t, err)
	first := decodeTracked(t, out)

	require.NoError(t, os.WriteFile(mainPath, []byte(mainV2), 0o644))
	out, err = c.run(rawFindings(t, 6), "track", "--file", "main.go", "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, first.Findings[0].ID, decodeTracked(t, out).Findings[0].ID)

	out, err = c.run("", "store", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Files: 1")

	out, err = c.run("", "store", "migrate", "--target-version", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "to version 0")
}
