// Package testutil starts the containers behind the integration and e2e
// suites: pgvector Postgres for the durable chunk index and RustFS for the
// PDF archive.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "pgvector/pgvector:0.8.1-pg18"
	rustFSImage   = "rustfs/rustfs:latest"

	pgCredential = "interviewqa"

	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// PostgresContainer is a pgvector-enabled Postgres.
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	c, host, port := start(ctx, t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432")
	return &PostgresContainer{Container: c, Host: host, Port: port}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%[1]s:%[1]s@%s:%s/%[1]s?sslmode=disable", pgCredential, pc.Host, pc.Port)
}

func (pc *PostgresContainer) Terminate(_ context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// RustFSContainer is an S3-compatible store reachable with RustFSAccessKey
// and RustFSSecretKey over path-style URLs.
type RustFSContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	c, host, port := start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustFSImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")
	return &RustFSContainer{Container: c, Host: host, Port: port}
}

func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

func (rc *RustFSContainer) Terminate(_ context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, string) {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("failed to get %s port: %v", req.Image, err)
	}
	return c, host, mapped.Port()
}

// NewTestPool connects to pc and applies migrationsDir with golang-migrate,
// the same way interviewqad serve does.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 5})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	dir, err := filepath.Abs(migrationsDir)
	if err != nil {
		pool.Close()
		t.Fatalf("failed to resolve migrations dir: %v", err)
	}
	if err := database.Migrate(pc.ConnectionString(), "file://"+filepath.ToSlash(dir)); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	return pool
}

// TruncateAll empties the chunk table between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE kb_chunks"); err != nil {
		return fmt.Errorf("failed to truncate kb_chunks: %w", err)
	}
	return nil
}
