package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
)

// PostgresImage is the server image integration tests run against.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared test database container and connection pool.
// The bootstrap migrations are applied once when the container starts.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "typestore_test",
			"POSTGRES_USER":     "typestore",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts the server once after init; wait for the second start.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://typestore:test_password@%s:%s/typestore_test?sslmode=disable",
		host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reach test database: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{WriteURL: connStr, MaxConnections: 2}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect for migrations: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}

// SchemaDB is a database handle confined to a schema of its own, so tests can
// create types without seeing each other's tables.
type SchemaDB struct {
	DB     *database.DB
	Cache  *metacache.Cache
	Schema string
}

// NewSchemaDB creates an empty schema in the shared container and connects a
// database.DB whose search path starts with it. The schema is dropped when
// the test ends. A nil store keeps the metadata cache local.
func NewSchemaDB(t *testing.T, store metacache.GenerationStore) *SchemaDB {
	t.Helper()

	testDB := GetTestDB(t)
	ctx := context.Background()

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	ident := pgx.Identifier{schema}.Sanitize()
	if _, err := testDB.Pool.Exec(ctx, "CREATE SCHEMA "+ident); err != nil {
		t.Fatalf("Failed to create schema %s: %v", schema, err)
	}

	logger := zaptest.NewLogger(t)
	cache := metacache.New(store, logger)
	connStr := testDB.ConnStr + "&search_path=" + schema + ",public"
	db, err := database.NewConnection(ctx, &database.Config{
		WriteURL:       connStr,
		ReadURL:        connStr,
		MaxConnections: 4,
		FetchSize:      3,
	}, cache, logger)
	if err != nil {
		t.Fatalf("Failed to connect schema database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if _, err := testDB.Pool.Exec(context.Background(), "DROP SCHEMA "+ident+" CASCADE"); err != nil {
			t.Logf("Failed to drop schema %s: %v", schema, err)
		}
	})

	return &SchemaDB{DB: db, Cache: cache, Schema: schema}
}

// Session opens a session of mode in the schema database and closes it when
// the test ends.
func (s *SchemaDB) Session(t *testing.T, mode database.Mode) (context.Context, *database.Session) {
	t.Helper()

	ctx := context.Background()
	session, err := s.DB.Open(ctx, mode)
	if err != nil {
		t.Fatalf("Failed to open %s session: %v", mode, err)
	}
	t.Cleanup(func() { session.Close(context.Background()) })
	return database.SetSession(ctx, session), session
}

// TestRedis holds a shared Redis container.
type TestRedis struct {
	Container testcontainers.Container
	Addr      string
}

var (
	sharedTestRedis     *TestRedis
	sharedTestRedisOnce sync.Once
	sharedTestRedisErr  error
)

// GetTestRedis returns a client connected to a shared Redis container. Every
// call gets its own logical database slot cleared on cleanup.
func GetTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestRedisOnce.Do(func() {
		sharedTestRedis, sharedTestRedisErr = setupTestRedis()
	})

	if sharedTestRedisErr != nil {
		t.Fatalf("Failed to setup test redis: %v", sharedTestRedisErr)
	}

	client := redis.NewClient(&redis.Options{Addr: sharedTestRedis.Addr})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func setupTestRedis() (*TestRedis, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &TestRedis{Container: container, Addr: fmt.Sprintf("%s:%s", host, port.Port())}, nil
}
