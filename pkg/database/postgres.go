package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/retry"
)

// Mode selects the pool a session draws its connection from.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
	Admin
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read"
	case ReadWrite:
		return "write"
	case Admin:
		return "admin"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// DB holds one pgxpool per session mode plus the shared metadata cache.
type DB struct {
	read  *pgxpool.Pool
	write *pgxpool.Pool
	admin *pgxpool.Pool

	cache     *metacache.Cache
	fetchSize int
	logger    *zap.Logger
}

// Config holds database connection configuration.
type Config struct {
	ReadURL         string
	WriteURL        string
	AdminURL        string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	FetchSize       int
}

// NewConnection creates the connection pools. The read pool runs every
// transaction read-only; an admin URL equal to the write URL shares its pool.
func NewConnection(ctx context.Context, cfg *Config, cache *metacache.Cache, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = metacache.New(nil, logger)
	}

	db := &DB{cache: cache, fetchSize: cfg.FetchSize, logger: logger.Named("database")}
	if db.fetchSize <= 0 {
		db.fetchSize = 100
	}

	var err error
	if db.write, err = newPool(ctx, cfg, cfg.WriteURL, false); err != nil {
		return nil, err
	}
	readURL := cfg.ReadURL
	if readURL == "" {
		readURL = cfg.WriteURL
	}
	if db.read, err = newPool(ctx, cfg, readURL, true); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.AdminURL == "" || cfg.AdminURL == cfg.WriteURL {
		db.admin = db.write
	} else if db.admin, err = newPool(ctx, cfg, cfg.AdminURL, false); err != nil {
		db.Close()
		return nil, err
	}

	db.logger.Info("Connected to database",
		zap.String("write", logging.SanitizeConnectionString(cfg.WriteURL)),
		zap.String("read", logging.SanitizeConnectionString(readURL)))
	return db, nil
}

func newPool(ctx context.Context, cfg *Config, url string, readOnly bool) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	if readOnly {
		poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Pool returns the pool serving mode.
func (db *DB) Pool(mode Mode) *pgxpool.Pool {
	switch mode {
	case ReadOnly:
		return db.read
	case Admin:
		return db.admin
	}
	return db.write
}

// Cache returns the shared metadata cache.
func (db *DB) Cache() *metacache.Cache {
	return db.cache
}

// Close closes every pool.
func (db *DB) Close() {
	if db.read != nil {
		db.read.Close()
	}
	if db.admin != nil && db.admin != db.write {
		db.admin.Close()
	}
	if db.write != nil {
		db.write.Close()
	}
}
