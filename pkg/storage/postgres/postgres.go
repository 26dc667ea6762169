// Package postgres implements the storage interfaces on PostgreSQL with an
// optional Redis read-through cache.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/observability"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db      *sql.DB
	cache   *Cache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New connects to PostgreSQL, applies migrations, and wires the optional
// Redis cache. cache and metrics degrade to disabled when unconfigured.
func New(cfg config.StorageConfig, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.PostgresMaxConns / 2)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var cache *Cache
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		cache, err = NewCache(cfg, metrics)
		if err != nil {
			// Cache is an optimization; run without it rather than failing.
			if logger != nil {
				logger.WithError(err).Warn("redis cache unavailable, continuing without cache")
			}
			cache = nil
		}
	}

	return &Store{
		db:      db,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NewWithDB wraps an existing database handle. Used by tests; no migrations
// are applied.
func NewWithDB(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Store {
	return &Store{db: db, logger: logger, metrics: metrics}
}

// DB exposes the underlying handle for subsystems that run their own queries
// (search, audit, tasks).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Redis exposes the cache client for health checks, or nil when the cache is
// disabled.
func (s *Store) Redis() *redis.Client {
	if s.cache == nil {
		return nil
	}
	return s.cache.client
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database and cache connections.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

// observe records a storage operation's duration and outcome.
func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.StorageOperationsTotal.WithLabelValues(operation, outcome).Inc()
	s.metrics.StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
