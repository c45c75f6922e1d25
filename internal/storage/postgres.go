package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/bizfeed/internal/cache"
)

// PostgresStore keeps cache entries in the news_cache table.
type PostgresStore struct {
	db *sql.DB
}

var _ cache.Store = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and creates the schema if needed.
func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("postgres cache connected")
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS news_cache (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_news_cache_expires_at ON news_cache(expires_at);
	`

	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	query := `SELECT payload FROM news_cache WHERE key = $1 AND expires_at > NOW()`
	err := ps.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(payload), true, nil
}

func (ps *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO news_cache (key, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`
	if _, err := ps.db.ExecContext(ctx, query, key, string(value), time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (ps *PostgresStore) Purge(ctx context.Context) (int, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM news_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("purged expired cache rows", "count", rows)
	}
	return int(rows), nil
}

// GetStats returns row counts.
func (ps *PostgresStore) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var total, active int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_cache`).Scan(&total); err != nil {
		return nil, err
	}
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_cache WHERE expires_at > NOW()`).Scan(&active); err != nil {
		return nil, err
	}
	stats["total_items"] = total
	stats["active_items"] = active
	return stats, nil
}

func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
