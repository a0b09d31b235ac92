package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
)

const recordsSchema = `
	CREATE TABLE IF NOT EXISTS records (
		key VARCHAR(255) PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresStore implements Store over a PostgreSQL partition
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to one PostgreSQL partition and ensures the
// records table exists
func NewPostgresStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), recordsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure records table: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// Put upserts a record. created_at survives updates, updated_at is bumped
// every write. The xmax system column is zero only for freshly inserted
// rows, which tells an insert apart from an update without a second query.
func (s *PostgresStore) Put(ctx context.Context, key, value string) (model.Record, bool, error) {
	query := `
		INSERT INTO records (key, value, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING key, value, created_at, updated_at, (xmax = 0) AS inserted
	`

	var rec model.Record
	var inserted bool
	err := s.pool.QueryRow(ctx, query, key, value).Scan(
		&rec.Key,
		&rec.Value,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return model.Record{}, false, fmt.Errorf("failed to upsert record: %w", err)
	}

	return rec, inserted, nil
}

// Get retrieves a record by key
func (s *PostgresStore) Get(ctx context.Context, key string) (model.Record, error) {
	query := `
		SELECT key, value, created_at, updated_at
		FROM records
		WHERE key = $1
	`

	var rec model.Record
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&rec.Key,
		&rec.Value,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Record{}, ErrNotFound
		}
		return model.Record{}, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// Count returns the number of records in this partition
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PoolStats reports connection pool usage
func (s *PostgresStore) PoolStats() PoolStats {
	stat := s.pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
