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

const readModelSchema = `
	CREATE TABLE IF NOT EXISTS records (
		key VARCHAR(255) PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		write_count BIGINT NOT NULL DEFAULT 1
	)
`

// PostgresReadModel implements ReadModel over a dedicated PostgreSQL
// database, denormalized with a per-key write count.
type PostgresReadModel struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresReadModel connects to the read-model database and ensures its
// schema exists
func NewPostgresReadModel(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (ReadModel, error) {
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

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), readModelSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure read model table: %w", err)
	}

	return &PostgresReadModel{
		pool:   pool,
		logger: logger,
	}, nil
}

// Apply upserts the projected value and bumps the write count. Re-applying
// the same event is safe for the value; only the counter moves.
func (m *PostgresReadModel) Apply(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO records (key, value, created_at, updated_at, write_count)
		VALUES ($1, $2, NOW(), NOW(), 1)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW(),
			write_count = records.write_count + 1
	`

	if _, err := m.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}
	return nil
}

// Get retrieves a projected record by key
func (m *PostgresReadModel) Get(ctx context.Context, key string) (model.ReadModelRecord, error) {
	query := `
		SELECT key, value, write_count, updated_at
		FROM records
		WHERE key = $1
	`

	var rec model.ReadModelRecord
	err := m.pool.QueryRow(ctx, query, key).Scan(
		&rec.Key,
		&rec.Value,
		&rec.WriteCount,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ReadModelRecord{}, ErrNotFound
		}
		return model.ReadModelRecord{}, fmt.Errorf("failed to get projected record: %w", err)
	}

	return rec, nil
}

// Count returns the number of projected records
func (m *PostgresReadModel) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := m.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projected records: %w", err)
	}
	return count, nil
}

// Ping checks the database connection
func (m *PostgresReadModel) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close closes the connection pool
func (m *PostgresReadModel) Close() {
	m.pool.Close()
}
