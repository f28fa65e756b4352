package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/liamcoop/trialmatch/trial"
)

// PostgresStore implements TrialStore backed by PostgreSQL.
// Configurations are kept as JSONB in the trials table.
type PostgresStore struct {
	db *sqlx.DB
}

type trialRow struct {
	ID        string    `db:"id"`
	Config    []byte    `db:"config"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPostgresStore wraps an open connection
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects with the lib/pq driver
func OpenPostgres(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) Add(ctx context.Context, t *StoredTrial) error {
	config, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal trial config: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (id, config, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`, t.ID(), config, t.Active, now)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, t.ID())
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*StoredTrial, error) {
	var row trialRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, config, active, created_at, updated_at
		FROM trials
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}
	return row.toStored()
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*StoredTrial, error) {
	var rows []trialRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, config, active, created_at, updated_at
		FROM trials
		WHERE active = true
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active trials: %w", err)
	}

	out := make([]*StoredTrial, 0, len(rows))
	for _, row := range rows {
		t, err := row.toStored()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, t *StoredTrial) error {
	config, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal trial config: %w", err)
	}

	var createdAt time.Time
	now := time.Now()
	err = s.db.QueryRowxContext(ctx, `
		UPDATE trials
		SET config = $1, active = $2, updated_at = $3
		WHERE id = $4
		RETURNING created_at
	`, config, t.Active, now, t.ID()).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID())
	}
	if err != nil {
		return fmt.Errorf("failed to update trial: %w", err)
	}

	t.CreatedAt = createdAt
	t.UpdatedAt = now
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trial: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r trialRow) toStored() (*StoredTrial, error) {
	var cfg trial.Config
	if err := json.Unmarshal(r.Config, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config of trial %s: %w", r.ID, err)
	}
	return &StoredTrial{
		Config:    cfg,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
