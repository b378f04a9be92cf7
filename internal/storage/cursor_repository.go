package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CursorRepository tracks the last fully processed block per scan worker.
// Stored in Postgres next to the projected entities so a restart resumes
// from the same point the projection reached.
type CursorRepository struct {
	db *PostgresDB
}

// NewCursorRepository creates a new cursor repository
func NewCursorRepository(db *PostgresDB) *CursorRepository {
	return &CursorRepository{db: db}
}

// GetCursor returns the stored block cursor for a worker name. The second
// return value is false when no cursor has been stored yet.
func (r *CursorRepository) GetCursor(ctx context.Context, name string) (uint64, bool, error) {
	query := `SELECT block_number FROM scan_cursors WHERE name = $1`

	var block uint64
	err := r.db.Pool().QueryRow(ctx, query, name).Scan(&block)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cursor: %w", err)
	}
	return block, true, nil
}

// SetCursor stores the last fully processed block for a worker name
func (r *CursorRepository) SetCursor(ctx context.Context, name string, block uint64) error {
	query := `
		INSERT INTO scan_cursors (name, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number, updated_at = NOW()
	`

	_, err := r.db.Pool().Exec(ctx, query, name, block)
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
