package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"github.com/minter-scanner/internal/models"
)

// TokenRepository persists the Postgres side of the event projection:
// TokenCreated and ProtocolFeeRecipientChanged entities. Inserts are keyed
// by event id so reprocessing a block range is idempotent.
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

// InsertTokenCreated stores a TokenCreated projection row
func (r *TokenRepository) InsertTokenCreated(ctx context.Context, event *models.TokenCreatedEvent) error {
	query := `
		INSERT INTO token_created_events (
			id, token_id, name, symbol, creator,
			block_number, block_timestamp, transaction_hash, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		event.ID,
		event.TokenID.String(),
		event.Name,
		event.Symbol,
		event.Creator,
		event.BlockNumber,
		event.BlockTimestamp,
		event.TransactionHash,
		event.LogIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token created event: %w", err)
	}
	return nil
}

// InsertFeeRecipientChange stores a ProtocolFeeRecipientChanged projection row
func (r *TokenRepository) InsertFeeRecipientChange(ctx context.Context, event *models.FeeRecipientChangedEvent) error {
	query := `
		INSERT INTO fee_recipient_changes (
			id, old_recipient, new_recipient,
			block_number, block_timestamp, transaction_hash, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		event.ID,
		event.OldRecipient,
		event.NewRecipient,
		event.BlockNumber,
		event.BlockTimestamp,
		event.TransactionHash,
		event.LogIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee recipient change: %w", err)
	}
	return nil
}

// ListTokenCreated returns all token creation events ordered by token id
func (r *TokenRepository) ListTokenCreated(ctx context.Context) ([]models.TokenCreatedEvent, error) {
	query := `
		SELECT id, token_id, name, symbol, creator,
		       block_number, block_timestamp, transaction_hash, log_index
		FROM token_created_events
		ORDER BY token_id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list token created events: %w", err)
	}
	defer rows.Close()

	var events []models.TokenCreatedEvent
	for rows.Next() {
		event, err := scanTokenCreated(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetTokenCreated retrieves the creation event for a token id
func (r *TokenRepository) GetTokenCreated(ctx context.Context, tokenID *big.Int) (*models.TokenCreatedEvent, error) {
	query := `
		SELECT id, token_id, name, symbol, creator,
		       block_number, block_timestamp, transaction_hash, log_index
		FROM token_created_events
		WHERE token_id = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, tokenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get token created event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	event, err := scanTokenCreated(rows)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CurrentFeeRecipient returns the most recent protocol fee recipient, or
// empty string when no change has been projected yet.
func (r *TokenRepository) CurrentFeeRecipient(ctx context.Context) (string, error) {
	query := `
		SELECT new_recipient
		FROM fee_recipient_changes
		ORDER BY block_number DESC, log_index DESC
		LIMIT 1
	`

	var recipient string
	err := r.db.Pool().QueryRow(ctx, query).Scan(&recipient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get fee recipient: %w", err)
	}
	return recipient, nil
}

// scanTokenCreated reads one token creation row
func scanTokenCreated(rows pgx.Rows) (models.TokenCreatedEvent, error) {
	var event models.TokenCreatedEvent
	var tokenID string

	err := rows.Scan(
		&event.ID, &tokenID, &event.Name, &event.Symbol, &event.Creator,
		&event.BlockNumber, &event.BlockTimestamp, &event.TransactionHash, &event.LogIndex,
	)
	if err != nil {
		return models.TokenCreatedEvent{}, fmt.Errorf("failed to scan token created event: %w", err)
	}

	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return models.TokenCreatedEvent{}, fmt.Errorf("malformed token id in row %s", event.ID)
	}
	event.TokenID = id
	return event, nil
}
