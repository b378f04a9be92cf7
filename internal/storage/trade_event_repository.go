package storage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/pricing"
	"github.com/minter-scanner/internal/types"
)

// TradeEventRepository persists the ClickHouse side of the event projection:
// Minted and Burned entities, stored in a single trade_events table with an
// event_type discriminator. The table uses ReplacingMergeTree keyed by the
// event id, so reprocessed block ranges collapse to one row.
type TradeEventRepository struct {
	db *ClickHouseDB
}

// NewTradeEventRepository creates a new trade event repository
func NewTradeEventRepository(db *ClickHouseDB) *TradeEventRepository {
	return &TradeEventRepository{db: db}
}

// BatchInsertMinted inserts mint events in a batch
func (r *TradeEventRepository) BatchInsertMinted(ctx context.Context, events []models.MintedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO trade_events (
			id, event_type, account, token_id, amount, value,
			new_reserve, new_total_supply,
			block_number, block_timestamp, transaction_hash, log_index
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.ID,
			string(types.TradeMint),
			e.Buyer,
			e.TokenID.String(),
			e.Amount.String(),
			e.Cost.String(),
			e.NewReserve.String(),
			e.NewTotalSupply.String(),
			e.BlockNumber,
			e.BlockTimestamp,
			e.TransactionHash,
			uint32(e.LogIndex), // #nosec G115 - log indexes fit in 32 bits
		)
		if err != nil {
			return fmt.Errorf("failed to append minted event %s: %w", e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// BatchInsertBurned inserts burn events in a batch
func (r *TradeEventRepository) BatchInsertBurned(ctx context.Context, events []models.BurnedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO trade_events (
			id, event_type, account, token_id, amount, value,
			new_reserve, new_total_supply,
			block_number, block_timestamp, transaction_hash, log_index
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.ID,
			string(types.TradeBurn),
			e.Seller,
			e.TokenID.String(),
			e.Amount.String(),
			e.Refund.String(),
			e.NewReserve.String(),
			e.NewTotalSupply.String(),
			e.BlockNumber,
			e.BlockTimestamp,
			e.TransactionHash,
			uint32(e.LogIndex), // #nosec G115 - log indexes fit in 32 bits
		)
		if err != nil {
			return fmt.Errorf("failed to append burned event %s: %w", e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// RecentTrades returns the newest projected trades across all tokens,
// newest first.
func (r *TradeEventRepository) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_type, token_id, amount, value, block_timestamp
		FROM trade_events FINAL
		ORDER BY block_timestamp DESC, log_index DESC
		LIMIT ?
	`
	return r.queryTrades(ctx, query, limit)
}

// TradesForToken returns the newest projected trades for one token,
// newest first.
func (r *TradeEventRepository) TradesForToken(ctx context.Context, tokenID string, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_type, token_id, amount, value, block_timestamp
		FROM trade_events FINAL
		WHERE token_id = ?
		ORDER BY block_timestamp DESC, log_index DESC
		LIMIT ?
	`
	return r.queryTrades(ctx, query, tokenID, limit)
}

// queryTrades runs a trade projection query and converts rows to trades
func (r *TradeEventRepository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]models.Trade, error) {
	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade events: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var (
			eventType string
			tokenID   string
			amount    string
			value     string
			timestamp time.Time
		)
		if err := rows.Scan(&eventType, &tokenID, &amount, &value, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade event: %w", err)
		}

		valueWei, ok := new(big.Int).SetString(value, 10)
		if !ok {
			continue
		}
		amountInt, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			continue
		}

		trades = append(trades, models.Trade{
			TokenID:   tokenID,
			Type:      types.TradeType(eventType),
			Amount:    amountInt.String(),
			Cost:      valueWei.String(),
			Price:     pricing.UnitPrice(valueWei, amountInt.Int64()),
			Timestamp: timestamp.Unix(),
		})
	}
	return trades, rows.Err()
}
