// Package indexer projects raw minter contract logs into stored event
// entities. Every entity is keyed by (transaction hash, log index) and the
// decoded fields are copied verbatim from the log.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/minter-scanner/internal/adapter"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/types"
)

// BlockTimeSource resolves block numbers to timestamps
type BlockTimeSource interface {
	BlockTime(ctx context.Context, blockNumber uint64) (uint64, error)
}

// Projection holds the typed events decoded from one batch of logs
type Projection struct {
	Minted              []models.MintedEvent
	Burned              []models.BurnedEvent
	TokenCreated        []models.TokenCreatedEvent
	FeeRecipientChanged []models.FeeRecipientChangedEvent
}

// Empty reports whether the projection contains no events
func (p *Projection) Empty() bool {
	return len(p.Minted) == 0 && len(p.Burned) == 0 &&
		len(p.TokenCreated) == 0 && len(p.FeeRecipientChanged) == 0
}

// Projector decodes minter contract logs into projection entities
type Projector struct {
	logger *logging.Logger
}

// NewProjector creates a new log projector
func NewProjector() *Projector {
	return &Projector{
		logger: logging.GetGlobalLogger().WithField("component", "projector"),
	}
}

// Project decodes a batch of logs. Logs from other contracts or with
// unknown topics are skipped; removed (reorged-out) logs are dropped.
func (p *Projector) Project(ctx context.Context, logs []ethtypes.Log, times BlockTimeSource) (*Projection, error) {
	projection := &Projection{}

	for _, log := range logs {
		if log.Removed || len(log.Topics) == 0 {
			continue
		}

		blockTime, err := times.BlockTime(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve block time for block %d: %w", log.BlockNumber, err)
		}
		timestamp := time.Unix(int64(blockTime), 0).UTC() // #nosec G115 - block times fit in int64

		switch log.Topics[0] {
		case adapter.MinterABI.Events[string(types.EventMinted)].ID:
			event, err := p.decodeMinted(log, timestamp)
			if err != nil {
				return nil, err
			}
			projection.Minted = append(projection.Minted, event)

		case adapter.MinterABI.Events[string(types.EventBurned)].ID:
			event, err := p.decodeBurned(log, timestamp)
			if err != nil {
				return nil, err
			}
			projection.Burned = append(projection.Burned, event)

		case adapter.MinterABI.Events[string(types.EventTokenCreated)].ID:
			event, err := p.decodeTokenCreated(log, timestamp)
			if err != nil {
				return nil, err
			}
			projection.TokenCreated = append(projection.TokenCreated, event)

		case adapter.MinterABI.Events[string(types.EventProtocolFeeRecipientChanged)].ID:
			event, err := p.decodeFeeRecipientChanged(log, timestamp)
			if err != nil {
				return nil, err
			}
			projection.FeeRecipientChanged = append(projection.FeeRecipientChanged, event)

		default:
			p.logger.WithField("topic", log.Topics[0].Hex()).Debug("Skipping unknown event topic")
		}
	}

	return projection, nil
}

func (p *Projector) decodeMinted(log ethtypes.Log, timestamp time.Time) (models.MintedEvent, error) {
	if len(log.Topics) < 3 {
		return models.MintedEvent{}, fmt.Errorf("minted log %s has %d topics", log.TxHash.Hex(), len(log.Topics))
	}

	out, err := adapter.MinterABI.Unpack(string(types.EventMinted), log.Data)
	if err != nil {
		return models.MintedEvent{}, fmt.Errorf("failed to unpack minted log: %w", err)
	}

	return models.MintedEvent{
		ID:              models.EventID(log.TxHash.Hex(), log.Index),
		Buyer:           common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		TokenID:         new(big.Int).SetBytes(log.Topics[2].Bytes()),
		Amount:          out[0].(*big.Int),
		Cost:            out[1].(*big.Int),
		NewReserve:      out[2].(*big.Int),
		NewTotalSupply:  out[3].(*big.Int),
		BlockNumber:     log.BlockNumber,
		BlockTimestamp:  timestamp,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
	}, nil
}

func (p *Projector) decodeBurned(log ethtypes.Log, timestamp time.Time) (models.BurnedEvent, error) {
	if len(log.Topics) < 3 {
		return models.BurnedEvent{}, fmt.Errorf("burned log %s has %d topics", log.TxHash.Hex(), len(log.Topics))
	}

	out, err := adapter.MinterABI.Unpack(string(types.EventBurned), log.Data)
	if err != nil {
		return models.BurnedEvent{}, fmt.Errorf("failed to unpack burned log: %w", err)
	}

	return models.BurnedEvent{
		ID:              models.EventID(log.TxHash.Hex(), log.Index),
		Seller:          common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		TokenID:         new(big.Int).SetBytes(log.Topics[2].Bytes()),
		Amount:          out[0].(*big.Int),
		Refund:          out[1].(*big.Int),
		NewReserve:      out[2].(*big.Int),
		NewTotalSupply:  out[3].(*big.Int),
		BlockNumber:     log.BlockNumber,
		BlockTimestamp:  timestamp,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
	}, nil
}

func (p *Projector) decodeTokenCreated(log ethtypes.Log, timestamp time.Time) (models.TokenCreatedEvent, error) {
	if len(log.Topics) < 3 {
		return models.TokenCreatedEvent{}, fmt.Errorf("token created log %s has %d topics", log.TxHash.Hex(), len(log.Topics))
	}

	out, err := adapter.MinterABI.Unpack(string(types.EventTokenCreated), log.Data)
	if err != nil {
		return models.TokenCreatedEvent{}, fmt.Errorf("failed to unpack token created log: %w", err)
	}

	return models.TokenCreatedEvent{
		ID:              models.EventID(log.TxHash.Hex(), log.Index),
		TokenID:         new(big.Int).SetBytes(log.Topics[1].Bytes()),
		Name:            out[0].(string),
		Symbol:          out[1].(string),
		Creator:         common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
		BlockNumber:     log.BlockNumber,
		BlockTimestamp:  timestamp,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
	}, nil
}

func (p *Projector) decodeFeeRecipientChanged(log ethtypes.Log, timestamp time.Time) (models.FeeRecipientChangedEvent, error) {
	out, err := adapter.MinterABI.Unpack(string(types.EventProtocolFeeRecipientChanged), log.Data)
	if err != nil {
		return models.FeeRecipientChangedEvent{}, fmt.Errorf("failed to unpack fee recipient log: %w", err)
	}

	return models.FeeRecipientChangedEvent{
		ID:              models.EventID(log.TxHash.Hex(), log.Index),
		OldRecipient:    out[0].(common.Address).Hex(),
		NewRecipient:    out[1].(common.Address).Hex(),
		BlockNumber:     log.BlockNumber,
		BlockTimestamp:  timestamp,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
	}, nil
}
