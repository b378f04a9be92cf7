// Package worker runs the chain scan loop: it polls the minter contract's
// logs in bounded block windows, projects them into event entities, and
// persists the projection.
package worker

import (
	"context"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/minter-scanner/internal/indexer"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/storage"
)

const cursorName = "event-worker"

// LogSource supplies contract logs and chain head state
type LogSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterEvents(ctx context.Context, from, to uint64) ([]ethtypes.Log, error)
}

// EventSink persists a projection. Split between ClickHouse for the trade
// events and Postgres for the registry events.
type EventSink interface {
	PersistMinted(ctx context.Context, events []models.MintedEvent) error
	PersistBurned(ctx context.Context, events []models.BurnedEvent) error
	PersistTokenCreated(ctx context.Context, events []models.TokenCreatedEvent) error
	PersistFeeRecipientChanged(ctx context.Context, events []models.FeeRecipientChangedEvent) error
}

// CursorStore persists the scan position between restarts
type CursorStore interface {
	GetCursor(ctx context.Context, name string) (uint64, bool, error)
	SetCursor(ctx context.Context, name string, block uint64) error
}

// Config tunes the event worker
type Config struct {
	PollInterval     time.Duration // pause between scan cycles
	StartBlock       uint64        // first block to scan on a fresh deployment
	MaxBlocksPerPoll int           // upper bound on the window scanned per cycle
}

// EventWorker scans the chain for minter contract events and feeds the
// projection into storage. The cursor advances only after a window is
// fully persisted, so a crash mid-cycle replays the window; persistence
// is idempotent on event ids.
type EventWorker struct {
	source    LogSource
	projector *indexer.Projector
	times     indexer.BlockTimeSource
	sink      EventSink
	cursors   CursorStore
	cfg       Config
	logger    *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEventWorker creates an event worker
func NewEventWorker(source LogSource, times indexer.BlockTimeSource, sink EventSink, cursors CursorStore, cfg Config) *EventWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxBlocksPerPoll <= 0 {
		cfg.MaxBlocksPerPoll = 30
	}
	return &EventWorker{
		source:    source,
		projector: indexer.NewProjector(),
		times:     times,
		sink:      sink,
		cursors:   cursors,
		cfg:       cfg,
		logger:    logging.GetGlobalLogger().WithField("component", "event-worker"),
	}
}

// Start launches the scan loop
func (w *EventWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		for {
			if err := w.ScanOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WithError(err).Warn("Scan cycle failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the scan loop and waits for the current cycle to finish
func (w *EventWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// ScanOnce runs one scan cycle over at most MaxBlocksPerPoll blocks
func (w *EventWorker) ScanOnce(ctx context.Context) error {
	head, err := w.source.LatestBlock(ctx)
	if err != nil {
		return err
	}

	from, err := w.nextBlock(ctx)
	if err != nil {
		return err
	}
	if from > head {
		return nil
	}

	to := head
	if span := uint64(w.cfg.MaxBlocksPerPoll); to-from+1 > span { // #nosec G115 - validated positive
		to = from + span - 1
	}

	logs, err := w.source.FilterEvents(ctx, from, to)
	if err != nil {
		return err
	}

	projection, err := w.projector.Project(ctx, logs, w.times)
	if err != nil {
		return err
	}

	if !projection.Empty() {
		if err := w.persist(ctx, projection); err != nil {
			return err
		}
		w.logger.WithFields(map[string]interface{}{
			"from":         from,
			"to":           to,
			"minted":       len(projection.Minted),
			"burned":       len(projection.Burned),
			"tokenCreated": len(projection.TokenCreated),
		}).Info("Projected contract events")
	}

	return w.cursors.SetCursor(ctx, cursorName, to)
}

// nextBlock returns the first unscanned block
func (w *EventWorker) nextBlock(ctx context.Context) (uint64, error) {
	cursor, ok, err := w.cursors.GetCursor(ctx, cursorName)
	if err != nil {
		return 0, err
	}
	if !ok {
		return w.cfg.StartBlock, nil
	}
	return cursor + 1, nil
}

func (w *EventWorker) persist(ctx context.Context, projection *indexer.Projection) error {
	if err := w.sink.PersistMinted(ctx, projection.Minted); err != nil {
		return err
	}
	if err := w.sink.PersistBurned(ctx, projection.Burned); err != nil {
		return err
	}
	if err := w.sink.PersistTokenCreated(ctx, projection.TokenCreated); err != nil {
		return err
	}
	return w.sink.PersistFeeRecipientChanged(ctx, projection.FeeRecipientChanged)
}

// StorageSink routes each event family to its backing store: Minted and
// Burned to ClickHouse, TokenCreated and fee recipient changes to Postgres.
type StorageSink struct {
	trades *storage.TradeEventRepository
	tokens *storage.TokenRepository
}

// NewStorageSink creates the production event sink
func NewStorageSink(trades *storage.TradeEventRepository, tokens *storage.TokenRepository) *StorageSink {
	return &StorageSink{trades: trades, tokens: tokens}
}

// PersistMinted stores mint events in ClickHouse
func (s *StorageSink) PersistMinted(ctx context.Context, events []models.MintedEvent) error {
	return s.trades.BatchInsertMinted(ctx, events)
}

// PersistBurned stores burn events in ClickHouse
func (s *StorageSink) PersistBurned(ctx context.Context, events []models.BurnedEvent) error {
	return s.trades.BatchInsertBurned(ctx, events)
}

// PersistTokenCreated stores token creation events in Postgres
func (s *StorageSink) PersistTokenCreated(ctx context.Context, events []models.TokenCreatedEvent) error {
	for i := range events {
		if err := s.tokens.InsertTokenCreated(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

// PersistFeeRecipientChanged stores fee recipient changes in Postgres
func (s *StorageSink) PersistFeeRecipientChanged(ctx context.Context, events []models.FeeRecipientChangedEvent) error {
	for i := range events {
		if err := s.tokens.InsertFeeRecipientChange(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}
