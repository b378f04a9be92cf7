package store

import (
	"context"
	"sync"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/types"
)

const tradesKey = "trades"

// TradeStore holds reconciled trade histories. The aggregate history under
// TradeKeyAll is authoritative and is the only one persisted; per-token
// views are sliced from it lazily and memoized until the next update.
type TradeStore struct {
	mu      sync.RWMutex
	state   types.HydrationState
	all     []models.Trade
	views   map[types.TradeKey][]models.Trade
	persist *persistence
}

// NewTradeStore creates a trade store backed by the given cache. A nil
// cache disables persistence.
func NewTradeStore(cache *storage.RedisCache) *TradeStore {
	return &TradeStore{
		state:   types.HydrationCold,
		views:   make(map[types.TradeKey][]models.Trade),
		persist: newPersistence(cache, "trade-store"),
	}
}

// Hydrate loads the persisted aggregate history. The store transitions
// from cold to hydrated exactly once; later calls are no-ops.
func (s *TradeStore) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == types.HydrationHydrated {
		return
	}

	var trades []models.Trade
	if s.persist.load(ctx, tradesKey, &trades) {
		s.all = trades
	}
	s.state = types.HydrationHydrated
}

// State returns the hydration state
func (s *TradeStore) State() types.HydrationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// All returns a copy of the aggregate trade history, ascending by timestamp
func (s *TradeStore) All() []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTrades(s.all)
}

// ForToken returns a copy of the trade history of one token, ascending by
// timestamp. The view is computed from the aggregate on first access and
// memoized; the aggregate key returns the full history.
func (s *TradeStore) ForToken(tokenID string) []models.Trade {
	key := types.TradeKey(tokenID)
	if key == types.TradeKeyAll {
		return s.All()
	}

	s.mu.RLock()
	if view, ok := s.views[key]; ok {
		s.mu.RUnlock()
		return copyTrades(view)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if view, ok := s.views[key]; ok {
		return copyTrades(view)
	}

	view := make([]models.Trade, 0)
	for _, t := range s.all {
		if t.TokenID == tokenID {
			view = append(view, t)
		}
	}
	s.views[key] = view
	return copyTrades(view)
}

func copyTrades(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)
	return out
}

// SetAll replaces the aggregate history. Returns false without persisting
// when the new history is value-equal to the current one; otherwise all
// memoized views are dropped.
func (s *TradeStore) SetAll(ctx context.Context, trades []models.Trade) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tradeSlicesEqual(s.all, trades) {
		return false
	}

	s.all = make([]models.Trade, len(trades))
	copy(s.all, trades)
	s.views = make(map[types.TradeKey][]models.Trade)
	s.persist.save(ctx, tradesKey, s.all)
	return true
}

// Clear drops the aggregate history and all views, persisting the empty
// state. Hydration is unaffected.
func (s *TradeStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = nil
	s.views = make(map[types.TradeKey][]models.Trade)
	s.persist.save(ctx, tradesKey, []models.Trade{})
}

// LatestTimestamp returns the timestamp of the newest trade in the
// aggregate history, or 0 when the history is empty.
func (s *TradeStore) LatestTimestamp() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.all) == 0 {
		return 0
	}
	return s.all[len(s.all)-1].Timestamp
}

func tradeSlicesEqual(a, b []models.Trade) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
