package store

import (
	"context"
	"strings"
	"sync"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/types"
)

const balancesKey = "balances"

// BalanceStore holds per-account token balances keyed by lowercase account
// address. Setters are gated on value equality like the other stores.
type BalanceStore struct {
	mu       sync.RWMutex
	state    types.HydrationState
	balances map[string][]models.Balance
	persist  *persistence
}

// NewBalanceStore creates a balance store backed by the given cache. A nil
// cache disables persistence.
func NewBalanceStore(cache *storage.RedisCache) *BalanceStore {
	return &BalanceStore{
		state:    types.HydrationCold,
		balances: make(map[string][]models.Balance),
		persist:  newPersistence(cache, "balance-store"),
	}
}

// Hydrate loads the persisted balance snapshot. The store transitions from
// cold to hydrated exactly once; later calls are no-ops.
func (s *BalanceStore) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == types.HydrationHydrated {
		return
	}

	balances := make(map[string][]models.Balance)
	if s.persist.load(ctx, balancesKey, &balances) {
		s.balances = balances
	}
	s.state = types.HydrationHydrated
}

// State returns the hydration state
func (s *BalanceStore) State() types.HydrationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Get returns the balances for an account
func (s *BalanceStore) Get(account string) ([]models.Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances, ok := s.balances[normalizeAccount(account)]
	if !ok {
		return nil, false
	}
	out := make([]models.Balance, len(balances))
	copy(out, balances)
	return out, true
}

// Set replaces an account's balances. Returns false without persisting
// when the new balances are value-equal to the stored ones.
func (s *BalanceStore) Set(ctx context.Context, account string, balances []models.Balance) bool {
	account = normalizeAccount(account)

	s.mu.Lock()
	defer s.mu.Unlock()

	if balanceSlicesEqual(s.balances[account], balances) {
		return false
	}

	stored := make([]models.Balance, len(balances))
	copy(stored, balances)
	s.balances[account] = stored
	s.persist.save(ctx, balancesKey, s.balances)
	return true
}

// Clear drops every account's balances, persisting the empty state.
// Hydration is unaffected.
func (s *BalanceStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances = make(map[string][]models.Balance)
	s.persist.save(ctx, balancesKey, s.balances)
}

func normalizeAccount(account string) string {
	return strings.ToLower(account)
}

func balanceSlicesEqual(a, b []models.Balance) bool {
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
