package store

import (
	"context"
	"sync"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/types"
)

const tokensKey = "tokens"

// TokenStore holds the enriched token list. Setters are gated on value
// equality, so a refresh cycle that observes no change neither persists
// nor notifies anyone.
type TokenStore struct {
	mu      sync.RWMutex
	state   types.HydrationState
	tokens  []models.Token
	index   map[string]int
	persist *persistence
}

// NewTokenStore creates a token store backed by the given cache. A nil
// cache disables persistence.
func NewTokenStore(cache *storage.RedisCache) *TokenStore {
	return &TokenStore{
		state:   types.HydrationCold,
		index:   make(map[string]int),
		persist: newPersistence(cache, "token-store"),
	}
}

// Hydrate loads the persisted token snapshot. The store transitions from
// cold to hydrated exactly once; later calls are no-ops.
func (s *TokenStore) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == types.HydrationHydrated {
		return
	}

	var tokens []models.Token
	if s.persist.load(ctx, tokensKey, &tokens) {
		s.tokens = tokens
		s.reindex()
	}
	s.state = types.HydrationHydrated
}

// State returns the hydration state
func (s *TokenStore) State() types.HydrationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Tokens returns a copy of the token list
func (s *TokenStore) Tokens() []models.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Get returns a token by id
func (s *TokenStore) Get(tokenID string) (models.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[tokenID]
	if !ok {
		return models.Token{}, false
	}
	return s.tokens[i], true
}

// LatestBlockTimestamp returns the newest creation sighting across the
// tracked tokens, or 0 when none is recorded.
func (s *TokenStore) LatestBlockTimestamp() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for _, t := range s.tokens {
		if t.BlockTimestamp > latest {
			latest = t.BlockTimestamp
		}
	}
	return latest
}

// Len returns the number of tracked tokens
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// SetTokens replaces the token list. Returns false without persisting when
// the new list is value-equal to the current one.
func (s *TokenStore) SetTokens(ctx context.Context, tokens []models.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenSlicesEqual(s.tokens, tokens) {
		return false
	}

	s.tokens = make([]models.Token, len(tokens))
	copy(s.tokens, tokens)
	s.reindex()
	s.persist.save(ctx, tokensKey, s.tokens)
	return true
}

// UpsertToken inserts or updates one token. Returns false without
// persisting when the stored token is value-equal.
func (s *TokenStore) UpsertToken(ctx context.Context, token models.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[token.TokenID]; ok {
		if s.tokens[i].Equal(&token) {
			return false
		}
		s.tokens[i] = token
	} else {
		s.index[token.TokenID] = len(s.tokens)
		s.tokens = append(s.tokens, token)
	}

	s.persist.save(ctx, tokensKey, s.tokens)
	return true
}

// Clear drops the token list, persisting the empty state. Hydration is
// unaffected.
func (s *TokenStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nil
	s.index = make(map[string]int)
	s.persist.save(ctx, tokensKey, []models.Token{})
}

// reindex rebuilds the id lookup. Caller holds the write lock.
func (s *TokenStore) reindex() {
	s.index = make(map[string]int, len(s.tokens))
	for i, t := range s.tokens {
		s.index[t.TokenID] = i
	}
}

func tokenSlicesEqual(a, b []models.Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}
