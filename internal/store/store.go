// Package store provides the in-memory state the API serves from: tokens,
// reconciled trade histories, and account balances. Each store persists its
// contents to Redis as a JSON blob and hydrates from it exactly once on
// startup; a missing or malformed blob simply means a cold start.
package store

import (
	"context"
	"encoding/json"

	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/storage"
)

const keyPrefix = "minter:store:"

// persistence wraps the Redis cache for store snapshots. All failures
// degrade: a load error is a cold start, a save error only logs.
type persistence struct {
	cache  *storage.RedisCache
	logger *logging.Logger
}

func newPersistence(cache *storage.RedisCache, component string) *persistence {
	return &persistence{
		cache:  cache,
		logger: logging.GetGlobalLogger().WithField("component", component),
	}
}

// load reads and decodes a snapshot into dest. Returns false on a missing
// key, a cache error, or a malformed blob; malformed blobs are deleted so
// they do not shadow future snapshots.
func (p *persistence) load(ctx context.Context, key string, dest interface{}) bool {
	if p.cache == nil {
		return false
	}

	raw, err := p.cache.Get(ctx, keyPrefix+key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		p.logger.WithField("key", key).Warn("Discarding malformed persisted snapshot")
		_ = p.cache.Del(ctx, keyPrefix+key)
		return false
	}
	return true
}

// save encodes and writes a snapshot. Snapshots have no TTL; they are
// overwritten on every accepted update.
func (p *persistence) save(ctx context.Context, key string, v interface{}) {
	if p.cache == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Error("Failed to encode snapshot")
		return
	}
	if err := p.cache.Set(ctx, keyPrefix+key, data, 0); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Failed to persist snapshot")
	}
}
