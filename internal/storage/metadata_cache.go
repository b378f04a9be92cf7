package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
)

const metadataKeyPrefix = "minter:meta:"

// MetadataCacheStore persists resolved IPFS metadata documents in Redis,
// keyed by CID. Lookup errors and malformed blobs count as misses so a
// degraded cache never blocks enrichment.
type MetadataCacheStore struct {
	cache  *RedisCache
	ttl    time.Duration
	logger *logging.Logger
}

// NewMetadataCacheStore creates a Redis-backed metadata cache
func NewMetadataCacheStore(cache *RedisCache, ttl time.Duration) *MetadataCacheStore {
	return &MetadataCacheStore{
		cache:  cache,
		ttl:    ttl,
		logger: logging.GetGlobalLogger().WithField("component", "metadata-cache"),
	}
}

// GetMetadata looks up a cached metadata document by CID
func (s *MetadataCacheStore) GetMetadata(ctx context.Context, cid string) (*models.IPFSMetadata, bool) {
	raw, err := s.cache.Get(ctx, metadataKeyPrefix+cid)
	if err != nil {
		return nil, false
	}

	var meta models.IPFSMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.logger.WithField("cid", cid).Warn("Discarding malformed cached metadata")
		_ = s.cache.Del(ctx, metadataKeyPrefix+cid)
		return nil, false
	}
	return &meta, true
}

// SetMetadata stores a metadata document under its CID
func (s *MetadataCacheStore) SetMetadata(ctx context.Context, cid string, meta *models.IPFSMetadata) {
	if meta == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, metadataKeyPrefix+cid, data, s.ttl); err != nil {
		s.logger.WithError(err).WithField("cid", cid).Warn("Failed to cache metadata")
	}
}
