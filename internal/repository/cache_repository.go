package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

// CacheStore is the byte-level store behind the cache repository.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheRepository stores JSON-encoded lookup results in a CacheStore.
type CacheRepository struct {
	store  CacheStore
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil store disables caching.
func NewCacheRepository(store CacheStore, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{store: store, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.store == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.store == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	return r.store.Set(ctx, key, payload, ttl)
}

// DeleteByPrefix removes cached entries whose key starts with prefix.
func (r *CacheRepository) DeleteByPrefix(ctx context.Context, prefix string) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.DeletePrefix(ctx, prefix); err != nil {
		r.logger.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		return err
	}
	return nil
}
