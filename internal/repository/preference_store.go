package repository

import (
	"context"
	"errors"
	"fmt"

	"MarketRadar/internal/domain/repository"
	"MarketRadar/pkg/cache"
)

const preferencePrefix = "pref"

// CachePreferenceStore keeps preferences as plain strings in a cache backend.
// Entries never expire.
type CachePreferenceStore struct {
	cache cache.Service
}

var _ repository.PreferenceStore = (*CachePreferenceStore)(nil)

func NewCachePreferenceStore(c cache.Service) *CachePreferenceStore {
	return &CachePreferenceStore{cache: c}
}

func (s *CachePreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.cache.Get(ctx, cache.Key(preferencePrefix, key), &v)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, true, nil
}

func (s *CachePreferenceStore) Set(ctx context.Context, key, value string) error {
	if err := s.cache.Set(ctx, cache.Key(preferencePrefix, key), value, 0); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *CachePreferenceStore) Delete(ctx context.Context, keys ...string) error {
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = cache.Key(preferencePrefix, k)
	}
	if err := s.cache.Delete(ctx, wrapped...); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

func (s *CachePreferenceStore) Clear(ctx context.Context) error {
	if err := s.cache.DeleteByPattern(ctx, cache.BuildPattern(preferencePrefix+":")); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}
