package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "MarketRadar/pkg/cache"
)

// ServiceCache adapts a pkg/cache Service (memory or Redis) to BytesCache.
type ServiceCache struct {
	svc     pkgcache.Service
	timeout time.Duration
}

var _ BytesCache = (*ServiceCache)(nil)

func NewServiceCache(svc pkgcache.Service) *ServiceCache {
	return &ServiceCache{svc: svc, timeout: 2 * time.Second}
}

func (s *ServiceCache) GetBytes(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var b []byte
	if err := s.svc.Get(ctx, key, &b); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s *ServiceCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.svc.Set(ctx, key, value, ttl)
}
