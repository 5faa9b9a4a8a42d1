package blacklist

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Cache = (*Memory)(nil)

// Memory is an in-process Cache backed by go-cache. Entries vanish at
// their TTL; the janitor sweeps expired keys so memory does not grow with
// logout volume.
type Memory struct {
	c *gocache.Cache
}

// NewMemory constructs the in-process revocation cache.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, found := m.c.Get(key)
	return found, nil
}
