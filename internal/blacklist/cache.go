// Package blacklist provides the revocation cache: a key-value store with
// per-key TTL holding denylist entries for explicitly logged-out access
// tokens. Entries expire on their own; nothing here needs cleanup.
package blacklist

import (
	"context"
	"errors"
	"time"
)

// ErrNonPositiveTTL rejects writes that would never protect anything: a
// token already past its expiry needs no denylist entry.
var ErrNonPositiveTTL = errors.New("blacklist: ttl must be positive")

// Cache is the minimal surface the session service needs. The in-memory
// implementation lives in this package; a remote store slots in behind
// the same interface.
type Cache interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type failing struct{ err error }

// NewFailing returns a Cache whose every operation fails with err. Used by
// tests to exercise fail-closed paths.
func NewFailing(err error) Cache { return failing{err: err} }

func (f failing) SetWithTTL(context.Context, string, string, time.Duration) error {
	return f.err
}

func (f failing) Exists(context.Context, string) (bool, error) {
	return false, f.err
}
