package blacklist

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blacklist_retry_attempts_total",
	Help: "Revocation cache retry attempts (including the first).",
}, []string{"op"})

// ExpoJitter is an exponential backoff with multiplicative jitter.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && time.Duration(d) > b.Max {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		j := 1 + (rand.Float64()*2-1)*b.Jitter
		d *= j
	}
	return time.Duration(d)
}

var _ Cache = (*Retrying)(nil)

// Retrying decorates a Cache with a bounded retry policy. Connectivity
// blips are absorbed; after the attempts are exhausted the last error is
// surfaced to the caller, who must fail closed. Retries never run
// indefinitely and never mask a still-broken cache as healthy.
type Retrying struct {
	next     Cache
	attempts int
	backoff  ExpoJitter
	log      *zap.Logger
}

// NewRetrying wraps next with up to attempts tries per operation.
func NewRetrying(next Cache, attempts int, backoff ExpoJitter, log *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrying{next: next, attempts: attempts, backoff: backoff, log: log}
}

func (r *Retrying) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.do(ctx, "set", func() error {
		return r.next.SetWithTTL(ctx, key, value, ttl)
	})
}

func (r *Retrying) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := r.do(ctx, "exists", func() error {
		var err error
		found, err = r.next.Exists(ctx, key)
		return err
	})
	return found, err
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		retryAttempts.WithLabelValues(op).Inc()
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		// Invalid input is not a connectivity problem; retrying cannot help.
		if errors.Is(lastErr, ErrNonPositiveTTL) || ctx.Err() != nil {
			return lastErr
		}
		if attempt < r.attempts-1 {
			r.log.Warn("revocation cache retry",
				zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff.Next(attempt)):
			}
		}
	}
	r.log.Error("revocation cache retries exhausted",
		zap.String("op", op), zap.Error(lastErr))
	return lastErr
}
