// Package resilience keeps the back-office responsive when its database
// misbehaves: bounded retry while connecting, a circuit breaker in front of
// every storage call and a bulkhead over in-flight API requests.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds resilience parameters loaded from the environment.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration // 0 means uncapped
	MaxConcurrency int
	QueueTimeout   time.Duration // how long a request may wait for a bulkhead slot
}

// ============================================================
// Retry
// ============================================================

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. rejected credentials or
// an unknown database. RetryWithBackoff returns the unwrapped error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff calls fn until it succeeds, fails permanently, spends
// MaxRetries retries or ctx ends.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff doubles InitialBackoff per attempt, caps it at MaxBackoff and
// adds up to 50% jitter.
func (c Config) backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < attempt && d > 0; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			d = c.MaxBackoff
			break
		}
	}
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int63n(half))
	}
	return d
}

// ============================================================
// Circuit breaker
// ============================================================

// StateObserver is told about every breaker transition.
type StateObserver func(name string, from, to gobreaker.State)

// LogStateChanges logs transitions: Warn when the breaker opens, Info otherwise.
func LogStateChanges(logger *zap.Logger) StateObserver {
	return func(name string, from, to gobreaker.State) {
		fields := []zap.Field{
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		}
		if to == gobreaker.StateOpen {
			logger.Warn("circuit breaker opened: storage calls fail fast", fields...)
			return
		}
		logger.Info("circuit breaker state change", fields...)
	}
}

// NewCircuitBreaker returns the storage breaker. It opens once at least 5
// calls inside a 30s window failed at a 60% ratio, lets 3 trial calls through
// after 10s, and reports transitions to observers.
func NewCircuitBreaker(name string, observers ...StateObserver) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			for _, observe := range observers {
				observe(name, from, to)
			}
		},
	})
}

// ============================================================
// Bulkhead
// ============================================================

// ErrBulkheadFull is returned when no slot frees up within the queue timeout.
var ErrBulkheadFull = errors.New("bulkhead full")

// Bulkhead bounds concurrent API requests.
type Bulkhead struct {
	slots        chan struct{}
	queueTimeout time.Duration
}

// NewBulkhead admits at most maxConcurrency holders. A caller waits up to
// queueTimeout for a slot; zero means until its context ends.
func NewBulkhead(maxConcurrency int, queueTimeout time.Duration) *Bulkhead {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Bulkhead{slots: make(chan struct{}, maxConcurrency), queueTimeout: queueTimeout}
}

// Acquire takes a slot, or fails with ErrBulkheadFull or the context error.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if b.queueTimeout > 0 {
		timer := time.NewTimer(b.queueTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-expired:
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.slots
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.slots)
}

// Capacity returns the maximum number of holders.
func (b *Bulkhead) Capacity() int {
	return cap(b.slots)
}
