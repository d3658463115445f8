package retry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Operation is a unit of work guarded by an Executor.
type Operation = func(ctx context.Context) error

// Guard runs an operation under some protection (retry, rate limiting or both).
type Guard func(ctx context.Context, op Operation) error

// Direct runs operations unguarded.
func Direct(ctx context.Context, op Operation) error {
	return op(ctx)
}

// Stats is a snapshot of executor counters.
type Stats struct {
	Attempts     int64 `json:"attempts"`
	Retries      int64 `json:"retries"`
	Successes    int64 `json:"successes"`
	Failures     int64 `json:"failures"`
	BreakerTrips int64 `json:"breakerTrips"`
}

type counters struct {
	attempts, retries, successes, failures, trips atomic.Int64
}

// Executor retries classified failures and guards the dependency with a circuit breaker.
type Executor struct {
	policy  Policy
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
	stats   counters
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor for a named dependency.
func NewExecutor(name string, policy Policy, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{policy: policy, log: log.With(zap.String("breaker", name)), sleep: sleepCtx}
	threshold := uint32(policy.FailureThreshold)
	if threshold == 0 {
		threshold = 1
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     policy.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// a dependency that answered with a permanent error is healthy
		IsSuccessful: func(err error) bool {
			return err == nil || Classify(err) == NonRetryable
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				e.stats.trips.Add(1)
			}
			e.log.Warn("Circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return e
}

// State returns the breaker state name (closed, half-open, open).
func (e *Executor) State() string {
	return e.breaker.State().String()
}

// Execute runs op until it succeeds, fails permanently, or exhausts its retry ceiling.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	var transient, quota int
	for attempt := 1; ; attempt++ {
		e.stats.attempts.Add(1)
		_, err := e.breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			e.stats.successes.Add(1)
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.stats.failures.Add(1)
			return fmt.Errorf("%w: %s", ErrCircuitOpen, e.breaker.Name())
		}
		if ctx.Err() != nil {
			e.stats.failures.Add(1)
			return err
		}

		var delay time.Duration
		class := Classify(err)
		switch class {
		case Transient:
			if transient >= e.policy.MaxRetries {
				e.stats.failures.Add(1)
				return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			delay = e.policy.Delay(transient)
			transient++
		case ResourceExhausted:
			if quota >= e.policy.QuotaMaxRetries {
				e.stats.failures.Add(1)
				return fmt.Errorf("quota exhausted after %d attempts: %w", attempt, err)
			}
			delay = e.policy.QuotaBackoff(quota)
			quota++
		default:
			e.stats.failures.Add(1)
			return err
		}

		e.stats.retries.Add(1)
		e.log.Debug("Retrying operation",
			zap.Int("attempt", attempt),
			zap.Stringer("class", class),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := e.sleep(ctx, delay); serr != nil {
			e.stats.failures.Add(1)
			return err
		}
	}
}

// Guard returns a Guard that retries around inner. A nil inner runs operations directly.
func (e *Executor) Guard(inner Guard) Guard {
	if inner == nil {
		inner = Direct
	}
	return func(ctx context.Context, op Operation) error {
		return e.Execute(ctx, func(ctx context.Context) error {
			return inner(ctx, op)
		})
	}
}

// Stats returns a snapshot of the counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Attempts:     e.stats.attempts.Load(),
		Retries:      e.stats.retries.Load(),
		Successes:    e.stats.successes.Load(),
		Failures:     e.stats.failures.Load(),
		BreakerTrips: e.stats.trips.Load(),
	}
}

// Report emits a stats snapshot every interval until ctx is done.
func (e *Executor) Report(ctx context.Context, every time.Duration, emit func(Stats)) {
	if every <= 0 || emit == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit(e.Stats())
		}
	}
}

// Do runs fn through g and returns its value.
func Do[T any](ctx context.Context, g Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
