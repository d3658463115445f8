package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned for work submitted to, or still queued in, a closed limiter.
var ErrClosed = errors.New("rate limiter closed")

// Config holds the throughput budget.
type Config struct {
	// RateBudget is the number of operations allowed per Window.
	RateBudget int `mapstructure:"rate_budget" default:"500"`
	// Window is the budget period.
	Window time.Duration `mapstructure:"window" default:"1s"`
	// IntervalCount splits the window into equal intervals.
	IntervalCount int `mapstructure:"interval_count" default:"10"`
	// MaxConcurrentBatches bounds interval batches in flight.
	MaxConcurrentBatches int `mapstructure:"max_concurrent_batches" default:"3"`
	// QueueSize is the FIFO capacity; Do blocks while the queue is full.
	QueueSize int `mapstructure:"queue_size" default:"1024"`
}

// PerInterval returns ceil(RateBudget / IntervalCount).
func (c Config) PerInterval() int {
	n := c.intervals()
	per := (c.RateBudget + n - 1) / n
	if per < 1 {
		return 1
	}
	return per
}

// Interval returns Window / IntervalCount.
func (c Config) Interval() time.Duration {
	return c.Window / time.Duration(c.intervals())
}

func (c Config) intervals() int {
	if c.IntervalCount < 1 {
		return 1
	}
	return c.IntervalCount
}

type task struct {
	ctx    context.Context
	op     func(ctx context.Context) error
	result chan error
}

// Limiter executes queued operations at no more than PerInterval per Interval.
type Limiter struct {
	cfg      Config
	per      int
	interval time.Duration
	queue    chan *task
	sem      *semaphore.Weighted
	log      *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a limiter. Call Close to stop it.
func New(cfg Config, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxConcurrentBatches < 1 {
		cfg.MaxConcurrentBatches = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		cfg:      cfg,
		per:      cfg.PerInterval(),
		interval: cfg.Interval(),
		queue:    make(chan *task, cfg.QueueSize),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches)),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Do queues op and waits for its result.
func (l *Limiter) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if l.ctx.Err() != nil {
		return ErrClosed
	}
	t := &task{ctx: ctx, op: op, result: make(chan error, 1)}
	select {
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.queue <- t:
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-t.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop, waits for in-flight batches and fails queued work with ErrClosed.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		<-l.done
	})
}

func (l *Limiter) run() {
	defer close(l.done)
	for {
		var first *task
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return
		case first = <-l.queue:
		}

		started := time.Now()
		batch := l.fill(first)
		if err := l.sem.Acquire(l.ctx, 1); err != nil {
			fail(batch, ErrClosed)
			l.shutdown()
			return
		}
		l.inflight.Add(1)
		go l.execute(batch)

		wait := l.interval - time.Since(started)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-l.ctx.Done():
			timer.Stop()
			l.shutdown()
			return
		case <-timer.C:
		}
	}
}

func (l *Limiter) fill(first *task) []*task {
	batch := make([]*task, 1, l.per)
	batch[0] = first
	for len(batch) < l.per {
		select {
		case t := <-l.queue:
			batch = append(batch, t)
		default:
			return batch
		}
	}
	return batch
}

// execute runs every operation of an interval batch concurrently and isolates their failures.
func (l *Limiter) execute(batch []*task) {
	defer l.inflight.Done()
	defer l.sem.Release(1)

	var wg sync.WaitGroup
	for _, t := range batch {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			err := l.call(t)
			if err != nil {
				l.log.Warn("Rate limited operation failed", zap.Error(err))
			}
			t.result <- err
		}(t)
	}
	wg.Wait()
}

func (l *Limiter) call(t *task) (err error) {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return t.op(t.ctx)
}

func (l *Limiter) shutdown() {
	l.inflight.Wait()
	for {
		select {
		case t := <-l.queue:
			t.result <- ErrClosed
		default:
			return
		}
	}
}

func fail(batch []*task, err error) {
	for _, t := range batch {
		t.result <- err
	}
}
