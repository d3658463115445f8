// Package ratelimit bounds outbound throughput with a queued, interval-batched worker loop.
//
// Config.Window is split into Config.IntervalCount equal intervals. At the start of each
// interval the worker drains up to PerInterval operations from the FIFO queue and runs them as
// one batch. At most Config.MaxConcurrentBatches batches run at a time, guarded by a weighted
// semaphore. Do blocks while the queue is full and returns the operation's own error.
//
// Close stops the worker. Operations still queued fail with ErrClosed.
//
// # Usage
//
//	l := ratelimit.New(cfg.RateLimit, log)
//	defer l.Close()
//	err := l.Do(ctx, func(ctx context.Context) error {
//		return store.Set(ctx, "cards", "4811", rec)
//	})
package ratelimit
