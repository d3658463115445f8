// Package batch accumulates document writes and flushes them in atomic batches bounded by the
// store's per-batch operation ceiling.
//
// Mutations that belong together, such as a record and its fingerprint, are added as a group with
// AddGroup. A group never straddles two batches: when it does not fit in the pending batch, the
// pending batch is committed first. A group larger than the ceiling fails with ErrGroupTooLarge.
//
// Commits pass through a retry.Guard, so transient store errors are retried with backoff.
//
// # Usage
//
//	w := batch.NewWriter(store, guard)
//	err := w.AddGroup(ctx,
//		batch.Set("cards", "4811", rec),
//		batch.Set("cardHashes", "4811", entry),
//	)
//	err = w.Commit(ctx)
package batch
