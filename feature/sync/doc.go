// Package sync implements the checkpointed incremental card catalog sync.
//
// A Controller walks catalog groups in order and hands each group's items to a Processor in
// sub-batches. Progress is persisted as a Checkpoint in the document store so that a run which
// reaches its execution budget pauses cleanly and a later run with Resume continues at the stored
// cursor. Groups that keep failing after sub-batch retries are recorded and retried first on the
// next resumed run.
//
// # Processors
//
//   - CardProcessor: maps products to card records, skips unchanged fingerprints, fills missing
//     fields from the official card list and flags images that need processing.
//   - PriceProcessor: merges price rows per product and keeps a daily price history.
//
// # HTTP Endpoints
//
//   - POST /sync/cards : Run the card sync.
//   - POST /sync/prices : Run the price sync.
//   - GET /sync/checkpoints/:runId : Show a stored checkpoint.
//   - DELETE /sync/checkpoints/:runId : Clear a stored checkpoint.
package sync
