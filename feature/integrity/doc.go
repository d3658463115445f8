// Package integrity audits the state the sync leaves behind.
//
// # Checks Provided
//
//   - Hashes: Compares the fingerprint cache of cards or prices with the stored records. Orphaned
//     and mismatched fingerprints can be dropped so the next sync rewrites the affected records.
//   - Images: Verifies that cards marked processed have their image object in the bucket. Missing
//     images can be requeued on the broker.
//   - Schema: Validates that the documents table matches the store model (columns, types).
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all read-only checks.
//   - GET /integrity/hashes : Runs the fingerprint check (supports ?processor=prices and ?fix=true).
//   - GET /integrity/images : Runs the image check (supports ?fix=true).
//   - GET /integrity/schema : Runs the schema check.
package integrity
