// Package docstore is the document-store layer the sync engine persists into.
//
// Documents are JSON bodies addressed by (collection, id). The Store interface exposes point
// reads and writes, ordered keyset scans, a counting query and an atomic batch primitive with a
// hard per-batch operation ceiling (500 by default).
//
// Two implementations are provided:
//   - GormStore keeps every collection in a single `documents` table with a JSON column
//     (MySQL in production, SQLite for local runs and tests). A batch is one transaction.
//   - MemoryStore keeps everything in process. It is used for dry runs and tests and can
//     inject commit failures.
package docstore
