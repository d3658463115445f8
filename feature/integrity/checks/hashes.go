package checks

import (
	"context"
	"fmt"
	"sort"

	"card-sync/core/batch"
	"card-sync/core/changes"
	"card-sync/core/docstore"
)

// DefaultPageSize is the number of documents read per scan page.
const DefaultPageSize = 500

// HashReport strictly types the result of a fingerprint cache audit.
type HashReport struct {
	Records    string   `json:"records"`
	Hashes     string   `json:"hashes"`
	Scanned    int      `json:"scanned"`
	Missing    []string `json:"missing"`
	Orphans    []string `json:"orphans"`
	Mismatched []string `json:"mismatched"`
	Status     string   `json:"status"` // "ok", "drift"
}

// Clean reports whether the hash collection agrees with the record collection.
func (r *HashReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Mismatched) == 0
}

// Scan walks every document of collection in id order.
func Scan(ctx context.Context, store docstore.Store, collection string, pageSize int, fn func(docstore.Document) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	after := ""
	for {
		docs, err := store.Scan(ctx, collection, after, pageSize)
		if err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		for _, d := range docs {
			if err := fn(d); err != nil {
				return err
			}
		}
		if len(docs) < pageSize {
			return nil
		}
		after = docs[len(docs)-1].ID
	}
}

// CheckHashes compares the stored fingerprints in hashes with the fingerprint embedded in each
// record of records. A record without a hash is reported missing, a hash without a record is an
// orphan and a hash that differs from the record is mismatched.
func CheckHashes(ctx context.Context, store docstore.Store, records, hashes string, pageSize int) (*HashReport, error) {
	stored := make(map[string]string)
	err := Scan(ctx, store, hashes, pageSize, func(d docstore.Document) error {
		var e changes.Entry
		if err := d.Decode(&e); err != nil {
			return fmt.Errorf("decode %s/%s: %w", hashes, d.ID, err)
		}
		stored[d.ID] = e.Hash
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &HashReport{
		Records:    records,
		Hashes:     hashes,
		Missing:    []string{},
		Orphans:    []string{},
		Mismatched: []string{},
		Status:     "ok",
	}
	err = Scan(ctx, store, records, pageSize, func(d docstore.Document) error {
		report.Scanned++
		var rec struct {
			Fingerprint string `json:"fingerprint"`
		}
		if err := d.Decode(&rec); err != nil {
			return fmt.Errorf("decode %s/%s: %w", records, d.ID, err)
		}
		hash, ok := stored[d.ID]
		delete(stored, d.ID)
		switch {
		case !ok:
			report.Missing = append(report.Missing, d.ID)
		case hash != rec.Fingerprint:
			report.Mismatched = append(report.Mismatched, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id := range stored {
		report.Orphans = append(report.Orphans, id)
	}
	sort.Strings(report.Orphans)
	if !report.Clean() {
		report.Status = "drift"
	}
	return report, nil
}

// FixHashes deletes orphaned and mismatched hash entries so the next sync rewrites the affected
// records and their fingerprints together. It returns the number of deleted entries.
func FixHashes(ctx context.Context, w *batch.Writer, report *HashReport) (int, error) {
	n := 0
	for _, ids := range [][]string{report.Orphans, report.Mismatched} {
		for _, id := range ids {
			if err := w.Add(ctx, batch.Delete(report.Hashes, id)); err != nil {
				return n, err
			}
			n++
		}
	}
	if err := w.Commit(ctx); err != nil {
		return n, err
	}
	return n, nil
}
