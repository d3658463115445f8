// Package fingerprint computes deterministic content hashes over the fields of a record that
// matter to downstream consumers.
//
// The hash is the hex SHA-256 of the canonical JSON encoding of the projection. Map keys are
// encoded in sorted order and every slice is sorted before encoding, so field order and
// collection order never change the result. Timestamps and other bookkeeping fields are left
// out of projections so that rewriting a record alone does not change its fingerprint.
//
// # Usage
//
//	fp, err := fingerprint.Of(rec)
//	fp, err = fingerprint.Compute(map[string]any{"name": "Cloud", "elements": []string{"Wind", "Fire"}})
package fingerprint
