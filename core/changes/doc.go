// Package changes decides whether a record needs rewriting by comparing its fingerprint with the
// stored one.
//
// Stored fingerprints are read through a bounded expirable LRU cache owned by the detector.
// Cache misses are fetched from the store in parallel chunks of Config.LookupBatchSize, and
// concurrent lookups of the same id collapse into one read. A record with no stored
// fingerprint always needs an update, as does every record when force is set.
//
// The detector never writes on its own. Callers stage HashMutation next to the record write so
// both land in the same batch, then call Remember once the batch has committed.
//
// # Usage
//
//	d := changes.NewDetector(store, "cardHashes", cfg.Changes, guard)
//	decisions, err := d.ShouldUpdateMany(ctx, map[string]string{"4811": fp}, false)
//	if decisions["4811"] {
//		err = w.AddGroup(ctx, batch.Set("cards", "4811", rec), d.HashMutation("4811", fp))
//	}
package changes
