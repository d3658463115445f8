// Package matching cross-references catalog cards with official card entries that encode the same
// card under a different numbering scheme and vocabulary.
//
// # Matching Rules
//
//   - Identifiers: Catalog numbers and official codes are normalized (full-width characters,
//     separators, case) and compared on their base form. Official codes may pack several
//     numbers separated by "/".
//   - Validation: An identifier candidate is accepted only when at least MinAgreements of the
//     compared attributes agree (power, cost, job, category, rarity).
//   - Tie-break: FirstWins keeps the first validated candidate in source order. BestScore prefers
//     the most agreements, then exact code matches, then source order.
//
// # Usage
//
//	idx := matching.NewIndex(entries)
//	m := matching.NewMatcher(2, matching.BestScore)
//	if res, ok := m.MatchIndex(subject, idx); ok {
//		entry := idx.Entry(res.Index)
//	}
package matching
