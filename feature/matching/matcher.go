package matching

import (
	"fmt"
	"sort"
	"strings"
)

// TieBreak selects between several validated candidates.
type TieBreak int

const (
	// FirstWins accepts the first validated candidate in source order.
	FirstWins TieBreak = iota
	// BestScore accepts the candidate with most agreements, preferring exact code matches,
	// then source order.
	BestScore
)

// ParseTieBreak reads a tie-break policy name.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_wins", "first":
		return FirstWins, nil
	case "best_score", "best":
		return BestScore, nil
	default:
		return FirstWins, fmt.Errorf("unknown tie-break policy %q", s)
	}
}

// Attributes are the fields compared to corroborate an identifier match.
type Attributes struct {
	Power    string
	Cost     string
	Job      string
	Category string
	Rarity   string
}

// Subject is the catalog side of a match.
type Subject struct {
	ID      int64
	Numbers []string
	Attributes
}

// Entry is the official side of a match. Code may pack several numbers separated by "/".
type Entry struct {
	Code string
	Attributes
}

// Result is a validated association between a catalog card and an official entry.
type Result struct {
	CatalogID         int64
	Code              string
	Index             int
	Score             int
	Exact             bool
	MatchedAttributes []string
}

// Matcher validates identifier candidates with attribute agreement.
type Matcher struct {
	MinAgreements int
	TieBreak      TieBreak
}

// NewMatcher returns a matcher; minAgreements below 1 defaults to 2.
func NewMatcher(minAgreements int, tieBreak TieBreak) Matcher {
	if minAgreements < 1 {
		minAgreements = 2
	}
	return Matcher{MinAgreements: minAgreements, TieBreak: tieBreak}
}

// Match looks s up in entries.
func (m Matcher) Match(s Subject, entries []Entry) (*Result, bool) {
	return m.MatchIndex(s, NewIndex(entries))
}

// MatchIndex looks s up in a prebuilt index.
func (m Matcher) MatchIndex(s Subject, idx *Index) (*Result, bool) {
	exact := make(map[string]bool, len(s.Numbers))
	for _, n := range s.Numbers {
		exact[Normalize(n)] = true
	}

	var best *Result
	for _, i := range idx.Candidates(s.Numbers) {
		e := idx.entries[i]
		matched := Agreements(s.Attributes, e.Attributes)
		if len(matched) < m.MinAgreements {
			continue
		}
		r := &Result{
			CatalogID:         s.ID,
			Code:              e.Code,
			Index:             i,
			Score:             len(matched),
			Exact:             sharesFragment(exact, idx.fragments[i]),
			MatchedAttributes: matched,
		}
		if m.TieBreak == FirstWins {
			return r, true
		}
		if best == nil || r.Score > best.Score || (r.Score == best.Score && r.Exact && !best.Exact) {
			best = r
		}
	}
	return best, best != nil
}

// Agreements returns the names of the attributes on which a and b agree. Empty values never agree;
// job and category count as one attribute.
func Agreements(a, b Attributes) []string {
	var out []string
	if eq(a.Power, b.Power) {
		out = append(out, "power")
	}
	if eq(a.Cost, b.Cost) {
		out = append(out, "cost")
	}
	if eq(a.Job, b.Job) || eq(a.Category, b.Category) {
		out = append(out, "job")
	}
	if r := FoldRarity(a.Rarity); r != "" && r == FoldRarity(b.Rarity) {
		out = append(out, "rarity")
	}
	return out
}

func eq(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func sharesFragment(numbers map[string]bool, fragments []string) bool {
	for _, f := range fragments {
		if numbers[f] {
			return true
		}
	}
	return false
}

// Index buckets entries by the base form of every code fragment.
type Index struct {
	entries   []Entry
	fragments [][]string
	byBase    map[string][]int
}

// NewIndex builds an index preserving source order within each bucket.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		entries:   entries,
		fragments: make([][]string, len(entries)),
		byBase:    make(map[string][]int),
	}
	for i, e := range entries {
		frags := SplitCodes(e.Code)
		idx.fragments[i] = frags
		seen := make(map[string]bool, len(frags))
		for _, f := range frags {
			b := Base(f)
			if seen[b] {
				continue
			}
			seen[b] = true
			idx.byBase[b] = append(idx.byBase[b], i)
		}
	}
	return idx
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entry returns the entry at source position i.
func (idx *Index) Entry(i int) Entry {
	return idx.entries[i]
}

// Candidates returns the source positions of entries sharing a fragment with numbers, exactly or
// ignoring a trailing rarity letter, in source order.
func (idx *Index) Candidates(numbers []string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range numbers {
		for _, i := range idx.byBase[Base(n)] {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}
