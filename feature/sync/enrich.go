package sync

import (
	"context"

	"card-sync/feature/catalog"
	"card-sync/feature/matching"
	"card-sync/feature/official"
)

// Enricher fills missing card fields from the official card list.
type Enricher struct {
	cache   *official.Cache
	matcher matching.Matcher
}

// NewEnricher creates an enricher over a cached official catalog.
func NewEnricher(cache *official.Cache, matcher matching.Matcher) *Enricher {
	return &Enricher{cache: cache, matcher: matcher}
}

// NeedsEnrichment reports whether rec lacks fields the official list can provide.
func NeedsEnrichment(rec *catalog.Record) bool {
	if rec.OfficialCode == "" {
		return true
	}
	return rec.Cost == "" || rec.Power == "" || rec.Job == "" || rec.Category == "" ||
		rec.CardType == "" || rec.Description == "" || len(rec.Elements) == 0
}

// Enrich matches every record that needs it and fills its empty fields. It returns the number of
// records enriched.
func (e *Enricher) Enrich(ctx context.Context, recs []*catalog.Record) (int, error) {
	var todo []*catalog.Record
	for _, r := range recs {
		if NeedsEnrichment(r) {
			todo = append(todo, r)
		}
	}
	if len(todo) == 0 {
		return 0, nil
	}

	cat, err := e.cache.Get(ctx, official.Filter{})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range todo {
		res, ok := e.matcher.MatchIndex(subjectOf(r), cat.Index)
		if !ok {
			continue
		}
		apply(r, cat.Records[res.Index], res.Code)
		n++
	}
	return n, nil
}

func subjectOf(r *catalog.Record) matching.Subject {
	return matching.Subject{
		ID:      r.ID,
		Numbers: r.Numbers,
		Attributes: matching.Attributes{
			Power:    r.Power,
			Cost:     r.Cost,
			Job:      r.Job,
			Category: r.Category,
			Rarity:   r.Rarity,
		},
	}
}

// apply copies official values into empty fields only.
func apply(r *catalog.Record, o official.Record, code string) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&r.Cost, o.Cost)
	fill(&r.Power, o.Power)
	fill(&r.Job, o.Job)
	fill(&r.Category, o.Category)
	fill(&r.CardType, o.Type)
	fill(&r.Description, o.Text)
	if len(r.Elements) == 0 && len(o.Elements) > 0 {
		r.Elements = append([]string(nil), o.Elements...)
	}
	r.OfficialCode = code
	r.Enriched = true
}
