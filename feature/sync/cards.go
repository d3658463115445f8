package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"card-sync/core/batch"
	"card-sync/core/broker"
	"card-sync/core/changes"
	"card-sync/core/docstore"
	"card-sync/core/fingerprint"
	"card-sync/core/retry"
	"card-sync/feature/catalog"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collections written by the card processor.
const (
	CardsCollection      = "cards"
	CardHashesCollection = "cardHashes"
)

// CardsChanged is the cards.updated event payload.
type CardsChanged struct {
	GroupID    int64   `json:"groupId"`
	ProductIDs []int64 `json:"productIds"`
}

// CardProcessor reconciles catalog products into card records.
type CardProcessor struct {
	source    catalog.Source
	store     docstore.Store
	guard     retry.Guard
	detector  *changes.Detector
	enricher  *Enricher
	images    *ImageDecider
	publisher broker.Publisher
	log       *zap.Logger

	imageConcurrency int
	now              func() time.Time
}

// CardDeps are the collaborators of a CardProcessor. Enricher, Images and Publisher are optional.
type CardDeps struct {
	Source           catalog.Source
	Store            docstore.Store
	StoreGuard       retry.Guard
	Detector         *changes.Detector
	Enricher         *Enricher
	Images           *ImageDecider
	Publisher        broker.Publisher
	Logger           *zap.Logger
	ImageConcurrency int
}

// NewCardProcessor wires a card processor.
func NewCardProcessor(d CardDeps) *CardProcessor {
	if d.StoreGuard == nil {
		d.StoreGuard = retry.Direct
	}
	if d.Publisher == nil {
		d.Publisher = broker.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Images == nil {
		d.Images = NewImageDecider(nil, "", nil)
	}
	if d.ImageConcurrency <= 0 {
		d.ImageConcurrency = 8
	}
	return &CardProcessor{
		source:           d.Source,
		store:            d.Store,
		guard:            d.StoreGuard,
		detector:         d.Detector,
		enricher:         d.Enricher,
		images:           d.Images,
		publisher:        d.Publisher,
		log:              d.Logger,
		imageConcurrency: d.ImageConcurrency,
		now:              time.Now,
	}
}

func (p *CardProcessor) Name() string { return ProcessorCards }

func (p *CardProcessor) Load(ctx context.Context, g catalog.Group) ([]catalog.Product, error) {
	return p.source.Products(ctx, g.GroupID)
}

type cardChange struct {
	rec  *catalog.Record
	prev *catalog.Record
	task *ImageTask
}

// Process maps, detects, enriches and writes one sub-batch of products.
func (p *CardProcessor) Process(ctx context.Context, g catalog.Group, items []catalog.Product, opts Options) (BatchResult, error) {
	res := BatchResult{Processed: len(items)}

	recs := make(map[string]*catalog.Record, len(items))
	fps := make(map[string]string, len(items))
	var order []string
	for _, prod := range items {
		rec, err := catalog.MapProduct(prod)
		switch {
		case errors.Is(err, catalog.ErrSealedProduct):
			res.Skipped++
			continue
		case err != nil:
			res.ItemErrors = append(res.ItemErrors, ItemError{ID: prod.ProductID, GroupID: g.GroupID, Message: err.Error()})
			continue
		}
		if rec.GroupID == 0 {
			rec.GroupID = g.GroupID
		}
		fp, err := fingerprint.Of(rec)
		if err != nil {
			res.ItemErrors = append(res.ItemErrors, ItemError{ID: prod.ProductID, GroupID: g.GroupID, Message: err.Error()})
			continue
		}
		rec.Fingerprint = fp
		id := strconv.FormatInt(rec.ID, 10)
		if _, dup := recs[id]; !dup {
			order = append(order, id)
		}
		recs[id] = &rec
		fps[id] = fp
	}
	if len(order) == 0 {
		return res, nil
	}

	decisions, err := p.detector.ShouldUpdateMany(ctx, fps, opts.ForceUpdate)
	if err != nil {
		return BatchResult{}, fmt.Errorf("detect changes: %w", err)
	}
	var changed, unchanged []string
	for _, id := range order {
		if decisions[id] {
			changed = append(changed, id)
		} else {
			unchanged = append(unchanged, id)
			res.Skipped++
		}
	}

	// Unchanged records written without an official match are re-read so enrichment is retried.
	lookup := changed
	if p.enricher != nil {
		lookup = order
	}
	if len(lookup) == 0 {
		return res, nil
	}

	prev, err := retry.Do(ctx, p.guard, func(ctx context.Context) (map[string]docstore.Document, error) {
		return p.store.GetMany(ctx, CardsCollection, lookup)
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("read previous cards: %w", err)
	}

	work := make([]cardChange, 0, len(changed))
	toEnrich := make([]*catalog.Record, 0, len(changed))
	for _, id := range changed {
		c := cardChange{rec: recs[id]}
		if old, ok := decodeCard(prev, id); ok {
			c.prev = old
			carryOver(c.rec, old)
		}
		work = append(work, c)
		toEnrich = append(toEnrich, c.rec)
	}

	var retries []cardChange
	if p.enricher != nil {
		for _, id := range unchanged {
			old, ok := decodeCard(prev, id)
			if !ok || old.OfficialCode != "" || !NeedsEnrichment(old) {
				continue
			}
			c := cardChange{rec: recs[id], prev: old}
			carryOver(c.rec, old)
			retries = append(retries, c)
			toEnrich = append(toEnrich, c.rec)
		}
	}

	if p.enricher != nil && len(toEnrich) > 0 {
		n, err := p.enricher.Enrich(ctx, toEnrich)
		if err != nil {
			p.log.Warn("Enrichment unavailable, writing catalog data only", zap.Int64("group_id", g.GroupID), zap.Error(err))
		} else if n > 0 {
			p.log.Debug("Enriched cards", zap.Int64("group_id", g.GroupID), zap.Int("count", n))
		}
	}
	for _, c := range retries {
		if c.rec.Enriched {
			work = append(work, c)
			res.Skipped--
		}
	}
	if len(work) == 0 {
		return res, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.imageConcurrency)
	for i := range work {
		c := &work[i]
		eg.Go(func() error {
			prevURL, known := "", c.prev != nil
			if known {
				prevURL = c.prev.ImageURL
			}
			task, err := p.images.Decide(egCtx, *c.rec, prevURL, known)
			if err != nil {
				return err
			}
			c.task = task
			switch {
			case task != nil:
				c.rec.ImageStatus = catalog.ImageStatusPending
			case c.rec.ImageURL != "" && c.rec.ImageStatus == catalog.ImageStatusNone:
				c.rec.ImageStatus = catalog.ImageStatusProcessed
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return BatchResult{}, fmt.Errorf("image decision: %w", err)
	}

	res.Updated = len(work)
	if opts.DryRun {
		return res, nil
	}

	now := p.now().UTC()
	w := batch.NewWriter(p.store, p.guard)
	for _, c := range work {
		c.rec.LastUpdated = now
		id := strconv.FormatInt(c.rec.ID, 10)
		err := w.AddGroup(ctx,
			batch.Set(CardsCollection, id, c.rec),
			p.detector.HashMutation(id, c.rec.Fingerprint),
		)
		if err != nil {
			return BatchResult{}, err
		}
	}
	if err := w.Commit(ctx); err != nil {
		return BatchResult{}, err
	}
	for _, c := range work {
		p.detector.Remember(strconv.FormatInt(c.rec.ID, 10), c.rec.Fingerprint)
	}

	p.publish(ctx, g.GroupID, work)
	return res, nil
}

func decodeCard(docs map[string]docstore.Document, id string) (*catalog.Record, bool) {
	doc, ok := docs[id]
	if !ok {
		return nil, false
	}
	var old catalog.Record
	if err := doc.Decode(&old); err != nil {
		return nil, false
	}
	return &old, true
}

// carryOver keeps state owned by later pipeline stages across rewrites.
func carryOver(rec, old *catalog.Record) {
	rec.ImageStatus = old.ImageStatus
	if rec.ImageURL != old.ImageURL {
		rec.ImageStatus = catalog.ImageStatusNone
	}
	if old.Enriched && rec.OfficialCode == "" {
		rec.OfficialCode = old.OfficialCode
		rec.Enriched = true
	}
}

func (p *CardProcessor) publish(ctx context.Context, groupID int64, work []cardChange) {
	ids := make([]int64, len(work))
	for i, c := range work {
		ids[i] = c.rec.ID
		if c.task == nil {
			continue
		}
		if err := p.publisher.Publish(ctx, broker.KeyImageProcess, c.task); err != nil {
			p.log.Warn("Failed to publish image task", zap.Int64("product_id", c.task.ProductID), zap.Error(err))
		}
	}
	if err := p.publisher.Publish(ctx, broker.KeyCardsUpdated, CardsChanged{GroupID: groupID, ProductIDs: ids}); err != nil {
		p.log.Warn("Failed to publish card changes", zap.Int64("group_id", groupID), zap.Error(err))
	}
}
