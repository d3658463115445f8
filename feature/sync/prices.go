package sync

import (
	"context"
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
)

// Collections written by the price processor.
const (
	PricesCollection           = "prices"
	PriceHashesCollection      = "priceHashes"
	HistoricalPricesCollection = "historicalPrices"
)

// PriceSnapshot is the daily history entry of a price.
type PriceSnapshot struct {
	ProductID int64               `json:"productId"`
	GroupID   int64               `json:"groupId"`
	Date      string              `json:"date"`
	Normal    *catalog.PricePoint `json:"normal"`
	Foil      *catalog.PricePoint `json:"foil"`
	Timestamp time.Time           `json:"timestamp"`
}

// PricesChanged is the prices.updated event payload.
type PricesChanged struct {
	GroupID    int64   `json:"groupId"`
	ProductIDs []int64 `json:"productIds"`
}

// PriceProcessor reconciles catalog prices with a daily history snapshot.
type PriceProcessor struct {
	source    catalog.Source
	store     docstore.Store
	guard     retry.Guard
	detector  *changes.Detector
	publisher broker.Publisher
	log       *zap.Logger
	now       func() time.Time
}

// NewPriceProcessor wires a price processor.
func NewPriceProcessor(source catalog.Source, store docstore.Store, guard retry.Guard, detector *changes.Detector, publisher broker.Publisher, log *zap.Logger) *PriceProcessor {
	if guard == nil {
		guard = retry.Direct
	}
	if publisher == nil {
		publisher = broker.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PriceProcessor{
		source:    source,
		store:     store,
		guard:     guard,
		detector:  detector,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func (p *PriceProcessor) Name() string { return ProcessorPrices }

func (p *PriceProcessor) Load(ctx context.Context, g catalog.Group) ([]catalog.PriceRecord, error) {
	rows, err := p.source.Prices(ctx, g.GroupID)
	if err != nil {
		return nil, err
	}
	return catalog.GroupPrices(g.GroupID, rows), nil
}

// HistoryID is the snapshot document id of a price on a given day.
func HistoryID(productID int64, day time.Time) string {
	return fmt.Sprintf("%d_%s", productID, day.UTC().Format("2006-01-02"))
}

func (p *PriceProcessor) Process(ctx context.Context, g catalog.Group, items []catalog.PriceRecord, opts Options) (BatchResult, error) {
	res := BatchResult{Processed: len(items)}

	byID := make(map[string]*catalog.PriceRecord, len(items))
	fps := make(map[string]string, len(items))
	var order []string
	for i := range items {
		pr := items[i]
		fp, err := fingerprint.Of(pr)
		if err != nil {
			res.ItemErrors = append(res.ItemErrors, ItemError{ID: pr.ProductID, GroupID: g.GroupID, Message: err.Error()})
			continue
		}
		pr.Fingerprint = fp
		id := strconv.FormatInt(pr.ProductID, 10)
		if _, dup := byID[id]; !dup {
			order = append(order, id)
		}
		byID[id] = &pr
		fps[id] = fp
	}
	if len(order) == 0 {
		return res, nil
	}

	decisions, err := p.detector.ShouldUpdateMany(ctx, fps, opts.ForceUpdate)
	if err != nil {
		return BatchResult{}, fmt.Errorf("detect price changes: %w", err)
	}
	var changed []*catalog.PriceRecord
	for _, id := range order {
		if decisions[id] {
			changed = append(changed, byID[id])
		} else {
			res.Skipped++
		}
	}
	res.Updated = len(changed)
	if len(changed) == 0 || opts.DryRun {
		return res, nil
	}

	now := p.now().UTC()
	w := batch.NewWriter(p.store, p.guard)
	ids := make([]int64, 0, len(changed))
	for _, pr := range changed {
		pr.LastUpdated = now
		id := strconv.FormatInt(pr.ProductID, 10)
		snap := PriceSnapshot{
			ProductID: pr.ProductID,
			GroupID:   pr.GroupID,
			Date:      now.Format("2006-01-02"),
			Normal:    pr.Normal,
			Foil:      pr.Foil,
			Timestamp: now,
		}
		err := w.AddGroup(ctx,
			batch.Set(PricesCollection, id, pr),
			p.detector.HashMutation(id, pr.Fingerprint),
			batch.Set(HistoricalPricesCollection, HistoryID(pr.ProductID, now), snap),
		)
		if err != nil {
			return BatchResult{}, err
		}
		ids = append(ids, pr.ProductID)
	}
	if err := w.Commit(ctx); err != nil {
		return BatchResult{}, err
	}
	for _, pr := range changed {
		p.detector.Remember(strconv.FormatInt(pr.ProductID, 10), pr.Fingerprint)
	}

	if err := p.publisher.Publish(ctx, broker.KeyPricesUpdated, PricesChanged{GroupID: g.GroupID, ProductIDs: ids}); err != nil {
		p.log.Warn("Failed to publish price changes", zap.Int64("group_id", g.GroupID), zap.Error(err))
	}
	return res, nil
}
