package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"card-sync/core/broker"
	"card-sync/core/changes"
	"card-sync/core/docstore"
	"card-sync/feature/catalog"
)

type fakeCatalog struct {
	mu         gosync.Mutex
	groups     []catalog.Group
	products   map[int64][]catalog.Product
	prices     map[int64][]catalog.PriceRow
	groupsErr  error
	productErr map[int64]error
	groupCalls int
}

func newFakeCatalog(groupIDs ...int64) *fakeCatalog {
	f := &fakeCatalog{
		products:   make(map[int64][]catalog.Product),
		prices:     make(map[int64][]catalog.PriceRow),
		productErr: make(map[int64]error),
	}
	for _, id := range groupIDs {
		f.groups = append(f.groups, catalog.Group{GroupID: id, Name: fmt.Sprintf("Opus %d", id)})
	}
	return f
}

func (f *fakeCatalog) Groups(ctx context.Context) ([]catalog.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return append([]catalog.Group(nil), f.groups...), nil
}

func (f *fakeCatalog) Products(ctx context.Context, groupID int64) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.productErr[groupID]; err != nil {
		return nil, err
	}
	return append([]catalog.Product(nil), f.products[groupID]...), nil
}

func (f *fakeCatalog) Prices(ctx context.Context, groupID int64) ([]catalog.PriceRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.PriceRow(nil), f.prices[groupID]...), nil
}

func (f *fakeCatalog) set(groupID int64, products ...catalog.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[groupID] = products
}

func (f *fakeCatalog) fail(groupID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.productErr, groupID)
		return
	}
	f.productErr[groupID] = err
}

func card(id, groupID int64, number, name string) catalog.Product {
	return catalog.Product{
		ProductID: id,
		GroupID:   groupID,
		Name:      name,
		CleanName: name,
		ExtendedData: []catalog.ExtendedData{
			{Name: "Number", Value: number},
			{Name: "Rarity", Value: "C"},
			{Name: "Cost", Value: "2"},
			{Name: "Power", Value: "5000"},
			{Name: "Job", Value: "Warrior"},
			{Name: "Category", Value: "VII"},
			{Name: "CardType", Value: "Forward"},
			{Name: "Element", Value: "Fire"},
			{Name: "Description", Value: "Deal 3000 damage."},
		},
	}
}

func cards(groupID int64, n int) []catalog.Product {
	out := make([]catalog.Product, n)
	for i := range out {
		id := groupID*100 + int64(i) + 1
		out[i] = card(id, groupID, fmt.Sprintf("%d-%03dC", groupID, i+1), fmt.Sprintf("Card %d", id))
	}
	return out
}

type clock struct {
	mu gosync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// rig wires controllers over an in-memory store shared across runs.
type rig struct {
	store    *docstore.MemoryStore
	src      *fakeCatalog
	bus      *broker.Memory
	cfg      Config
	clock    *clock
	enricher *Enricher
	images   *ImageDecider
	sleeps   []time.Duration
}

func newRig(src *fakeCatalog) *rig {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.InterBatchDelay = 0
	cfg.BatchRetryDelay = 0
	cfg.ExecutionBudget = 10 * time.Minute
	cfg.SafetyMargin = 0
	return &rig{
		store: docstore.NewMemoryStore(docstore.DefaultMaxBatchSize),
		src:   src,
		bus:   &broker.Memory{},
		cfg:   cfg,
		clock: newClock(),
	}
}

func (r *rig) cards(obs Observer) *Controller[catalog.Product] {
	proc := NewCardProcessor(CardDeps{
		Source:    r.src,
		Store:     r.store,
		Detector:  changes.NewDetector(r.store, CardHashesCollection, r.cfg.Changes, nil),
		Enricher:  r.enricher,
		Images:    r.images,
		Publisher: r.bus,
	})
	proc.now = r.clock.Now
	return r.wire(NewController[catalog.Product](r.cfg, r.src, proc, NewCheckpointStore(r.store, nil), nil, obs))
}

func (r *rig) prices() *Controller[catalog.PriceRecord] {
	proc := NewPriceProcessor(r.src, r.store, nil, changes.NewDetector(r.store, PriceHashesCollection, r.cfg.Changes, nil), r.bus, nil)
	proc.now = r.clock.Now
	c := NewController[catalog.PriceRecord](r.cfg, r.src, proc, NewCheckpointStore(r.store, nil), nil, nil)
	c.now = r.clock.Now
	c.sleep = r.sleep
	return c
}

func (r *rig) wire(c *Controller[catalog.Product]) *Controller[catalog.Product] {
	c.now = r.clock.Now
	c.sleep = r.sleep
	return c
}

func (r *rig) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

func (r *rig) checkpoint(runID string) *Checkpoint {
	var cp Checkpoint
	found, err := r.store.Get(context.Background(), CheckpointCollection, runID, &cp)
	if err != nil || !found {
		return nil
	}
	return &cp
}

func (r *rig) card(id int64) *catalog.Record {
	var rec catalog.Record
	found, err := r.store.Get(context.Background(), CardsCollection, fmt.Sprint(id), &rec)
	if err != nil || !found {
		return nil
	}
	return &rec
}
