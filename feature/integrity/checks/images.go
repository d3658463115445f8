package checks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"card-sync/core/docstore"
	"card-sync/core/storage"
	"card-sync/feature/catalog"

	"golang.org/x/sync/errgroup"
)

// MissingImage is a card marked processed whose image object is absent.
type MissingImage struct {
	ProductID int64          `json:"productId"`
	GroupID   int64          `json:"groupId"`
	Object    string         `json:"object"`
	SourceURL string         `json:"sourceUrl"`
	Record    catalog.Record `json:"-"`
}

// ImageReport strictly types the result of an image object audit.
type ImageReport struct {
	Scanned   int            `json:"scanned"`
	Processed int            `json:"processed"`
	Missing   []MissingImage `json:"missing"`
	Status    string         `json:"status"` // "ok", "missing"
}

// ImageCheck locates processed card images in a bucket.
type ImageCheck struct {
	Client      storage.Client
	Bucket      string
	ObjectName  func(groupID, productID int64) string
	Concurrency int
	PageSize    int
}

// CheckImages stats the object of every card whose image is marked processed.
func CheckImages(ctx context.Context, store docstore.Store, collection string, c ImageCheck) (*ImageReport, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("storage client is not configured")
	}
	workers := c.Concurrency
	if workers <= 0 {
		workers = 8
	}

	report := &ImageReport{Missing: []MissingImage{}, Status: "ok"}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	err := Scan(gctx, store, collection, c.PageSize, func(d docstore.Document) error {
		report.Scanned++
		var rec catalog.Record
		if err := d.Decode(&rec); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, d.ID, err)
		}
		if rec.ImageStatus != catalog.ImageStatusProcessed {
			return nil
		}
		report.Processed++
		g.Go(func() error {
			object := c.ObjectName(rec.GroupID, rec.ID)
			ok, err := storage.Exists(gctx, c.Client, c.Bucket, object)
			if err != nil {
				return fmt.Errorf("stat %s: %w", object, err)
			}
			if !ok {
				mu.Lock()
				report.Missing = append(report.Missing, MissingImage{
					ProductID: rec.ID,
					GroupID:   rec.GroupID,
					Object:    object,
					SourceURL: rec.ImageURL,
					Record:    rec,
				})
				mu.Unlock()
			}
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Missing, func(i, j int) bool {
		return report.Missing[i].ProductID < report.Missing[j].ProductID
	})
	if len(report.Missing) > 0 {
		report.Status = "missing"
	}
	return report, nil
}
