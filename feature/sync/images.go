package sync

import (
	"context"
	"fmt"

	"card-sync/core/retry"
	"card-sync/core/storage"
	"card-sync/feature/catalog"
)

// ImageTask asks the image pipeline to fetch and store a card image.
type ImageTask struct {
	ProductID int64  `json:"productId"`
	GroupID   int64  `json:"groupId"`
	SourceURL string `json:"sourceUrl"`
	Object    string `json:"object"`
	Reason    string `json:"reason"`
}

// Reasons a card image needs processing.
const (
	ImageReasonNew     = "new"
	ImageReasonChanged = "url_changed"
	ImageReasonMissing = "object_missing"
)

// ObjectName is the blob path of a processed card image.
func ObjectName(groupID, productID int64) string {
	return fmt.Sprintf("cards/%d/%d.jpg", groupID, productID)
}

// ImageDecider decides which card images need processing. A nil blob client decides on URL
// changes alone.
type ImageDecider struct {
	blob   storage.Client
	bucket string
	guard  retry.Guard
}

// NewImageDecider creates a decider checking objects in bucket through guard.
func NewImageDecider(blob storage.Client, bucket string, guard retry.Guard) *ImageDecider {
	if guard == nil {
		guard = retry.Direct
	}
	return &ImageDecider{blob: blob, bucket: bucket, guard: guard}
}

// Decide returns a task when rec has an image URL that changed since previousURL or whose
// processed object is missing. It returns nil when nothing needs to happen.
func (d *ImageDecider) Decide(ctx context.Context, rec catalog.Record, previousURL string, known bool) (*ImageTask, error) {
	if rec.ImageURL == "" {
		return nil, nil
	}
	task := &ImageTask{
		ProductID: rec.ID,
		GroupID:   rec.GroupID,
		SourceURL: rec.ImageURL,
		Object:    ObjectName(rec.GroupID, rec.ID),
	}
	switch {
	case !known:
		task.Reason = ImageReasonNew
		return task, nil
	case previousURL != rec.ImageURL:
		task.Reason = ImageReasonChanged
		return task, nil
	case d.blob == nil:
		return nil, nil
	}

	exists, err := retry.Do(ctx, d.guard, func(ctx context.Context) (bool, error) {
		return storage.Exists(ctx, d.blob, d.bucket, task.Object)
	})
	if err != nil {
		return nil, fmt.Errorf("stat image %s: %w", task.Object, err)
	}
	if exists {
		return nil, nil
	}
	task.Reason = ImageReasonMissing
	return task, nil
}
