package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"card-sync/core/retry"
	"card-sync/core/storage"
)

// Reporter uploads run results to blob storage.
type Reporter struct {
	blob   storage.Client
	bucket string
	prefix string
	guard  retry.Guard
}

// NewReporter creates a reporter writing under prefix in bucket.
func NewReporter(blob storage.Client, bucket, prefix string, guard retry.Guard) *Reporter {
	if guard == nil {
		guard = retry.Direct
	}
	return &Reporter{blob: blob, bucket: bucket, prefix: prefix, guard: guard}
}

// ReportObject is the object name of a run report.
func ReportObject(prefix, runID string, at time.Time) string {
	return path.Join(prefix, runID, at.UTC().Format("20060102T150405Z")+".json")
}

// Upload stores res as JSON and returns the object name.
func (r *Reporter) Upload(ctx context.Context, res *Result) (string, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	object := ReportObject(r.prefix, res.RunID, res.Timing.FinishedAt)
	meta := map[string]string{
		"status":    string(res.Status),
		"processor": res.Processor,
	}
	err = r.guard(ctx, func(ctx context.Context) error {
		return storage.PutJSON(ctx, r.blob, r.bucket, object, data, meta)
	})
	if err != nil {
		return "", err
	}
	return object, nil
}
