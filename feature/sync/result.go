package sync

import (
	"fmt"
	"time"
)

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusPaused              Status = "paused"
	StatusFailed              Status = "failed"
)

// Options are the caller's run options.
type Options struct {
	// RunID identifies the run for checkpointing. Empty uses DefaultRunID.
	RunID string `json:"runId"`
	// GroupID scopes the run to a single group when non-zero.
	GroupID int64 `json:"groupId"`
	// Resume continues from the stored checkpoint of the run id.
	Resume bool `json:"resume"`
	// DryRun computes every decision but writes nothing.
	DryRun bool `json:"dryRun"`
	// Limit stops after this many processed items when positive.
	Limit int `json:"limit"`
	// ForceUpdate bypasses change detection.
	ForceUpdate bool `json:"forceUpdate"`
}

// DefaultRunID is the processor name, suffixed with the group id for scoped runs.
func DefaultRunID(processor string, groupID int64) string {
	if groupID != 0 {
		return fmt.Sprintf("%s:%d", processor, groupID)
	}
	return processor
}

// ItemError is a non-retryable failure of a single item.
type ItemError struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"groupId"`
	Message string `json:"message"`
}

// BatchResult is what a processor reports for one sub-batch.
type BatchResult struct {
	Processed  int
	Updated    int
	Skipped    int
	ItemErrors []ItemError
}

// Pause is the resumable pause signal of a run that reached its execution budget.
type Pause struct {
	Reason     string        `json:"reason"`
	Elapsed    time.Duration `json:"elapsed"`
	GroupIndex int           `json:"groupIndex"`
	ItemIndex  int           `json:"itemIndex"`
}

// Timing reports run duration.
type Timing struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
}

// Result is the structured summary every run returns, including partial failures.
type Result struct {
	Success         bool        `json:"success"`
	Status          Status      `json:"status"`
	RunID           string      `json:"runId"`
	Processor       string      `json:"processor"`
	DryRun          bool        `json:"dryRun"`
	Resumed         bool        `json:"resumed"`
	GroupsProcessed int         `json:"groupsProcessed"`
	ItemsProcessed  int         `json:"itemsProcessed"`
	ItemsUpdated    int         `json:"itemsUpdated"`
	ItemsSkipped    int         `json:"itemsSkipped"`
	FailedGroups    []int64     `json:"failedGroups,omitempty"`
	Errors          []string    `json:"errors"`
	ItemErrors      []ItemError `json:"itemErrors,omitempty"`
	Pause           *Pause      `json:"pause,omitempty"`
	Timing          Timing      `json:"timing"`
}

// Paused reports whether the run stopped on its execution budget.
func (r *Result) Paused() bool {
	return r.Pause != nil
}

func (r *Result) add(b BatchResult) {
	r.ItemsProcessed += b.Processed
	r.ItemsUpdated += b.Updated
	r.ItemsSkipped += b.Skipped
	r.ItemErrors = append(r.ItemErrors, b.ItemErrors...)
}
