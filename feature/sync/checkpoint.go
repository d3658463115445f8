package sync

import (
	"context"
	"fmt"
	"time"

	"card-sync/core/docstore"
	"card-sync/core/retry"
)

// CheckpointCollection holds one checkpoint document per run id.
const CheckpointCollection = "syncCheckpoints"

// FailedGroup records a group whose processing escalated past sub-batch retries. ItemIndex is
// where a resumed run picks the group up again.
type FailedGroup struct {
	GroupID    int64  `json:"groupId"`
	GroupIndex int    `json:"groupIndex"`
	ItemIndex  int    `json:"itemIndex"`
	Error      string `json:"error"`

	resolved bool
}

// Checkpoint is the persisted progress of a run.
type Checkpoint struct {
	RunID               string        `json:"runId"`
	Processor           string        `json:"processor"`
	Status              string        `json:"status"`
	CurrentGroupIndex   int           `json:"currentGroupIndex"`
	CurrentCardIndex    int           `json:"currentCardIndex"`
	TotalGroups         int           `json:"totalGroups"`
	TotalCardsProcessed int           `json:"totalCardsProcessed"`
	StartTime           time.Time     `json:"startTime"`
	LastCheckpoint      time.Time     `json:"lastCheckpoint"`
	FailedGroups        []FailedGroup `json:"failedGroups"`
}

// openFailures returns the failed groups not yet recovered.
func (c *Checkpoint) openFailures() []FailedGroup {
	out := make([]FailedGroup, 0, len(c.FailedGroups))
	for _, fg := range c.FailedGroups {
		if !fg.resolved {
			out = append(out, fg)
		}
	}
	return out
}

// CheckpointStore reads and writes checkpoints in the document store.
type CheckpointStore struct {
	store docstore.Store
	guard retry.Guard
}

// NewCheckpointStore creates a checkpoint store. A nil guard accesses the store directly.
func NewCheckpointStore(store docstore.Store, guard retry.Guard) *CheckpointStore {
	if guard == nil {
		guard = retry.Direct
	}
	return &CheckpointStore{store: store, guard: guard}
}

// Load returns the checkpoint of runID, or nil when there is none.
func (s *CheckpointStore) Load(ctx context.Context, runID string) (*Checkpoint, error) {
	var cp Checkpoint
	found, err := retry.Do(ctx, s.guard, func(ctx context.Context) (bool, error) {
		return s.store.Get(ctx, CheckpointCollection, runID, &cp)
	})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if !found {
		return nil, nil
	}
	return &cp, nil
}

// Save writes cp, dropping recovered failures.
func (s *CheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	out := *cp
	out.FailedGroups = cp.openFailures()
	err := s.guard(ctx, func(ctx context.Context) error {
		return s.store.Set(ctx, CheckpointCollection, cp.RunID, out)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.RunID, err)
	}
	return nil
}

// Delete removes the checkpoint of runID.
func (s *CheckpointStore) Delete(ctx context.Context, runID string) error {
	err := s.guard(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, CheckpointCollection, runID)
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}
