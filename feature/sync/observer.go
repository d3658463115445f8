package sync

import (
	"go.uber.org/zap"
)

// State is a controller state.
type State string

const (
	StateInitializing      State = "initializing"
	StateEnumeratingGroups State = "enumerating_groups"
	StateProcessingGroup   State = "processing_group"
	StateProcessingBatch   State = "processing_batch"
	StateCheckpointing     State = "checkpointing"
	StateCompleted         State = "completed"
	StatePausedOnTimeout   State = "paused_on_timeout"
	StateFailed            State = "failed"
)

// Event is emitted at every controller decision point.
type Event struct {
	State      State
	RunID      string
	Processor  string
	GroupID    int64
	GroupIndex int
	ItemIndex  int
	Processed  int
	Updated    int
	Skipped    int
	Attempt    int
	Err        error
}

// Observer receives controller events. Implementations must not block.
type Observer interface {
	Observe(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Observe(Event) {}

// LogObserver writes events to a zap logger.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) Observe(e Event) {
	fields := []zap.Field{
		zap.String("state", string(e.State)),
		zap.Int64("group_id", e.GroupID),
		zap.Int("group_index", e.GroupIndex),
		zap.Int("item_index", e.ItemIndex),
		zap.Int("processed", e.Processed),
	}
	switch e.State {
	case StateFailed:
		o.Logger.Error("Group failed", append(fields, zap.Error(e.Err))...)
	case StateProcessingBatch:
		if e.Err != nil {
			o.Logger.Warn("Sub-batch failed, retrying", append(fields, zap.Int("attempt", e.Attempt), zap.Error(e.Err))...)
			return
		}
		o.Logger.Debug("Processing sub-batch", fields...)
	case StatePausedOnTimeout:
		o.Logger.Warn("Execution budget reached, pausing", fields...)
	case StateCompleted:
		o.Logger.Debug("All groups visited", append(fields, zap.Int("updated", e.Updated), zap.Int("skipped", e.Skipped))...)
	case StateCheckpointing:
		o.Logger.Debug("Checkpoint saved", fields...)
	default:
		o.Logger.Info("Sync state", fields...)
	}
}
