package sync

import (
	"context"
	"fmt"
	"time"

	"card-sync/core/retry"
	"card-sync/feature/catalog"
)

// GroupLister enumerates catalog groups.
type GroupLister interface {
	Groups(ctx context.Context) ([]catalog.Group, error)
}

// Processor loads and processes the items of one kind (cards, prices).
type Processor[T any] interface {
	Name() string
	Load(ctx context.Context, g catalog.Group) ([]T, error)
	Process(ctx context.Context, g catalog.Group, items []T, opts Options) (BatchResult, error)
}

// Controller drives a processor through groups and sub-batches, checkpointing progress and
// pausing before the execution budget runs out.
type Controller[T any] struct {
	cfg         Config
	groups      GroupLister
	proc        Processor[T]
	checkpoints *CheckpointStore
	apiGuard    retry.Guard
	observer    Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController wires a controller. apiGuard protects group and item loading; nil runs them
// directly.
func NewController[T any](cfg Config, groups GroupLister, proc Processor[T], checkpoints *CheckpointStore, apiGuard retry.Guard, observer Observer) *Controller[T] {
	if apiGuard == nil {
		apiGuard = retry.Direct
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 100
	}
	if cfg.BatchAttempts <= 0 {
		cfg.BatchAttempts = 1
	}
	return &Controller[T]{
		cfg:         cfg,
		groups:      groups,
		proc:        proc,
		checkpoints: checkpoints,
		apiGuard:    apiGuard,
		observer:    observer,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Name returns the processor name.
func (c *Controller[T]) Name() string {
	return c.proc.Name()
}

// reasonBudget is the pause reason when the execution budget runs out.
const reasonBudget = "execution budget reached"

type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomePaused
	outcomeLimited
)

// run is the state of one invocation.
type run[T any] struct {
	c       *Controller[T]
	opts    Options
	cp      *Checkpoint
	res     *Result
	started time.Time

	sinceCheckpoint int
	groupErr        error
	pauseReason     string
}

// Run executes one invocation. The returned error is non-nil only when the checkpoint cannot be
// read or written; every other failure is reported in the Result.
func (c *Controller[T]) Run(ctx context.Context, opts Options) (*Result, error) {
	started := c.now()
	if opts.RunID == "" {
		opts.RunID = DefaultRunID(c.proc.Name(), opts.GroupID)
	}
	r := &run[T]{
		c:       c,
		opts:    opts,
		started: started,
		res: &Result{
			RunID:     opts.RunID,
			Processor: c.proc.Name(),
			DryRun:    opts.DryRun,
			Errors:    []string{},
			Timing:    Timing{StartedAt: started},
		},
		cp: &Checkpoint{RunID: opts.RunID, Processor: c.proc.Name(), Status: "running", StartTime: started},
	}

	r.observe(StateInitializing, nil)
	if opts.Resume {
		prev, err := c.checkpoints.Load(ctx, opts.RunID)
		if err != nil {
			return r.hardFailure(err)
		}
		if prev != nil {
			r.cp = prev
			r.cp.Status = "running"
			r.res.Resumed = true
		}
	}

	r.observe(StateEnumeratingGroups, nil)
	groups, err := r.listGroups(ctx)
	if err != nil {
		r.res.Errors = append(r.res.Errors, fmt.Sprintf("enumerate groups: %v", err))
		r.res.Status = StatusFailed
		r.observe(StateFailed, err)
		return r.finish(), nil
	}
	r.cp.TotalGroups = len(groups)

	// Groups that failed in an earlier invocation are retried first, from where they stopped.
	for i := range r.cp.FailedGroups {
		fg := &r.cp.FailedGroups[i]
		if r.limitReached() {
			return r.complete(ctx)
		}
		if r.halted(ctx) {
			return r.pause(ctx)
		}
		out, err := r.processGroup(ctx, findGroup(groups, fg.GroupIndex, fg.GroupID), fg.GroupIndex, &fg.ItemIndex)
		if err != nil {
			return r.hardFailure(err)
		}
		switch out {
		case outcomeDone:
			fg.resolved = true
			r.res.GroupsProcessed++
		case outcomeFailed:
			fg.Error = r.groupErr.Error()
			r.recordGroupFailure(fg.GroupID, fg.GroupIndex, fg.ItemIndex, r.groupErr)
		case outcomePaused:
			return r.pause(ctx)
		case outcomeLimited:
			return r.complete(ctx)
		}
	}

	for r.cp.CurrentGroupIndex < len(groups) {
		if r.limitReached() {
			break
		}
		if r.halted(ctx) {
			return r.pause(ctx)
		}
		gi := r.cp.CurrentGroupIndex
		g := groups[gi]
		out, err := r.processGroup(ctx, g, gi, &r.cp.CurrentCardIndex)
		if err != nil {
			return r.hardFailure(err)
		}
		switch out {
		case outcomePaused:
			return r.pause(ctx)
		case outcomeLimited:
			return r.complete(ctx)
		case outcomeFailed:
			r.cp.FailedGroups = append(r.cp.FailedGroups, FailedGroup{
				GroupID:    g.GroupID,
				GroupIndex: gi,
				ItemIndex:  r.cp.CurrentCardIndex,
				Error:      r.groupErr.Error(),
			})
			r.recordGroupFailure(g.GroupID, gi, r.cp.CurrentCardIndex, r.groupErr)
		case outcomeDone:
			r.res.GroupsProcessed++
		}
		r.cp.CurrentGroupIndex++
		r.cp.CurrentCardIndex = 0
	}
	return r.complete(ctx)
}

func (r *run[T]) listGroups(ctx context.Context) ([]catalog.Group, error) {
	if r.opts.GroupID != 0 {
		return []catalog.Group{{GroupID: r.opts.GroupID}}, nil
	}
	return retry.Do(ctx, r.c.apiGuard, r.c.groups.Groups)
}

// processGroup runs the sub-batches of g from *cursor on, advancing *cursor after each one.
func (r *run[T]) processGroup(ctx context.Context, g catalog.Group, gi int, cursor *int) (outcome, error) {
	r.observeAt(StateProcessingGroup, g.GroupID, gi, *cursor, nil, 0)

	items, err := retry.Do(ctx, r.c.apiGuard, func(ctx context.Context) ([]T, error) {
		return r.c.proc.Load(ctx, g)
	})
	if err != nil {
		if r.interrupted(ctx) {
			return outcomePaused, nil
		}
		r.groupErr = fmt.Errorf("group %d: load: %w", g.GroupID, err)
		return outcomeFailed, nil
	}

	size := r.c.cfg.BatchSize
	for start := *cursor; start < len(items); {
		if r.limitReached() {
			return outcomeLimited, nil
		}
		if r.halted(ctx) {
			return outcomePaused, nil
		}
		end := min(start+size, len(items))
		if r.opts.Limit > 0 {
			end = min(end, start+r.opts.Limit-r.res.ItemsProcessed)
		}

		r.observeAt(StateProcessingBatch, g.GroupID, gi, start, nil, 0)
		br, err := r.processBatch(ctx, g, gi, start, items[start:end])
		if err != nil {
			if r.interrupted(ctx) {
				return outcomePaused, nil
			}
			r.groupErr = fmt.Errorf("group %d: items %d-%d: %w", g.GroupID, start, end, err)
			return outcomeFailed, nil
		}
		for i := range br.ItemErrors {
			br.ItemErrors[i].GroupID = g.GroupID
		}
		r.res.add(br)

		n := end - start
		*cursor = end
		r.cp.TotalCardsProcessed += n
		r.sinceCheckpoint += n
		if r.sinceCheckpoint >= r.c.cfg.CheckpointEvery {
			if err := r.checkpoint(ctx, StateCheckpointing); err != nil {
				return outcomeFailed, err
			}
		}

		start = end
		if start < len(items) && !r.limitReached() && r.c.cfg.InterBatchDelay > 0 {
			if err := r.c.sleep(ctx, r.c.cfg.InterBatchDelay); err != nil {
				if r.interrupted(ctx) {
					return outcomePaused, nil
				}
				r.groupErr = fmt.Errorf("group %d: %w", g.GroupID, err)
				return outcomeFailed, nil
			}
		}
	}
	if r.limitReached() && *cursor < len(items) {
		return outcomeLimited, nil
	}
	return outcomeDone, nil
}

// processBatch retries a sub-batch on retryable errors up to the configured attempt ceiling.
func (r *run[T]) processBatch(ctx context.Context, g catalog.Group, gi, start int, items []T) (BatchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.c.cfg.BatchAttempts; attempt++ {
		br, err := r.c.proc.Process(ctx, g, items, r.opts)
		if err == nil {
			return br, nil
		}
		lastErr = err
		if !retry.Retryable(err) || attempt == r.c.cfg.BatchAttempts || ctx.Err() != nil {
			break
		}
		r.observeAt(StateProcessingBatch, g.GroupID, gi, start, err, attempt)
		if err := r.c.sleep(ctx, r.c.cfg.BatchRetryDelay*time.Duration(attempt)); err != nil {
			break
		}
	}
	return BatchResult{}, lastErr
}

func (r *run[T]) recordGroupFailure(groupID int64, gi, item int, err error) {
	r.res.FailedGroups = append(r.res.FailedGroups, groupID)
	r.res.Errors = append(r.res.Errors, err.Error())
	r.observeAt(StateFailed, groupID, gi, item, err, 0)
}

func (r *run[T]) limitReached() bool {
	return r.opts.Limit > 0 && r.res.ItemsProcessed >= r.opts.Limit
}

// halted reports whether the run must stop before the next unit of work, recording why.
func (r *run[T]) halted(ctx context.Context) bool {
	if r.interrupted(ctx) {
		return true
	}
	if r.overBudget() {
		r.pauseReason = reasonBudget
		return true
	}
	return false
}

// interrupted reports whether ctx was cancelled. Work cut short by a cancel pauses the run
// instead of failing its group.
func (r *run[T]) interrupted(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		r.pauseReason = "interrupted: " + err.Error()
		return true
	}
	return false
}

func (r *run[T]) overBudget() bool {
	deadline := r.c.cfg.Deadline()
	return deadline > 0 && r.c.now().Sub(r.started) >= deadline
}

func (r *run[T]) checkpoint(ctx context.Context, state State) error {
	r.sinceCheckpoint = 0
	r.cp.LastCheckpoint = r.c.now()
	if r.opts.DryRun {
		return nil
	}
	if err := r.c.checkpoints.Save(context.WithoutCancel(ctx), r.cp); err != nil {
		return err
	}
	r.observe(state, nil)
	return nil
}

func (r *run[T]) pause(ctx context.Context) (*Result, error) {
	r.cp.Status = string(StatusPaused)
	if err := r.checkpoint(ctx, StatePausedOnTimeout); err != nil {
		return r.hardFailure(err)
	}
	r.res.Status = StatusPaused
	r.res.Success = true
	if r.pauseReason == "" {
		r.pauseReason = reasonBudget
	}
	r.res.Pause = &Pause{
		Reason:     r.pauseReason,
		Elapsed:    r.c.now().Sub(r.started),
		GroupIndex: r.cp.CurrentGroupIndex,
		ItemIndex:  r.cp.CurrentCardIndex,
	}
	if r.opts.DryRun {
		r.observe(StatePausedOnTimeout, nil)
	}
	return r.finish(), nil
}

func (r *run[T]) complete(ctx context.Context) (*Result, error) {
	open := r.cp.openFailures()
	if len(open) == 0 {
		if !r.opts.DryRun {
			if err := r.c.checkpoints.Delete(context.WithoutCancel(ctx), r.cp.RunID); err != nil {
				return r.hardFailure(err)
			}
		}
		r.res.Status = StatusCompleted
		r.res.Success = true
	} else {
		r.cp.Status = string(StatusCompletedWithErrors)
		if err := r.checkpoint(ctx, StateCheckpointing); err != nil {
			return r.hardFailure(err)
		}
		r.res.Status = StatusCompletedWithErrors
		r.reportCarriedFailures(open)
	}
	r.observe(StateCompleted, nil)
	return r.finish(), nil
}

// reportCarriedFailures adds open failures this run did not record itself, such as groups left
// unretried when the item limit was reached.
func (r *run[T]) reportCarriedFailures(open []FailedGroup) {
	seen := make(map[int64]bool, len(r.res.FailedGroups))
	for _, id := range r.res.FailedGroups {
		seen[id] = true
	}
	for _, fg := range open {
		if seen[fg.GroupID] {
			continue
		}
		seen[fg.GroupID] = true
		r.res.FailedGroups = append(r.res.FailedGroups, fg.GroupID)
		r.res.Errors = append(r.res.Errors, fg.Error)
	}
}

func (r *run[T]) hardFailure(err error) (*Result, error) {
	r.res.Status = StatusFailed
	r.res.Errors = append(r.res.Errors, err.Error())
	r.observe(StateFailed, err)
	return r.finish(), err
}

func (r *run[T]) finish() *Result {
	r.res.Timing.FinishedAt = r.c.now()
	r.res.Timing.DurationMs = r.res.Timing.FinishedAt.Sub(r.started).Milliseconds()
	return r.res
}

func (r *run[T]) observe(state State, err error) {
	r.observeAt(state, 0, r.cp.CurrentGroupIndex, r.cp.CurrentCardIndex, err, 0)
}

func (r *run[T]) observeAt(state State, groupID int64, gi, item int, err error, attempt int) {
	r.c.observer.Observe(Event{
		State:      state,
		RunID:      r.opts.RunID,
		Processor:  r.c.proc.Name(),
		GroupID:    groupID,
		GroupIndex: gi,
		ItemIndex:  item,
		Processed:  r.res.ItemsProcessed,
		Updated:    r.res.ItemsUpdated,
		Skipped:    r.res.ItemsSkipped,
		Attempt:    attempt,
		Err:        err,
	})
}

// findGroup prefers the group at its recorded index and falls back to a lookup by id.
func findGroup(groups []catalog.Group, index int, id int64) catalog.Group {
	if index >= 0 && index < len(groups) && groups[index].GroupID == id {
		return groups[index]
	}
	for _, g := range groups {
		if g.GroupID == id {
			return g
		}
	}
	return catalog.Group{GroupID: id}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
