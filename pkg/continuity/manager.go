package continuity

import (
	"context"
	"errors"
	"time"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// DefaultPeriodicInterval is how often a supervised agent's progress is
// snapshotted absent any state-transition-triggered save (spec §4.7).
const DefaultPeriodicInterval = 1 * time.Minute

// Manager ties checkpoint persistence to the forge revalidation that
// Resume must perform: a checkpoint is never trusted on its own, only as a
// hint about what to recheck.
type Manager struct {
	storage   *Storage
	gw        forgeapi.Gateway
	freshness time.Duration
}

func NewManager(storage *Storage, gw forgeapi.Gateway, freshness time.Duration) *Manager {
	if freshness <= 0 {
		freshness = model.DefaultFreshnessWindow
	}
	return &Manager{storage: storage, gw: gw, freshness: freshness}
}

// Checkpoint snapshots an agent's current work and persists it.
func (m *Manager) Checkpoint(agentID string, state model.AgentState, issue int, branch string, commitsAhead int, now time.Time, reason model.CheckpointReason) error {
	cp := model.NewContinuityCheckpoint(agentID, state, issue, branch, commitsAhead, now, reason)
	return m.storage.Save(cp)
}

// RunPeriodic saves a checkpoint every interval until ctx is cancelled. The
// snapshot function is called fresh each tick so the caller can supply the
// agent's current in-memory state without the Manager holding a reference
// to it.
func (m *Manager) RunPeriodic(ctx context.Context, agentID string, interval time.Duration, snapshot func() (state model.AgentState, issue int, branch string, commitsAhead int)) {
	if interval <= 0 {
		interval = DefaultPeriodicInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, issue, branch, commitsAhead := snapshot()
			_ = m.Checkpoint(agentID, state, issue, branch, commitsAhead, time.Now(), model.ReasonPeriodicSave)
		}
	}
}

// Resume derives the ResumeAction for agentID on process startup, per spec
// §4.7: a missing, corrupt, or stale snapshot means start fresh; a fresh,
// intact snapshot is still only a hint — the forge's current state of the
// referenced issue and branch decides between continuing silently and
// resyncing first.
func (m *Manager) Resume(ctx context.Context, agentID string, now time.Time) (model.ResumeAction, error) {
	cp, ok, err := m.storage.Load(agentID)
	if err != nil {
		return model.ResumeAction{}, err
	}
	if !ok {
		return model.ResumeAction{Kind: model.ResumeStartFresh, Reason: "no checkpoint found"}, nil
	}
	if !cp.Verify() {
		return model.ResumeAction{Kind: model.ResumeStartFresh, Reason: "integrity check failed"}, nil
	}
	if !cp.Fresh(now, m.freshness) {
		return model.ResumeAction{Kind: model.ResumeStartFresh, Reason: "checkpoint older than freshness window"}, nil
	}
	if cp.CurrentIssue == 0 {
		return model.ResumeAction{Kind: model.ResumeNone, Reason: "checkpoint carries no in-progress work"}, nil
	}

	item, err := m.gw.GetItem(ctx, cp.CurrentIssue)
	if err != nil {
		if isNotFound(err) {
			return model.ResumeAction{Kind: model.ResumeStartFresh, Reason: "checkpointed issue no longer exists"}, nil
		}
		return model.ResumeAction{}, err
	}

	if !item.Open {
		return model.ResumeAction{Kind: model.ResumeStartFresh, Reason: "checkpointed issue no longer open"}, nil
	}

	expectedLabel := model.AgentLabel(agentID)
	if !item.Labels.Has(expectedLabel) {
		return model.ResumeAction{
			Kind:   model.ResumeValidateAndResync,
			Issue:  cp.CurrentIssue,
			Branch: cp.CurrentBranch,
			Reason: "agent label missing from issue; needs resync before continuing",
		}, nil
	}
	if item.Assignee != "" && item.Assignee != agentID {
		return model.ResumeAction{
			Kind:   model.ResumeValidateAndResync,
			Issue:  cp.CurrentIssue,
			Branch: cp.CurrentBranch,
			Reason: "assignee differs from checkpointed agent; needs resync before continuing",
		}, nil
	}

	refs, err := m.gw.ListBranches(ctx)
	if err != nil {
		return model.ResumeAction{}, err
	}
	branchExists := false
	for _, r := range refs {
		if r.Name == cp.CurrentBranch {
			branchExists = true
			break
		}
	}
	if !branchExists {
		return model.ResumeAction{
			Kind:   model.ResumeValidateAndResync,
			Issue:  cp.CurrentIssue,
			Branch: cp.CurrentBranch,
			Reason: "branch missing from forge; needs resync before continuing",
		}, nil
	}

	return model.ResumeAction{
		Kind:         model.ResumeContinueWork,
		Issue:        cp.CurrentIssue,
		Branch:       cp.CurrentBranch,
		LastProgress: cp.CommitsAhead,
		Reason:       "checkpoint fresh and forge state consistent",
	}, nil
}

func isNotFound(err error) bool {
	var ferr *forgeapi.Error
	return errors.As(err, &ferr) && ferr.Kind == forgeapi.NotFound
}
