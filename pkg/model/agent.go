package model

import (
	"fmt"
	"sync"
	"time"
)

// AgentState is one of the four lifecycle states an agent record may hold.
type AgentState string

const (
	AgentAvailable AgentState = "Available"
	AgentAssigned  AgentState = "Assigned"
	AgentWorking   AgentState = "Working"
	AgentBlocked   AgentState = "Blocked"
)

// ProcessHandle records the supervised worker process spawned for an agent,
// when process supervision (§4.4 expansion) is in use.
type ProcessHandle struct {
	PID       int
	StartedAt time.Time
}

// Agent is the in-process record of one coding agent: its lifecycle state,
// capacity, and the items it currently owns. The capacity counter must
// always equal len(Owned); MaxCapacity must always be >= the counter.
type Agent struct {
	mu sync.RWMutex

	ID          string
	State       AgentState
	MaxCapacity int
	Owned       map[int]struct{}
	BlockedCause string
	Process     *ProcessHandle
}

// NewAgent constructs an Available agent with no owned items.
func NewAgent(id string, maxCapacity int) *Agent {
	return &Agent{
		ID:          id,
		State:       AgentAvailable,
		MaxCapacity: maxCapacity,
		Owned:       make(map[int]struct{}),
	}
}

// Capacity returns the number of items currently owned.
func (a *Agent) Capacity() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.Owned)
}

// AtCapacity reports whether the agent cannot accept another assignment.
func (a *Agent) AtCapacity() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.Owned) >= a.MaxCapacity
}

// AssignItem records ownership of an item key and moves the agent to
// Assigned, enforcing the capacity invariant.
func (a *Agent) AssignItem(key int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.Owned) >= a.MaxCapacity {
		return fmt.Errorf("agent %s: at capacity (%d/%d)", a.ID, len(a.Owned), a.MaxCapacity)
	}
	a.Owned[key] = struct{}{}
	a.State = AgentAssigned
	return nil
}

// ReleaseItem drops ownership of an item key. If no items remain owned, the
// agent returns to Available.
func (a *Agent) ReleaseItem(key int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.Owned, key)
	if len(a.Owned) == 0 && a.State != AgentBlocked {
		a.State = AgentAvailable
	}
}

// MarkWorking transitions an Assigned agent into Working once the core
// observes external evidence (an agent push).
func (a *Agent) MarkWorking() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State == AgentAssigned {
		a.State = AgentWorking
	}
}

// Block moves the agent to Blocked with a recorded cause (resource ceiling
// breach, supervision failure, or forge-divergence).
func (a *Agent) Block(cause string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.State = AgentBlocked
	a.BlockedCause = cause
}

// Unblock clears Blocked, returning to Available or Assigned depending on
// current ownership.
func (a *Agent) Unblock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.BlockedCause = ""
	if len(a.Owned) == 0 {
		a.State = AgentAvailable
	} else {
		a.State = AgentAssigned
	}
}

// OwnsItem reports whether the agent's local record claims ownership of key.
func (a *Agent) OwnsItem(key int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.Owned[key]
	return ok
}

// Snapshot returns an immutable view of the agent's current record, safe to
// read without holding a lock afterward.
type AgentSnapshot struct {
	ID           string
	State        AgentState
	MaxCapacity  int
	OwnedKeys    []int
	BlockedCause string
}

func (a *Agent) Snapshot() AgentSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]int, 0, len(a.Owned))
	for k := range a.Owned {
		keys = append(keys, k)
	}
	return AgentSnapshot{
		ID:           a.ID,
		State:        a.State,
		MaxCapacity:  a.MaxCapacity,
		OwnedKeys:    keys,
		BlockedCause: a.BlockedCause,
	}
}
