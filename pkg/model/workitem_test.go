package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func item(key int, open bool, labels ...string) *WorkItem {
	return &WorkItem{Key: key, Open: open, Labels: NewLabelSet(labels...)}
}

func TestRoutableWithExistingAgentLabelIsExcluded(t *testing.T) {
	// spec.md §8 scenario 1 — item 95
	it := item(95, true, "route:unblocker", "route:priority-high", "agent001")
	assert.False(t, it.AssignableToAgent())
	assert.False(t, it.Routable())
}

func TestRoutableHumanOnlyExcluded(t *testing.T) {
	it := item(1, true, "route:ready", "route:human-only")
	assert.False(t, it.Routable())
}

func TestReadyToMergeRoutableButNotAssignable(t *testing.T) {
	it := item(2, true, "route:ready_to_merge")
	assert.True(t, it.Routable())
	assert.False(t, it.AssignableToAgent())
}

func TestClosedItemNeverRoutable(t *testing.T) {
	it := item(3, false, "route:ready")
	assert.False(t, it.Routable())
}

func TestPriorityOrdering(t *testing.T) {
	hi := NewLabelSet("route:priority-high")
	lo := NewLabelSet("route:priority-low")
	absent := NewLabelSet()
	assert.True(t, hi.Priority() > lo.Priority())
	assert.True(t, lo.Priority() > absent.Priority())
}
