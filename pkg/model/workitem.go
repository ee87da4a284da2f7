package model

import "time"

// WorkItem is an issue on the forge the core may route. The label set is
// the authoritative routing state — any local cache of it may lag the forge
// but must never be trusted over a fresh read.
type WorkItem struct {
	Key         int
	Title       string
	Body        string
	Open        bool
	Labels      LabelSet
	Assignee    string // zero-or-one human assignee; empty means none
	URL         string
	UpdatedAt   time.Time
	ActionsRunID int64 // optional cross-reference to a dispatched workflow run
}

// Routable reports whether the item is eligible for a router pass, per
// spec §4.3's routable(item) predicate.
func (w *WorkItem) Routable() bool {
	if !w.Open {
		return false
	}
	if w.Labels.Has(LabelRouteHumanOnly) {
		return false
	}
	hasAgent := w.Labels.HasAgentLabel()
	if w.Labels.Has(LabelRouteReady) && !hasAgent {
		return true
	}
	if w.Labels.Has(LabelRouteUnblocker) && !hasAgent {
		return true
	}
	if w.Labels.Has(LabelRouteReadyToMerge) {
		return true
	}
	return false
}

// AssignableToAgent reports whether the item may be handed to an agent in
// this routing pass — distinct from Routable because ready_to_merge items
// are "routable" only in the bundling sense, never assignable.
func (w *WorkItem) AssignableToAgent() bool {
	if !w.Open || w.Labels.Has(LabelRouteHumanOnly) {
		return false
	}
	if w.Labels.HasAgentLabel() {
		return false
	}
	return w.Labels.Has(LabelRouteReady) || w.Labels.Has(LabelRouteUnblocker)
}

// ReadyToMerge reports whether the item is awaiting bundling.
func (w *WorkItem) ReadyToMerge() bool {
	return w.Open && w.Labels.Has(LabelRouteReadyToMerge)
}

// OwningAgentLabel returns the single agent* label present, if any.
func (w *WorkItem) OwningAgentLabel() (Label, bool) {
	labels := w.Labels.AgentLabels()
	if len(labels) == 0 {
		return "", false
	}
	return labels[0], true
}
