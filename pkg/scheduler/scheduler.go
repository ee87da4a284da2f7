// Package scheduler computes ten-minute, clock-aligned bundle departure
// windows and classifies the current instant's boarding status. Every
// function here is a pure function of the supplied time.Time — there is no
// internal clock, no goroutine, and no state — so the same instant always
// yields the same answer (spec invariant 6).
package scheduler

import (
	"time"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// Status is the boarding classification of an instant relative to the next
// departure.
type Status string

const (
	Waiting   Status = "Waiting"
	Boarding  Status = "Boarding"
	Departing Status = "Departing"
)

// Classification is the Scheduler's answer for a given instant: which
// window it falls in, when the window departs, and its boarding status.
type Classification struct {
	Window        model.BundleWindow
	NextDeparture time.Time
	Status        Status
}

// IsDepartureTime reports whether status == Departing.
func (c Classification) IsDepartureTime() bool {
	return c.Status == Departing
}

// WindowStart returns the clock-aligned ten-minute window start containing t.
func WindowStart(t time.Time) time.Time {
	t = t.UTC()
	aligned := t.Truncate(model.WindowSize)
	return aligned
}

// Classify returns the Classification for instant t, given the set of item
// keys currently eligible for the window (may be nil/empty; the Scheduler
// itself doesn't care which items belong to the window — that's the
// Bundler's job — but callers commonly want the window value populated).
func Classify(t time.Time, itemKeys []int) Classification {
	start := WindowStart(t)
	next := start.Add(model.WindowSize)
	if t.UTC().Equal(start) {
		// An instant exactly on a window boundary is that departure itself.
		next = start
	}
	remaining := next.Sub(t.UTC())

	var status Status
	switch {
	case remaining <= 0:
		status = Departing
	case remaining <= 3*time.Minute:
		status = Boarding
	default:
		status = Waiting
	}

	return Classification{
		Window:        model.NewBundleWindow(start, itemKeys),
		NextDeparture: next,
		Status:        status,
	}
}
