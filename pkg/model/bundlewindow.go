package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WindowSize is the clock-aligned bundling interval (spec §4.5).
const WindowSize = 10 * time.Minute

// BundleWindow is the ten-minute interval the bundler operates within.
type BundleWindow struct {
	Start      time.Time
	ItemKeys   []int // ordered ascending, deduplicated
}

// NewBundleWindow builds a window, normalizing item keys into sorted,
// deduplicated order so the derived branch name is a pure function of the
// set, not the caller's ordering (spec invariant 5).
func NewBundleWindow(start time.Time, itemKeys []int) BundleWindow {
	seen := make(map[int]struct{}, len(itemKeys))
	keys := make([]int, 0, len(itemKeys))
	for _, k := range itemKeys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return BundleWindow{Start: start.UTC(), ItemKeys: keys}
}

// BranchName returns the deterministic bundle branch name:
// "bundle/{ISO8601 window start}__issues_{sorted keys joined by underscore}".
func (w BundleWindow) BranchName() string {
	parts := make([]string, len(w.ItemKeys))
	for i, k := range w.ItemKeys {
		parts[i] = strconv.Itoa(k)
	}
	return fmt.Sprintf("bundle/%s__issues_%s",
		w.Start.Format(time.RFC3339),
		strings.Join(parts, "_"),
	)
}
