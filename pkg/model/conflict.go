package model

import "time"

// BundleSafeThreshold is the minimum aggregate compatibility score at which
// the bundler will compose a single consolidated PR (spec §3, invariant 7).
const BundleSafeThreshold = 75

// ConflictCompatibilityReport is the bundler's analysis of a candidate set
// of branches: which files they touch in common, how likely each branch is
// to conflict, and the aggregate score driving the bundle-or-fallback
// decision.
type ConflictCompatibilityReport struct {
	Branches           []string
	BaseBranch         string
	FileOverlap        map[string][]string // file path -> branches touching it
	LikelihoodByBranch map[string]int      // 0-100 per source branch
	CompatibilityScore int                 // 0-100 aggregate
	GeneratedAt        time.Time
}

// BundleSafe reports whether the aggregate score clears the threshold.
func (r ConflictCompatibilityReport) BundleSafe() bool {
	return r.CompatibilityScore >= BundleSafeThreshold
}

// OverlappingFiles returns the file paths touched by more than one branch.
func (r ConflictCompatibilityReport) OverlappingFiles() []string {
	var out []string
	for f, branches := range r.FileOverlap {
		if len(branches) > 1 {
			out = append(out, f)
		}
	}
	return out
}
