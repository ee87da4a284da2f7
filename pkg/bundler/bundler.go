// Package bundler implements the Conflict-Aware Bundler (C6): at each
// scheduled departure it collects every branch whose item is marked
// route:ready_to_merge, scores their pairwise file-level conflict
// likelihood, and either opens one consolidated PR or falls back to one PR
// per branch when the branches are too likely to collide.
package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/metrics"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/scheduler"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

// candidate is one route:ready_to_merge item paired with the branch it
// lives on.
type candidate struct {
	item   *model.WorkItem
	branch string
}

// Bundler orchestrates one departure: collection, conflict scoring, PR
// creation (consolidated or per-branch fallback), and the post-bundle state
// transitions that release each item's agent label.
type Bundler struct {
	gw      forgeapi.Gateway
	sm      *statemachine.Machine
	vcs     diffProvider
	metrics metrics.Surface
	lockPath string
}

// Options configures one Run.
type Options struct {
	BaseBranch string
	Force      bool // bypass the scheduler's departure-time gate; still uses the current clock-aligned window
	DryRun     bool // compute and log the decision but create no branches, PRs, or label edits
	Now        time.Time
}

func New(gw forgeapi.Gateway, sm *statemachine.Machine, vcs diffProvider, m metrics.Surface, workDir string) *Bundler {
	if m == nil {
		m = metrics.NoOp()
	}
	return &Bundler{gw: gw, sm: sm, vcs: vcs, metrics: m, lockPath: filepath.Join(workDir, ".taskforge", "bundle.lock")}
}

// Result is what one Run produced.
type Result struct {
	Window        model.BundleWindow
	Report        model.ConflictCompatibilityReport
	Consolidated  *forgeapi.PullRequest
	Fallback      []*forgeapi.PullRequest
	Degraded      bool
	SkippedEmpty  bool
}

var errAlreadyRunning = fmt.Errorf("bundler: another bundle run holds the lock")

// Run executes one departure attempt. It takes an exclusive cross-process
// file lock for its duration so two operator invocations (or a human and a
// cron trigger) never race to bundle the same window.
func (b *Bundler) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(b.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("bundler: create lock dir: %w", err)
	}
	fl := flock.New(b.lockPath)
	locked, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("bundler: acquire lock: %w", err)
	}
	if !locked {
		return nil, errAlreadyRunning
	}
	defer fl.Unlock()

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	class := scheduler.Classify(now, nil)
	if !opts.Force && !class.IsDepartureTime() {
		return &Result{Window: class.Window}, nil
	}

	candidates, err := b.collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		b.metrics.RecordBundleDeparture(class.Window.BranchName(), 0, false)
		return &Result{Window: class.Window, SkippedEmpty: true}, nil
	}

	window := model.NewBundleWindow(class.Window.Start, keysOf(candidates))
	branches := branchesOf(candidates)

	report, err := BuildConflictReport(ctx, b.vcs, opts.BaseBranch, branches)
	if err != nil {
		return nil, err
	}

	commits, err := b.commitsAhead(ctx, opts.BaseBranch, candidates)
	if err != nil {
		return nil, err
	}

	result := &Result{Window: window, Report: report}

	if report.BundleSafe() {
		pr, err := b.consolidate(ctx, opts, window, candidates, report, commits)
		if err != nil {
			return nil, err
		}
		result.Consolidated = pr
	} else {
		result.Degraded = true
		prs, err := b.fallback(ctx, opts, candidates, report, commits)
		if err != nil {
			return nil, err
		}
		result.Fallback = prs
	}

	b.metrics.RecordBundleDeparture(window.BranchName(), len(candidates), result.Degraded)
	return result, nil
}

// collect gathers every open route:ready_to_merge item whose branch still
// exists, oldest-first by update timestamp. A branch that has disappeared
// between labeling and collection is skipped rather than failing the run.
func (b *Bundler) collect(ctx context.Context) ([]candidate, error) {
	items, err := b.gw.ListItemsByLabel(ctx, model.LabelRouteReadyToMerge)
	if err != nil {
		return nil, err
	}

	refs, err := b.gw.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(refs))
	for _, r := range refs {
		exists[r.Name] = true
	}

	var out []candidate
	for _, item := range items {
		if !item.Open || !item.ReadyToMerge() {
			continue
		}
		agentLabel, ok := item.OwningAgentLabel()
		if !ok {
			continue
		}
		branch := model.BranchName(string(agentLabel), item.Key, item.Title)
		if !exists[branch] {
			continue
		}
		out = append(out, candidate{item: item, branch: branch})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].item.UpdatedAt.Before(out[j].item.UpdatedAt)
	})
	return out, nil
}

func keysOf(cands []candidate) []int {
	keys := make([]int, 0, len(cands))
	for _, c := range cands {
		keys = append(keys, c.item.Key)
	}
	return keys
}

func branchesOf(cands []candidate) []string {
	branches := make([]string, 0, len(cands))
	for _, c := range cands {
		branches = append(branches, c.branch)
	}
	return branches
}

// commitsAhead reports each candidate's commit count against baseBranch,
// the per-branch figure spec §6's bit-exact PR body format requires.
func (b *Bundler) commitsAhead(ctx context.Context, baseBranch string, cands []candidate) (map[string]int, error) {
	commits := make(map[string]int, len(cands))
	for _, c := range cands {
		n, err := b.vcs.CommitsAhead(ctx, baseBranch, c.branch)
		if err != nil {
			return nil, fmt.Errorf("bundler: commits ahead for %s: %w", c.branch, err)
		}
		commits[c.branch] = n
	}
	return commits, nil
}

func (b *Bundler) consolidate(ctx context.Context, opts Options, window model.BundleWindow, cands []candidate, report model.ConflictCompatibilityReport, commits map[string]int) (*forgeapi.PullRequest, error) {
	bundleBranch := window.BranchName()
	if !opts.DryRun {
		refs, err := b.gw.ListBranches(ctx)
		if err != nil {
			return nil, err
		}
		baseSHA := ""
		for _, r := range refs {
			if r.Name == opts.BaseBranch {
				baseSHA = r.SHA
			}
		}
		if err := b.gw.CreateBranch(ctx, bundleBranch, baseSHA); err != nil {
			return nil, err
		}
	}

	var pr *forgeapi.PullRequest
	if !opts.DryRun {
		var err error
		pr, err = b.gw.CreatePullRequest(ctx, forgeapi.PullRequestSpec{
			Title: fmt.Sprintf("Bundle: %d items", len(cands)),
			Body:  bundleBody(cands, commits, report),
			Head:  bundleBranch,
			Base:  opts.BaseBranch,
		})
		if err != nil {
			return nil, err
		}
	}

	if !opts.DryRun {
		for _, c := range cands {
			agentLabel, _ := c.item.OwningAgentLabel()
			if err := b.sm.Bundled(ctx, c.item.Key, string(agentLabel)); err != nil {
				return pr, err
			}
		}
	}
	return pr, nil
}

func (b *Bundler) fallback(ctx context.Context, opts Options, cands []candidate, report model.ConflictCompatibilityReport, commits map[string]int) ([]*forgeapi.PullRequest, error) {
	var prs []*forgeapi.PullRequest
	for _, c := range cands {
		if opts.DryRun {
			continue
		}
		pr, err := b.gw.CreatePullRequest(ctx, forgeapi.PullRequestSpec{
			Title: c.item.Title,
			Body:  fallbackBody(c, commits, report),
			Head:  c.branch,
			Base:  opts.BaseBranch,
		})
		if err != nil {
			return prs, err
		}
		prs = append(prs, pr)

		agentLabel, _ := c.item.OwningAgentLabel()
		if err := b.sm.Bundled(ctx, c.item.Key, string(agentLabel)); err != nil {
			return prs, err
		}
	}
	return prs, nil
}

// bundleBody renders the consolidated PR body: a machine-readable header
// listing each included item's key, source branch, and commit count against
// base, followed by the human-readable conflict report.
func bundleBody(cands []candidate, commits map[string]int, report model.ConflictCompatibilityReport) string {
	body := "Consolidates:\n"
	for _, c := range cands {
		body += fmt.Sprintf("- #%d %s (branch=%s, commits-ahead=%d)\n", c.item.Key, c.item.Title, c.branch, commits[c.branch])
	}
	body += "\n"
	body += renderReport(report)
	return body
}

// fallbackBody renders a standalone fallback PR body: the same
// machine-readable header format as bundleBody, scoped to the one item,
// annotated with the conflict report that forced the fallback.
func fallbackBody(c candidate, commits map[string]int, report model.ConflictCompatibilityReport) string {
	body := fmt.Sprintf("Standalone PR for #%d %s (branch=%s, commits-ahead=%d): bundled consolidation skipped, conflict risk.\n\n",
		c.item.Key, c.item.Title, c.branch, commits[c.branch])
	body += renderReport(report)
	return body
}
