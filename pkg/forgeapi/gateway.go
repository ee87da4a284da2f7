// Package forgeapi implements the Forge Gateway (C1): a rate-limited,
// cache-aware client presenting a narrow capability set over the hosted
// code-forge. Callers depend on the Gateway interface, never on the
// concrete GitHub-backed implementation, so the Router, Bundler, and
// Continuity Manager can all be tested against the in-memory stub.
package forgeapi

import (
	"context"
	"time"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// WorkflowRun is the subset of a dispatched Actions run the core observes.
type WorkflowRun struct {
	ID         int64
	Status     string // queued, in_progress, completed
	Conclusion string // success, failure, cancelled, ""
	URL        string
}

// PullRequestSpec describes a PR to create.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// PullRequest is the subset of a created PR the core needs back.
type PullRequest struct {
	Number int
	URL    string
}

// BranchRef is a named ref on the forge.
type BranchRef struct {
	Name string
	SHA  string
}

// Gateway is the narrow capability set the core consumes from the forge
// (spec §4.1, §6). Every method is a suspension point and every method may
// return a classified *Error.
type Gateway interface {
	ListItemsByLabel(ctx context.Context, label model.Label) ([]*model.WorkItem, error)
	GetItem(ctx context.Context, key int) (*model.WorkItem, error)
	EditLabels(ctx context.Context, key int, add, remove []model.Label) error
	EditAssignee(ctx context.Context, key int, assignee string) error
	ListLabels(ctx context.Context) ([]model.Label, error)
	CreateLabel(ctx context.Context, label model.Label, color, description string) error
	ListBranches(ctx context.Context) ([]BranchRef, error)
	CreateBranch(ctx context.Context, name, fromSHA string) error
	CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error)
	DispatchWorkflow(ctx context.Context, filename string, inputs map[string]string) error
	WaitForRun(ctx context.Context, workflowFilename string, since time.Time) (*WorkflowRun, error)
}
