// Package ghcli is an optional forge-CLI-backed Gateway that shells out to
// the host's installed `gh` binary via github.com/cli/go-gh/v2 instead of
// talking to the REST API directly. It implements the same capability
// surface as forgeapi.Gateway so it can stand in wherever a token-based
// client is unavailable but the operator has already run `gh auth login`.
package ghcli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/cli/go-gh/v2"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// Gateway implements forgeapi.Gateway by shelling out to `gh`.
type Gateway struct {
	Owner string
	Repo  string
}

func New(owner, repo string) *Gateway {
	return &Gateway{Owner: owner, Repo: repo}
}

func (g *Gateway) repoFlag() string {
	return fmt.Sprintf("%s/%s", g.Owner, g.Repo)
}

func (g *Gateway) exec(ctx context.Context, args ...string) (string, error) {
	stdout, stderr, err := gh.ExecContext(ctx, args...)
	if err != nil {
		return "", classify(stderr.String(), err)
	}
	return stdout.String(), nil
}

func classify(stderr string, err error) error {
	lower := strings.ToLower(stderr)
	kind := forgeapi.NetworkError
	switch {
	case strings.Contains(lower, "authentication"), strings.Contains(lower, "not logged"):
		kind = forgeapi.AuthenticationFailed
	case strings.Contains(lower, "not found"), strings.Contains(lower, "could not resolve"):
		kind = forgeapi.NotFound
	case strings.Contains(lower, "rate limit"):
		kind = forgeapi.RateLimitExceeded
	}
	return &forgeapi.Error{Kind: kind, Message: strings.TrimSpace(stderr), Err: err}
}

type issueJSON struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	State     string   `json:"state"`
	Labels    []struct{ Name string `json:"name"` } `json:"labels"`
	Assignees []struct{ Login string `json:"login"` } `json:"assignees"`
	URL       string   `json:"url"`
	UpdatedAt string   `json:"updatedAt"`
}

func (i issueJSON) toWorkItem() *model.WorkItem {
	labels := make([]model.Label, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, model.Label(l.Name))
	}
	assignee := ""
	if len(i.Assignees) > 0 {
		assignee = i.Assignees[0].Login
	}
	return &model.WorkItem{
		Key:      i.Number,
		Title:    i.Title,
		Body:     i.Body,
		Open:     i.State == "OPEN" || i.State == "open",
		Labels:   model.NewLabelSet(labels...),
		Assignee: assignee,
		URL:      i.URL,
	}
}

const issueFields = "number,title,body,state,labels,assignees,url,updatedAt"

// ListItemsByLabel shells out to `gh issue list --label <label>`.
func (g *Gateway) ListItemsByLabel(ctx context.Context, label model.Label) ([]*model.WorkItem, error) {
	out, err := g.exec(ctx, "issue", "list", "--repo", g.repoFlag(), "--label", string(label),
		"--state", "open", "--json", issueFields, "--limit", "200")
	if err != nil {
		return nil, err
	}
	var raw []issueJSON
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: err.Error(), Err: err}
	}
	items := make([]*model.WorkItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.toWorkItem())
	}
	return items, nil
}

// GetItem shells out to `gh issue view`.
func (g *Gateway) GetItem(ctx context.Context, key int) (*model.WorkItem, error) {
	out, err := g.exec(ctx, "issue", "view", strconv.Itoa(key), "--repo", g.repoFlag(), "--json", issueFields)
	if err != nil {
		return nil, err
	}
	var raw issueJSON
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: err.Error(), Err: err}
	}
	return raw.toWorkItem(), nil
}

// EditLabels adds and removes labels via `gh issue edit`.
func (g *Gateway) EditLabels(ctx context.Context, key int, add, remove []model.Label) error {
	args := []string{"issue", "edit", strconv.Itoa(key), "--repo", g.repoFlag()}
	for _, l := range add {
		args = append(args, "--add-label", string(l))
	}
	for _, l := range remove {
		args = append(args, "--remove-label", string(l))
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	_, err := g.exec(ctx, args...)
	return err
}

// EditAssignee sets or clears the issue's assignee via `gh issue edit`.
func (g *Gateway) EditAssignee(ctx context.Context, key int, assignee string) error {
	if assignee == "" {
		_, err := g.exec(ctx, "issue", "edit", strconv.Itoa(key), "--repo", g.repoFlag(), "--remove-assignee", "")
		return err
	}
	_, err := g.exec(ctx, "issue", "edit", strconv.Itoa(key), "--repo", g.repoFlag(), "--add-assignee", assignee)
	return err
}

type labelJSON struct {
	Name string `json:"name"`
}

// ListLabels shells out to `gh label list`.
func (g *Gateway) ListLabels(ctx context.Context) ([]model.Label, error) {
	out, err := g.exec(ctx, "label", "list", "--repo", g.repoFlag(), "--json", "name", "--limit", "200")
	if err != nil {
		return nil, err
	}
	var raw []labelJSON
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: err.Error(), Err: err}
	}
	labels := make([]model.Label, 0, len(raw))
	for _, r := range raw {
		labels = append(labels, model.Label(r.Name))
	}
	return labels, nil
}

// CreateLabel shells out to `gh label create`.
func (g *Gateway) CreateLabel(ctx context.Context, label model.Label, color, description string) error {
	_, err := g.exec(ctx, "label", "create", string(label), "--repo", g.repoFlag(),
		"--color", color, "--description", description, "--force")
	return err
}

type refJSON struct {
	Name string `json:"name"`
}

// ListBranches shells out to `gh api repos/{owner}/{repo}/branches`.
func (g *Gateway) ListBranches(ctx context.Context) ([]forgeapi.BranchRef, error) {
	out, err := g.exec(ctx, "api", fmt.Sprintf("repos/%s/branches", g.repoFlag()), "--paginate")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name   string `json:"name"`
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: err.Error(), Err: err}
	}
	branches := make([]forgeapi.BranchRef, 0, len(raw))
	for _, r := range raw {
		branches = append(branches, forgeapi.BranchRef{Name: r.Name, SHA: r.Commit.SHA})
	}
	return branches, nil
}

// CreateBranch shells out to `gh api` for a git ref creation.
func (g *Gateway) CreateBranch(ctx context.Context, name, fromSHA string) error {
	_, err := g.exec(ctx, "api", fmt.Sprintf("repos/%s/git/refs", g.repoFlag()),
		"--method", "POST", "-f", "ref=refs/heads/"+name, "-f", "sha="+fromSHA)
	return err
}

// CreatePullRequest shells out to `gh pr create`.
func (g *Gateway) CreatePullRequest(ctx context.Context, spec forgeapi.PullRequestSpec) (*forgeapi.PullRequest, error) {
	out, err := g.exec(ctx, "pr", "create", "--repo", g.repoFlag(),
		"--title", spec.Title, "--body", spec.Body, "--head", spec.Head, "--base", spec.Base)
	if err != nil {
		return nil, err
	}
	url := strings.TrimSpace(out)
	return &forgeapi.PullRequest{URL: url, Number: prNumberFromURL(url)}, nil
}

func prNumberFromURL(url string) int {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(url[idx+1:])
	return n
}

// DispatchWorkflow shells out to `gh workflow run`.
func (g *Gateway) DispatchWorkflow(ctx context.Context, workflowFile string, inputs map[string]string) error {
	args := []string{"workflow", "run", workflowFile, "--repo", g.repoFlag()}
	for k, v := range inputs {
		args = append(args, "-f", fmt.Sprintf("%s=%s", k, v))
	}
	_, err := g.exec(ctx, args...)
	return err
}

// WaitForRun is not supported by the `gh` CLI's event model for this
// gateway; the REST-backed forgeapi.GitHubGateway should be used when
// polling is required.
func (g *Gateway) WaitForRun(ctx context.Context, workflowFile string, since time.Time) (*forgeapi.WorkflowRun, error) {
	return nil, &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: "ghcli gateway cannot poll run status; use the REST gateway"}
}
