package forgeapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// GitHubGateway is the real, network-backed Gateway implementation. It
// wraps google/go-github behind the shared rate limiter and response
// cache, classifying every transport failure through classify().
type GitHubGateway struct {
	client *github.Client
	owner  string
	repo   string
	limiter *RateLimiter
	cache   *ResponseCache
	callTimeout time.Duration
}

// NewGitHubGateway constructs a Gateway for a single owner/repo, authenticated
// with token. Only httpClient's Timeout is carried over to the OAuth2 client;
// a nil *http.Client means a 30-second timeout.
func NewGitHubGateway(token, owner, repo string, httpClient *http.Client) *GitHubGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	oauthClient := oauth2.NewClient(context.Background(), ts)
	oauthClient.Timeout = httpClient.Timeout

	return &GitHubGateway{
		client:      github.NewClient(oauthClient),
		owner:       owner,
		repo:        repo,
		limiter:     NewRateLimiter(),
		cache:       NewResponseCache(),
		callTimeout: 20 * time.Second,
	}
}

func (g *GitHubGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.callTimeout)
}

func labelsToStrings(labels []model.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

func toWorkItem(issue *github.Issue) *model.WorkItem {
	labels := model.NewLabelSet()
	for _, l := range issue.Labels {
		if l.Name != nil {
			labels.Add(model.Label(*l.Name))
		}
	}
	assignee := ""
	if issue.Assignee != nil && issue.Assignee.Login != nil {
		assignee = *issue.Assignee.Login
	}
	item := &model.WorkItem{
		Key:    issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Open:   issue.GetState() == "open",
		Labels: labels,
		Assignee: assignee,
		URL:    issue.GetHTMLURL(),
	}
	if issue.UpdatedAt != nil {
		item.UpdatedAt = issue.UpdatedAt.Time
	}
	return item
}

func (g *GitHubGateway) ListItemsByLabel(ctx context.Context, label model.Label) ([]*model.WorkItem, error) {
	cacheKey := fmt.Sprintf("issues:label:%s", label)
	if v, ok := g.cache.Get(cacheKey); ok {
		return v.([]*model.WorkItem), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &github.IssueListByRepoOptions{
		Labels: []string{string(label)},
		State:  "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var items []*model.WorkItem
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, classify(err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			items = append(items, toWorkItem(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.cache.Set(cacheKey, items)
	return items, nil
}

func (g *GitHubGateway) GetItem(ctx context.Context, key int) (*model.WorkItem, error) {
	cacheKey := fmt.Sprintf("issue:%d", key)
	if v, ok := g.cache.Get(cacheKey); ok {
		return v.(*model.WorkItem), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	issue, _, err := g.client.Issues.Get(ctx, g.owner, g.repo, key)
	if err != nil {
		return nil, classify(err)
	}

	item := toWorkItem(issue)
	g.cache.Set(cacheKey, item)
	return item, nil
}

func (g *GitHubGateway) EditLabels(ctx context.Context, key int, add, remove []model.Label) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if len(add) > 0 {
		if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, key, labelsToStrings(add)); err != nil {
			return classify(err)
		}
	}
	for _, l := range remove {
		if _, err := g.client.Issues.RemoveLabelForIssue(ctx, g.owner, g.repo, key, string(l)); err != nil {
			if ge := classify(err); ge.Kind != NotFound {
				return ge
			}
			slog.Debug("label already absent", "issue", key, "label", l)
		}
	}

	g.cache.InvalidatePrefix(fmt.Sprintf("issue:%d", key))
	g.cache.InvalidatePrefix("issues:label:")
	return nil
}

func (g *GitHubGateway) EditAssignee(ctx context.Context, key int, assignee string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	issueReq := &github.IssueRequest{}
	if assignee == "" {
		empty := []string{}
		issueReq.Assignees = &empty
	} else {
		issueReq.Assignees = &[]string{assignee}
	}

	if _, _, err := g.client.Issues.Edit(ctx, g.owner, g.repo, key, issueReq); err != nil {
		return classify(err)
	}

	g.cache.InvalidatePrefix(fmt.Sprintf("issue:%d", key))
	return nil
}

func (g *GitHubGateway) ListLabels(ctx context.Context) ([]model.Label, error) {
	cacheKey := "labels:all"
	if v, ok := g.cache.Get(cacheKey); ok {
		return v.([]model.Label), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &github.ListOptions{PerPage: 100}
	var labels []model.Label
	for {
		ghLabels, resp, err := g.client.Issues.ListLabels(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, classify(err)
		}
		for _, l := range ghLabels {
			labels = append(labels, model.Label(l.GetName()))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.cache.Set(cacheKey, labels)
	return labels, nil
}

func (g *GitHubGateway) CreateLabel(ctx context.Context, label model.Label, color, description string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	name := string(label)
	ghLabel := &github.Label{Name: &name, Color: &color, Description: &description}
	if _, _, err := g.client.Issues.CreateLabel(ctx, g.owner, g.repo, ghLabel); err != nil {
		return classify(err)
	}
	g.cache.InvalidatePrefix("labels:")
	return nil
}

func (g *GitHubGateway) ListBranches(ctx context.Context) ([]BranchRef, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var refs []BranchRef
	for {
		branches, resp, err := g.client.Repositories.ListBranches(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, classify(err)
		}
		for _, b := range branches {
			sha := ""
			if b.Commit != nil && b.Commit.SHA != nil {
				sha = *b.Commit.SHA
			}
			refs = append(refs, BranchRef{Name: b.GetName(), SHA: sha})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return refs, nil
}

func (g *GitHubGateway) CreateBranch(ctx context.Context, name, fromSHA string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ref := "refs/heads/" + name
	gitRef := &github.Reference{
		Ref:    &ref,
		Object: &github.GitObject{SHA: &fromSHA},
	}
	if _, _, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, gitRef); err != nil {
		return classify(err)
	}
	return nil
}

func (g *GitHubGateway) CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req := &github.NewPullRequest{
		Title: &spec.Title,
		Body:  &spec.Body,
		Head:  &spec.Head,
		Base:  &spec.Base,
	}
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, req)
	if err != nil {
		return nil, classify(err)
	}
	return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

func (g *GitHubGateway) DispatchWorkflow(ctx context.Context, filename string, inputs map[string]string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rawInputs := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		rawInputs[k] = v
	}

	event := github.CreateWorkflowDispatchEventRequest{Ref: "main", Inputs: rawInputs}
	if _, err := g.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, g.owner, g.repo, filename, event); err != nil {
		return classify(err)
	}
	return nil
}

func (g *GitHubGateway) WaitForRun(ctx context.Context, workflowFilename string, since time.Time) (*WorkflowRun, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: NetworkError, Message: "wait for run cancelled", Err: ctx.Err()}
		case <-ticker.C:
			run, err := g.latestRunSince(ctx, workflowFilename, since)
			if err != nil {
				return nil, err
			}
			if run != nil && run.Status == "completed" {
				return run, nil
			}
		}
	}
}

func (g *GitHubGateway) latestRunSince(ctx context.Context, workflowFilename string, since time.Time) (*WorkflowRun, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: NetworkError, Message: "rate limiter wait cancelled", Err: err}
	}
	reqCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: 10}}
	runs, _, err := g.client.Actions.ListWorkflowRunsByFileName(reqCtx, g.owner, g.repo, workflowFilename, opts)
	if err != nil {
		return nil, classify(err)
	}
	for _, r := range runs.WorkflowRuns {
		if r.CreatedAt != nil && r.CreatedAt.Time.Before(since) {
			continue
		}
		return &WorkflowRun{
			ID:         r.GetID(),
			Status:     r.GetStatus(),
			Conclusion: r.GetConclusion(),
			URL:        r.GetHTMLURL(),
		}, nil
	}
	return nil, nil
}
