// Package gitcli wraps the git binary via os/exec for the local-worktree
// operations the bundler and agent workers need, classifying failures into
// the closed error vocabulary spec §6 defines for VCS collaborators.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Client runs git commands rooted at Dir.
type Client struct {
	Dir     string
	Timeout time.Duration
}

func New(dir string) *Client {
	return &Client{Dir: dir, Timeout: 30 * time.Second}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())
	if err != nil {
		return out, classify(strings.Join(args, " "), errOut, err)
	}
	return out, nil
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

func classify(command, output string, err error) error {
	lower := strings.ToLower(output)
	kind := GitCommandFailed
	switch {
	case strings.Contains(lower, "not a git repository"):
		kind = RepositoryNotFound
	case strings.Contains(lower, "did not match any file(s) known to git"),
		strings.Contains(lower, "pathspec") && strings.Contains(lower, "did not match"):
		kind = BranchNotFound
	case strings.Contains(lower, "unknown revision or path"):
		kind = BranchNotFound
	case strings.Contains(lower, "no such remote"):
		kind = RemoteNotFound
	case strings.Contains(lower, "could not read from remote repository"):
		kind = RemoteNotFound
	case strings.Contains(lower, "conflict"):
		kind = MergeConflict
	case strings.Contains(lower, "uncommitted changes"), strings.Contains(lower, "working tree clean") == false && strings.Contains(lower, "please commit"):
		kind = WorkingDirectoryNotClean
	}
	return &Error{Kind: kind, Command: command, Output: output, Err: err}
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch exists.
func (c *Client) BranchExists(ctx context.Context, branch string) bool {
	_, err := c.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists reports whether a branch exists on the named remote.
func (c *Client) RemoteBranchExists(ctx context.Context, remote, branch string) bool {
	out, err := c.run(ctx, "ls-remote", "--heads", remote, branch)
	return err == nil && out != ""
}

// Checkout switches the worktree to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	_, err := c.run(ctx, "checkout", branch)
	return err
}

// CreateBranch creates and checks out a new branch from base.
func (c *Client) CreateBranch(ctx context.Context, name, base string) error {
	_, err := c.run(ctx, "checkout", "-b", name, base)
	return err
}

// DeleteBranch force-deletes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	_, err := c.run(ctx, "branch", "-D", name)
	return err
}

// Fetch updates refs from remote.
func (c *Client) Fetch(ctx context.Context, remote string) error {
	_, err := c.run(ctx, "fetch", remote)
	return err
}

// Push pushes branch to remote.
func (c *Client) Push(ctx context.Context, remote, branch string) error {
	_, err := c.run(ctx, "push", remote, branch)
	return err
}

// IsClean reports whether the worktree has no uncommitted changes.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// CommitsAhead counts commits reachable from head but not base.
func (c *Client) CommitsAhead(ctx context.Context, base, head string) (int, error) {
	out, err := c.run(ctx, "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(out)
	if convErr != nil {
		return 0, &Error{Kind: GitCommandFailed, Command: "rev-list --count", Output: out, Err: convErr}
	}
	return n, nil
}

// MergeBase returns the merge base commit of a and b.
func (c *Client) MergeBase(ctx context.Context, a, b string) (string, error) {
	return c.run(ctx, "merge-base", a, b)
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Client) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := c.run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Kind == GitCommandFailed {
		return false, nil
	}
	return false, err
}

// ListBranches lists local branch names.
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DiffNameOnly lists files changed between base and head.
func (c *Client) DiffNameOnly(ctx context.Context, base, head string) ([]string, error) {
	out, err := c.run(ctx, "diff", "--name-only", base+"..."+head)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ShowFile returns the content of path as of ref, or an empty string if the
// file did not exist at that ref.
func (c *Client) ShowFile(ctx context.Context, ref, path string) (string, error) {
	out, err := c.run(ctx, "show", fmt.Sprintf("%s:%s", ref, path))
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) {
			return "", nil
		}
		return "", err
	}
	return out, nil
}
