package gitcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRepositoryNotFound(t *testing.T) {
	err := classify("status", "fatal: not a git repository (or any of the parent directories): .git", assertErr{})
	var gerr *Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, RepositoryNotFound, gerr.Kind)
}

func TestClassifyBranchNotFound(t *testing.T) {
	err := classify("checkout foo", "error: pathspec 'foo' did not match any file(s) known to git", assertErr{})
	var gerr *Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, BranchNotFound, gerr.Kind)
}

func TestClassifyMergeConflict(t *testing.T) {
	err := classify("merge", "CONFLICT (content): Merge conflict in a.go", assertErr{})
	var gerr *Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, MergeConflict, gerr.Kind)
}

type assertErr struct{}

func (assertErr) Error() string { return "exit status 1" }
