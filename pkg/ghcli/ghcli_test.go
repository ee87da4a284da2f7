package ghcli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
)

func TestClassifyAuthFailure(t *testing.T) {
	err := classify("gh: authentication required", assertErr{})
	var gerr *forgeapi.Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, forgeapi.AuthenticationFailed, gerr.Kind)
}

func TestClassifyNotFound(t *testing.T) {
	err := classify("GraphQL: Could not resolve to an Issue (404)", assertErr{})
	var gerr *forgeapi.Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, forgeapi.NotFound, gerr.Kind)
}

func TestPRNumberFromURL(t *testing.T) {
	assert.Equal(t, 42, prNumberFromURL("https://github.com/o/r/pull/42"))
	assert.Equal(t, 0, prNumberFromURL(""))
}

func TestIssueJSONToWorkItem(t *testing.T) {
	raw := issueJSON{
		Number: 7,
		Title:  "t",
		State:  "OPEN",
	}
	raw.Labels = append(raw.Labels, struct {
		Name string `json:"name"`
	}{Name: "route:ready"})

	item := raw.toWorkItem()
	assert.Equal(t, 7, item.Key)
	assert.True(t, item.Open)
	assert.True(t, item.Labels.Has("route:ready"))
}

type assertErr struct{}

func (assertErr) Error() string { return "exit status 1" }
