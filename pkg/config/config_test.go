package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVarsDefaultAndBraced(t *testing.T) {
	t.Setenv("TF_TEST_VAR", "value")
	assert.Equal(t, "value", expandEnvVars("${TF_TEST_VAR}"))
	assert.Equal(t, "value", expandEnvVars("$TF_TEST_VAR"))
	assert.Equal(t, "fallback", expandEnvVars("${TF_TEST_UNSET:-fallback}"))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, isPlaceholder(""))
	assert.True(t, isPlaceholder("YOUR_GITHUB_TOKEN_HERE"))
	assert.False(t, isPlaceholder("ghp_realtoken"))
}

func TestValidateRejectsMissingOwner(t *testing.T) {
	cfg := Defaults()
	cfg.RepoName = "repo"
	cfg.GitHubToken = "ghp_x"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo_owner")
}

func TestValidatePassesInCIModeWithoutToken(t *testing.T) {
	cfg := Defaults()
	cfg.RepoOwner = "acme"
	cfg.RepoName = "repo"
	cfg.CIMode = true
	assert.NoError(t, cfg.Validate())
}

func TestResolveGitHubTokenFromFile(t *testing.T) {
	dir := t.TempDir()
	credDir := filepath.Join(dir, AppDirName, "credentials")
	require.NoError(t, os.MkdirAll(credDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(credDir, "github_token"), []byte("filetoken\n"), 0o600))

	t.Setenv("GITHUB_TOKEN", "")
	tok, err := ResolveGitHubToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "filetoken", tok)
}

func TestResolveGitHubTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "envtoken")
	tok, err := ResolveGitHubToken(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "envtoken", tok)
}
