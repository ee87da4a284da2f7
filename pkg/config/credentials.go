package config

import (
	"os"
	"os/exec"
	"strings"
)

// ResolveGitHubToken discovers a GitHub credential in precedence order:
// an environment variable named "*_GITHUB_TOKEN", a file under
// .{app}/credentials/github_token, or the host gh CLI's stored credential.
// Any candidate equal to a known placeholder value is skipped.
func ResolveGitHubToken(workDir string) (string, error) {
	if tok := tokenFromEnv(); !isPlaceholder(tok) {
		return tok, nil
	}

	if tok, err := tokenFromFile(CredentialFilePath(workDir)); err == nil && !isPlaceholder(tok) {
		return tok, nil
	}

	if tok, err := tokenFromHostCLI(); err == nil && !isPlaceholder(tok) {
		return tok, nil
	}

	return "", nil
}

// tokenFromEnv scans the process environment for any variable whose name
// ends in "_GITHUB_TOKEN" (e.g. GITHUB_TOKEN, MY_BOT_GITHUB_TOKEN).
func tokenFromEnv() string {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v
	}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasSuffix(name, "_GITHUB_TOKEN") {
			return value
		}
	}
	return ""
}

func tokenFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// tokenFromHostCLI shells out to "gh auth token", the documented way to
// retrieve the credential the gh CLI itself is authenticated with.
func tokenFromHostCLI() (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
