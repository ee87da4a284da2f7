// Package config loads the coordinator's configuration: forge credentials,
// repository identity, agent and bundle parameters, and the CI-mode flag.
// Precedence is defaults < config file < environment variables, matching
// the layering the teacher's own config loader applies (pkg/config/env.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppDirName is the per-repository state directory name: ".{app}/" under
// spec §6's persisted state layout.
const AppDirName = ".taskforge"

// Config is the coordinator's fully-resolved configuration.
type Config struct {
	RepoOwner string `yaml:"repo_owner"`
	RepoName  string `yaml:"repo_name"`

	// GitHubToken is resolved through credential discovery (see Resolve) and
	// is never read directly from YAML.
	GitHubToken string `yaml:"-"`

	Agents AgentsConfig `yaml:"agents"`
	Bundle BundleConfig `yaml:"bundle"`

	CIMode bool `yaml:"ci_mode"`

	// WorkDir is the directory .taskforge/ is rooted under; defaults to the
	// process working directory.
	WorkDir string `yaml:"-"`
}

// AgentsConfig bounds per-agent and fleet-wide capacity.
type AgentsConfig struct {
	MaxCapacityPerAgent int `yaml:"max_capacity_per_agent"`
	MaxAgentsPerPass    int `yaml:"max_agents_per_pass"`
}

// BundleConfig parameterizes the scheduler and bundler.
type BundleConfig struct {
	WindowMinutes      int           `yaml:"window_minutes"`
	ContinuityFreshness time.Duration `yaml:"continuity_freshness"`
}

// Defaults returns a Config populated with the spec's documented defaults.
func Defaults() Config {
	return Config{
		Agents: AgentsConfig{
			MaxCapacityPerAgent: 1,
			MaxAgentsPerPass:    5,
		},
		Bundle: BundleConfig{
			WindowMinutes:       10,
			ContinuityFreshness: 24 * time.Hour,
		},
		WorkDir: ".",
	}
}

// Load reads a YAML config file (if present), applies environment variable
// overrides, expands ${VAR} references in string fields, and resolves
// forge credentials. path may be empty, in which case only defaults + env
// apply.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	token, err := ResolveGitHubToken(cfg.WorkDir)
	if err != nil {
		return Config{}, err
	}
	cfg.GitHubToken = token

	return cfg, cfg.Validate()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKFORGE_REPO_OWNER"); v != "" {
		cfg.RepoOwner = v
	}
	if v := os.Getenv("TASKFORGE_REPO_NAME"); v != "" {
		cfg.RepoName = v
	}
	if v := os.Getenv("TASKFORGE_CI_MODE"); v != "" {
		cfg.CIMode = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks that required fields are present and not placeholders.
func (c Config) Validate() error {
	if isPlaceholder(c.RepoOwner) {
		return fmt.Errorf("configuration: repo_owner is missing; set repo_owner in the config file or TASKFORGE_REPO_OWNER")
	}
	if isPlaceholder(c.RepoName) {
		return fmt.Errorf("configuration: repo_name is missing; set repo_name in the config file or TASKFORGE_REPO_NAME")
	}
	if isPlaceholder(c.GitHubToken) && !c.CIMode {
		return fmt.Errorf("configuration: no GitHub credential found; set a *_GITHUB_TOKEN env var, write %s, or authenticate the gh CLI", CredentialFilePath(c.WorkDir))
	}
	if c.Agents.MaxCapacityPerAgent <= 0 {
		return fmt.Errorf("configuration: agents.max_capacity_per_agent must be positive")
	}
	return nil
}

// CredentialFilePath returns the well-known credential file location under
// the app directory (spec §6 persisted state layout).
func CredentialFilePath(workDir string) string {
	return filepath.Join(workDir, AppDirName, "credentials", "github_token")
}
