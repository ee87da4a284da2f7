package agentlifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
)

// rosterEntry is the on-disk projection of one agent record. Ownership and
// process handles are deliberately not persisted here — the forge's labels
// are the authority on ownership, and a process handle from a previous run
// is never valid across process restarts.
type rosterEntry struct {
	ID          string `json:"id"`
	MaxCapacity int    `json:"max_capacity"`
}

// RosterPath returns the well-known roster file location under the app
// directory.
func RosterPath(workDir string) string {
	return filepath.Join(workDir, ".taskforge", "agents.json")
}

// LoadRoster populates a fresh registry from the roster file. A missing
// file yields an empty registry rather than an error, since the first ever
// invocation in a repository has no roster yet.
func LoadRoster(path string) (*registry.BaseRegistry[*model.Agent], error) {
	reg := registry.NewBaseRegistry[*model.Agent]()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []rosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		reg.Put(e.ID, model.NewAgent(e.ID, e.MaxCapacity))
	}
	return reg, nil
}

// SaveRoster persists the registry's membership (id + capacity only) to
// path atomically.
func SaveRoster(path string, reg *registry.BaseRegistry[*model.Agent]) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	entries := make([]rosterEntry, 0, reg.Count())
	for _, a := range reg.List() {
		snap := a.Snapshot()
		entries = append(entries, rosterEntry{ID: snap.ID, MaxCapacity: snap.MaxCapacity})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
