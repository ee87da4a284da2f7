// Package continuity implements the Work-Continuity Manager (C7): periodic,
// per-agent snapshots of in-progress work, written so that a crashed or
// restarted agent process can decide whether to pick back up, revalidate
// against the forge, or start fresh, without ever trusting the snapshot over
// forge reality.
package continuity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// defaultHistoryCap bounds how many snapshots are retained per agent; older
// ones are pruned on every Save so a crash loop can't fill the disk.
const defaultHistoryCap = 5

// Storage persists ContinuityCheckpoints as one JSON file per snapshot under
// <baseDir>/<agentID>/continuity/, using renameio for atomic writes so a
// crash mid-write never leaves a truncated file behind for Load to trip
// over.
type Storage struct {
	baseDir    string
	historyCap int
}

func NewStorage(baseDir string) *Storage {
	return &Storage{baseDir: baseDir, historyCap: defaultHistoryCap}
}

func (s *Storage) agentDir(agentID string) string {
	return filepath.Join(s.baseDir, agentID, "continuity")
}

// Save writes cp atomically and prunes any snapshots beyond the history cap.
func (s *Storage) Save(cp model.ContinuityCheckpoint) error {
	dir := s.agentDir(cp.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("continuity: create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("continuity: marshal checkpoint for %s: %w", cp.AgentID, err)
	}

	name := fmt.Sprintf("%020d.json", cp.Timestamp.UnixNano())
	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("continuity: write %s: %w", path, err)
	}

	return s.prune(dir)
}

// prune deletes all but the historyCap most recent snapshots in dir.
func (s *Storage) prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) <= s.historyCap {
		return nil
	}
	for _, n := range names[:len(names)-s.historyCap] {
		_ = os.Remove(filepath.Join(dir, n))
	}
	return nil
}

// Load returns the most recent checkpoint for agentID, or (zero, false) if
// none exists.
func (s *Storage) Load(agentID string) (model.ContinuityCheckpoint, bool, error) {
	dir := s.agentDir(agentID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return model.ContinuityCheckpoint{}, false, nil
	}
	if err != nil {
		return model.ContinuityCheckpoint{}, false, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return model.ContinuityCheckpoint{}, false, nil
	}
	sort.Strings(names)
	latest := names[len(names)-1]

	data, err := os.ReadFile(filepath.Join(dir, latest))
	if err != nil {
		return model.ContinuityCheckpoint{}, false, fmt.Errorf("continuity: read %s: %w", latest, err)
	}

	var cp model.ContinuityCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.ContinuityCheckpoint{}, false, fmt.Errorf("continuity: decode %s: %w", latest, err)
	}
	return cp, true, nil
}

// PruneOlderThan removes every snapshot file across every agent whose
// embedded timestamp (encoded in the filename) is older than cutoffUnixNano.
// Used by a periodic janitor independent of any one agent's Save calls.
func (s *Storage) PruneOlderThan(cutoffUnixNano int64) error {
	agents, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, a := range agents {
		if !a.IsDir() {
			continue
		}
		dir := filepath.Join(s.baseDir, a.Name(), "continuity")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			stamp, convErr := strconv.ParseInt(strings.TrimSuffix(e.Name(), ".json"), 10, 64)
			if convErr != nil {
				continue
			}
			if stamp < cutoffUnixNano {
				_ = os.Remove(filepath.Join(dir, e.Name()))
			}
		}
	}
	return nil
}
