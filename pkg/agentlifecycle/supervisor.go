package agentlifecycle

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// ResourceCeilings bounds a supervised worker process. Zero means
// "unbounded" for that dimension.
type ResourceCeilings struct {
	MaxMemoryMB  uint64
	MaxCPUPct    float64
	WallClock    time.Duration
}

// Supervisor spawns and polls external worker processes per agent,
// enforcing resource ceilings (spec §4.4 expansion, grounded on
// original_source/src/shutdown.rs and tests/process_safety_tests.rs).
type Supervisor struct {
	ceilings ResourceCeilings
}

func NewSupervisor(ceilings ResourceCeilings) *Supervisor {
	return &Supervisor{ceilings: ceilings}
}

// Spawn starts cmd and records the process handle on the agent. It does
// not block; callers use Supervise to poll.
func (s *Supervisor) Spawn(a *model.Agent, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: spawn agent %s worker: %w", a.ID, err)
	}
	a.Process = &model.ProcessHandle{PID: cmd.Process.Pid, StartedAt: time.Now()}
	return nil
}

// Supervise polls the agent's process until ctx is cancelled or a ceiling
// is breached, at which point it blocks the agent with a recorded cause.
// The wall-clock ceiling is enforced via ctx's own deadline — callers
// should derive ctx with context.WithTimeout(parent, ceilings.WallClock)
// when WallClock is nonzero.
func (s *Supervisor) Supervise(ctx context.Context, a *model.Agent) error {
	if a.Process == nil {
		return fmt.Errorf("supervisor: agent %s has no process handle", a.ID)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				a.Block("wall-clock timeout exceeded")
			}
			return ctx.Err()
		case <-ticker.C:
			if cause, breached := s.checkCeilings(a.Process.PID); breached {
				a.Block(cause)
				return nil
			}
		}
	}
}

func (s *Supervisor) checkCeilings(pid int) (string, bool) {
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		// Process already exited; nothing to supervise further.
		return "", false
	}

	if s.ceilings.MaxMemoryMB > 0 {
		if mem, err := proc.MemoryInfo(); err == nil {
			usedMB := mem.RSS / (1024 * 1024)
			if usedMB > s.ceilings.MaxMemoryMB {
				return fmt.Sprintf("memory ceiling exceeded: %dMB > %dMB", usedMB, s.ceilings.MaxMemoryMB), true
			}
		}
	}

	if s.ceilings.MaxCPUPct > 0 {
		if pct, err := proc.CPUPercent(); err == nil && pct > s.ceilings.MaxCPUPct {
			return fmt.Sprintf("cpu ceiling exceeded: %.1f%% > %.1f%%", pct, s.ceilings.MaxCPUPct), true
		}
	}

	return "", false
}
