package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// trackedProcess is the one live server process owned by the supervisor.
type trackedProcess struct {
	cmd    *exec.Cmd
	pid    int
	args   []string
	waitCh chan error
}

// buildArgs composes the llama-server invocation for modelPath: device
// selection first, then model, context size, request timeout, host,
// verbosity and the optional port.
func (s *Supervisor) buildArgs(modelPath string) []string {
	args := s.deviceArgs()
	args = append(args,
		"--model", modelPath,
		"--ctx-size", strconv.Itoa(s.cfg.CtxSize),
		"--timeout", strconv.Itoa(serverRequestTimeoutSecs),
		"--host", s.cfg.Host,
		"--verbose",
	)
	if s.cfg.Port != "" {
		args = append(args, "--port", s.cfg.Port)
	}
	return args
}

// deviceArgs derives accelerator flags from the inventory: the primary
// device hosts the bulk of the model, and with several devices the load is
// split proportionally to each device's available memory.
func (s *Supervisor) deviceArgs() []string {
	if !s.cfg.UseGPU || s.inv == nil {
		return nil
	}
	main := s.inv.PrimaryOrdinal()
	if len(s.cfg.DeviceOrdinals) > 0 {
		// Pinned visibility renumbers devices from 0 inside the child, so
		// the primary is addressed by its position in the visible list.
		for i, d := range s.inv.Devices() {
			if d.Ordinal == main {
				main = i
				break
			}
		}
	}
	args := []string{"--main-gpu", strconv.Itoa(main)}
	if s.inv.Count() > 1 {
		total := s.inv.TotalAvailable()
		fractions := make([]string, 0, s.inv.Count())
		for _, d := range s.inv.Devices() {
			fractions = append(fractions, fmt.Sprintf("%.2f", float64(d.AvailableMemory)/float64(total)))
		}
		args = append(args, "--split-mode", "layer", "--tensor-split", strings.Join(fractions, ","))
	}
	return args
}

// childEnv builds the spawn environment. Device visibility is set on the
// child only; the daemon's own environment is never mutated, so concurrent
// accelerator queries in this process always observe the real setting.
func (s *Supervisor) childEnv() []string {
	env := os.Environ()
	if !s.cfg.UseGPU {
		// Empty visibility forces CPU-only execution.
		return append(env, "CUDA_VISIBLE_DEVICES=")
	}
	if len(s.cfg.DeviceOrdinals) > 0 {
		// Visibility follows inventory order so the child's renumbering
		// matches the tensor-split fractions and the remapped primary.
		ordinals := s.cfg.DeviceOrdinals
		if s.inv != nil {
			devs := s.inv.Devices()
			ordinals = make([]int, 0, len(devs))
			for _, d := range devs {
				ordinals = append(ordinals, d.Ordinal)
			}
		}
		parts := make([]string, 0, len(ordinals))
		for _, ordinal := range ordinals {
			parts = append(parts, strconv.Itoa(ordinal))
		}
		return append(env, "CUDA_VISIBLE_DEVICES="+strings.Join(parts, ","))
	}
	return env
}

// spawnLocked starts the server process and records the handle. The caller
// holds s.mu.
func (s *Supervisor) spawnLocked(modelPath string) error {
	args := s.buildArgs(modelPath)
	cmd := exec.Command(s.cfg.BinPath, args...)
	if s.cfg.WorkDir != "" {
		cmd.Dir = s.cfg.WorkDir
	}
	cmd.Env = s.childEnv()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.BinPath, err)
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	s.proc = &trackedProcess{cmd: cmd, pid: cmd.Process.Pid, args: args, waitCh: waitCh}
	spawnsTotal.Inc()
	s.log.Info().Int("pid", cmd.Process.Pid).Strs("args", args).Msg("spawned llama-server")
	return nil
}

// terminateLocked signals the tracked process, always sweeps for orphans of
// the managed binary, and settles so the port is released before any
// subsequent spawn reuses it. The caller holds s.mu.
func (s *Supervisor) terminateLocked() error {
	if p := s.proc; p != nil {
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return ErrTermination(p.pid, err)
		}
		select {
		case <-p.waitCh:
		case <-time.After(gracefulExitWait):
			_ = p.cmd.Process.Kill()
			<-p.waitCh
		}
		terminationsTotal.Inc()
		s.log.Info().Int("pid", p.pid).Msg("terminated server process")
	}
	s.proc = nil
	s.currentID = ""
	s.currentPath = ""
	// A prior supervisor may have crashed and left a server behind, and a
	// pid can be reused; the sweep is unconditional.
	s.sweep()
	time.Sleep(s.cfg.SettleDelay)
	return nil
}

// sweepOrphans terminates every process whose invocation matches the managed
// binary pattern, regardless of whether this supervisor spawned it.
func (s *Supervisor) sweepOrphans() {
	for _, pid := range pgrepAll(s.cfg.SweepPattern) {
		if pid == os.Getpid() {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err == nil {
			orphanKillsTotal.Inc()
			s.log.Warn().Int("pid", pid).Msg("terminated orphaned server process")
		}
	}
}

// pgrepAll lists pids whose full command line matches pattern.
func pgrepAll(pattern string) []int {
	out, err := exec.Command("pgrep", "-f", pattern).Output()
	if err != nil {
		// Exit status 1 means nothing matched.
		return nil
	}
	var pids []int
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}
