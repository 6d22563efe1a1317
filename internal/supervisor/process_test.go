package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSweepOrphansKillsMatching(t *testing.T) {
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
	// Unique tag so the sweep cannot touch unrelated processes.
	tag := fmt.Sprintf("llamad-sweep-%d", time.Now().UnixNano())
	script := filepath.Join(t.TempDir(), tag)
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cmd := exec.Command(script)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start orphan: %v", err)
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	cfg := testConfig(t)
	cfg.SweepPattern = tag
	s := New(cfg, nil, nil, "", zerolog.Nop())
	s.sweepOrphans()

	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatalf("orphan process was not terminated by the sweep")
	}
}

func TestPgrepAllNoMatch(t *testing.T) {
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
	if pids := pgrepAll(fmt.Sprintf("no-such-binary-%d", time.Now().UnixNano())); len(pids) != 0 {
		t.Fatalf("expected no pids, got %v", pids)
	}
}
