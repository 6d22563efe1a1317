// Package supervisor owns the llama-server subprocess: it builds launch
// arguments from the device inventory, spawns and terminates the process,
// and drives the probe-based state machine that decides whether an existing
// server at the endpoint is usable.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/device"
	"llamad/internal/probe"
	"llamad/internal/registry"
	"llamad/pkg/types"
)

const (
	// serverRequestTimeoutSecs is passed to llama-server as --timeout.
	serverRequestTimeoutSecs = 600
	// gracefulExitWait is how long a signaled process may take to exit
	// before it is killed outright.
	gracefulExitWait = 2 * time.Second
	// defaultSettleDelay is the pause after a kill so the network port is
	// released before a subsequent spawn reuses it.
	defaultSettleDelay = time.Second
)

// Config holds launch and polling parameters for one Supervisor.
type Config struct {
	// BinPath is the llama-server binary to spawn.
	BinPath string
	// WorkDir is the directory the binary is invoked from.
	WorkDir string
	Host    string
	// Port the managed server binds. Empty defaults to llama-server's own
	// 8080 so the probe endpoint is always dialable.
	Port    string
	CtxSize int
	// UseGPU false forces CPU-only execution by hiding all devices from the child.
	UseGPU bool
	// DeviceOrdinals holds explicitly requested ordinals; when set, child
	// visibility is restricted to exactly these devices.
	DeviceOrdinals []int
	// SweepPattern matches the managed binary's invocation in `pgrep -f`
	// terms. Empty derives it from BinPath.
	SweepPattern string

	// Poll cadences. Zero values take the probe package defaults.
	StatusBudget    time.Duration
	StatusInterval  time.Duration
	StartupBudget   time.Duration
	StartupInterval time.Duration
	// SettleDelay overrides the post-kill settle pause; zero uses the default.
	SettleDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.BinPath == "" {
		c.BinPath = "./llama-server"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.CtxSize <= 0 {
		c.CtxSize = 4096
	}
	if c.SweepPattern == "" {
		c.SweepPattern = "^" + c.BinPath
	}
	if c.StatusBudget <= 0 {
		c.StatusBudget = probe.StatusCheckBudget
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = probe.StatusRetryInterval
	}
	if c.StartupBudget <= 0 {
		c.StartupBudget = probe.StartupCheckBudget
	}
	if c.StartupInterval <= 0 {
		c.StartupInterval = probe.StartupRetryInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}
}

// prober is the slice of the probe package the supervisor drives. Tests
// substitute stubs.
type prober interface {
	Check(ctx context.Context, budget, interval time.Duration) probe.State
}

// Supervisor owns at most one live server process at a time. EnsureModel,
// EnsureRunning and Terminate are serialized internally; a single Supervisor
// is safe for concurrent use, but spawns are strictly one at a time.
type Supervisor struct {
	mu           sync.Mutex
	cfg          Config
	inv          *device.Inventory // nil when GPU use is disabled
	models       []types.Model
	defaultModel string
	log          zerolog.Logger
	startedAt    time.Time

	proc        *trackedProcess
	currentID   string
	currentPath string

	// Test seams; production values are installed by New.
	newProber func(addr, model string) prober
	sweep     func()
}

// New constructs a Supervisor. inv may be nil when cfg.UseGPU is false.
func New(cfg Config, inv *device.Inventory, models []types.Model, defaultModel string, log zerolog.Logger) *Supervisor {
	cfg.applyDefaults()
	s := &Supervisor{
		cfg:          cfg,
		inv:          inv,
		models:       models,
		defaultModel: defaultModel,
		log:          log,
		startedAt:    time.Now(),
	}
	s.newProber = func(addr, model string) prober {
		return probe.New(addr, model, log)
	}
	s.sweep = s.sweepOrphans
	exportDeviceMetrics(inv)
	return s
}

// Addr returns the endpoint the managed server is expected at, host:port.
func (s *Supervisor) Addr() string {
	return s.cfg.Host + ":" + s.cfg.Port
}

// ServerURL returns the managed server's base URL for request forwarding.
func (s *Supervisor) ServerURL() string { return "http://" + s.Addr() }

// EnsureModel resolves a model id against the registry and ensures a server
// serving it is reachable. An empty id uses the configured default.
func (s *Supervisor) EnsureModel(ctx context.Context, id string) (types.EnsureResponse, error) {
	if id == "" {
		id = s.defaultModel
	}
	if id == "" {
		return types.EnsureResponse{}, ErrModelNotFound("(no model requested and no default configured)")
	}
	mdl, ok := registry.Find(s.models, id)
	if !ok {
		return types.EnsureResponse{}, ErrModelNotFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	reused, err := s.ensureRunningLocked(ctx, mdl.Path)
	if err != nil {
		return types.EnsureResponse{}, err
	}
	s.currentID = id
	resp := types.EnsureResponse{Model: id, Addr: s.Addr(), Reused: reused}
	if s.proc != nil {
		resp.PID = s.proc.pid
	}
	return resp, nil
}

// EnsureRunning ensures a server serving the model at modelPath is reachable
// at the configured endpoint. It reports whether an already-correct server
// was reused.
func (s *Supervisor) EnsureRunning(ctx context.Context, modelPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureRunningLocked(ctx, modelPath)
}

// ensureRunningLocked is the probe-driven state machine. Exactly one of the
// three probe outcomes decides what happens:
//
//	RunningCorrectModel -> reuse, nothing spawned or killed
//	RunningWrongModel   -> terminate (tracked pid + orphan sweep), then spawn
//	Stopped             -> spawn
//
// After a spawn the probe is re-run with the longer startup cadence; if the
// correct model is not observed within the budget, the spawned process is
// killed and the failure is surfaced. There is no retry past the budget.
func (s *Supervisor) ensureRunningLocked(ctx context.Context, modelPath string) (bool, error) {
	pr := s.newProber(s.Addr(), modelPath)

	switch pr.Check(ctx, s.cfg.StatusBudget, s.cfg.StatusInterval) {
	case probe.RunningCorrectModel:
		// Record the served path on reuse too, otherwise readiness cannot
		// see a server this supervisor never spawned itself.
		s.currentPath = modelPath
		s.log.Info().Str("model", modelPath).Msg("server already serving the requested model")
		return true, nil
	case probe.RunningWrongModel:
		s.log.Info().Str("model", modelPath).Msg("server is serving a different model, replacing it")
		if err := s.terminateLocked(); err != nil {
			return false, err
		}
	}

	if err := s.spawnLocked(modelPath); err != nil {
		return false, err
	}

	state := pr.Check(ctx, s.cfg.StartupBudget, s.cfg.StartupInterval)
	if state == probe.RunningCorrectModel {
		s.currentPath = modelPath
		s.log.Info().Int("pid", s.proc.pid).Str("model", modelPath).Msg("server started")
		return false, nil
	}
	if err := s.terminateLocked(); err != nil {
		s.log.Error().Err(err).Msg("cleanup after failed startup")
	}
	return false, ErrStartupTimeout(modelPath, state.String())
}

// Terminate stops the tracked process if any and always sweeps for orphans.
func (s *Supervisor) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminateLocked()
}

// Close terminates the managed server. Callers defer it so no server
// process outlives its supervisor.
func (s *Supervisor) Close() error { return s.Terminate() }

// Ready reports whether the endpoint currently serves the model the
// supervisor last started. The state is probed fresh, never cached.
func (s *Supervisor) Ready() bool {
	s.mu.Lock()
	path := s.currentPath
	s.mu.Unlock()
	if path == "" {
		return false
	}
	pr := s.newProber(s.Addr(), path)
	return pr.Check(context.Background(), s.cfg.StatusBudget, s.cfg.StatusInterval) == probe.RunningCorrectModel
}

// ListModels returns the registry the supervisor was built with.
func (s *Supervisor) ListModels() []types.Model {
	out := make([]types.Model, len(s.models))
	copy(out, s.models)
	return out
}

// Devices returns the device inventory snapshot, or an empty response with
// PrimaryOrdinal -1 when GPU use is disabled.
func (s *Supervisor) Devices() types.DevicesResponse {
	if s.inv == nil {
		return types.DevicesResponse{PrimaryOrdinal: -1}
	}
	return s.inv.Snapshot()
}

// Status reports the supervisor's view of the tracked process.
func (s *Supervisor) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := types.StatusResponse{
		State:          "stopped",
		Addr:           s.Addr(),
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if s.proc != nil {
		st.State = "running"
		st.PID = s.proc.pid
		st.Model = s.currentID
	}
	return st
}
