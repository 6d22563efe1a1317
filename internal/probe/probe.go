// Package probe implements the two-stage check that decides whether a
// llama-server endpoint is reachable and, if so, which model it serves.
// Results are derived fresh on every call and never cached.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// State is the probe verdict about the endpoint.
type State int

const (
	Stopped State = iota
	RunningWrongModel
	RunningCorrectModel
)

func (s State) String() string {
	switch s {
	case RunningCorrectModel:
		return "running_correct_model"
	case RunningWrongModel:
		return "running_wrong_model"
	default:
		return "stopped"
	}
}

// Cadences for the quick status check and the slower startup poll.
const (
	StatusCheckBudget    = 650 * time.Millisecond
	StatusRetryInterval  = 200 * time.Millisecond
	StartupCheckBudget   = 30 * time.Second
	StartupRetryInterval = 5 * time.Second
)

const (
	identityAttempts = 3
	requestTimeout   = 5 * time.Second
)

// Prober checks a single endpoint for a single expected model identifier.
type Prober struct {
	addr   string // host[:port]
	model  string
	client *http.Client
	log    zerolog.Logger
}

// New constructs a Prober for addr expecting model.
func New(addr, model string, log zerolog.Logger) *Prober {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   requestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	// Timeout stays 0: every request carries a context deadline instead.
	return &Prober{
		addr:   addr,
		model:  model,
		client: &http.Client{Transport: tr, Timeout: 0},
		log:    log,
	}
}

// Check runs both stages and returns the endpoint state. Transport
// reachability is retried until budget elapses, sleeping interval between
// attempts; the identity stage only runs once the endpoint is reachable.
func (p *Prober) Check(ctx context.Context, budget, interval time.Duration) State {
	if !p.reachable(ctx, budget, interval) {
		return Stopped
	}
	p.log.Debug().Str("addr", p.addr).Msg("endpoint is reachable")
	return p.identity(ctx, interval)
}

// reachable attempts TCP connections until one succeeds or budget elapses.
func (p *Prober) reachable(ctx context.Context, budget, interval time.Duration) bool {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", p.addr, interval)
		if err == nil {
			_ = conn.Close()
			observeAttempt("reachability", "ok")
			return true
		}
		observeAttempt("reachability", "error")
		if !sleep(ctx, interval) {
			return false
		}
	}
	return false
}

// identity issues minimal completion calls until one answers or the attempt
// budget is used up. A reachable endpoint that never answers a well-formed
// completion is reported as Stopped.
func (p *Prober) identity(ctx context.Context, interval time.Duration) State {
	for attempt := 1; attempt <= identityAttempts; attempt++ {
		served, err := p.servedModel(ctx)
		if err == nil {
			if served == p.model {
				observeAttempt("identity", "match")
				return RunningCorrectModel
			}
			observeAttempt("identity", "mismatch")
			p.log.Info().Str("serving", served).Str("requested", p.model).
				Msg("endpoint serves a different model")
			return RunningWrongModel
		}
		observeAttempt("identity", "error")
		p.log.Debug().Err(err).Int("attempt", attempt).Msg("identity check failed")
		if !sleep(ctx, interval) {
			return Stopped
		}
	}
	return Stopped
}

// completionRequest is the minimal llama-server completion payload: a single
// token prompt with zero tokens requested.
type completionRequest struct {
	Prompt   []uint32 `json:"prompt"`
	NPredict int      `json:"n_predict"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

// servedModel asks the endpoint which model it is serving.
func (p *Prober) servedModel(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	body, _ := json.Marshal(completionRequest{Prompt: []uint32{0}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+p.addr+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion probe: %s: %s", resp.Status, string(b))
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion probe response: %w", err)
	}
	return out.Model, nil
}

// sleep waits d without blocking past ctx cancellation. It reports whether
// the full interval elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
