package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/httpapi"
	"llamad/internal/registry"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty
// .gguf files and returns the directory path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", n, err)
		}
	}
	return dir
}

// fakeUpstream stands in for a llama-server process: it answers /completion
// with whatever model path it is told to serve.
type fakeUpstream struct {
	ln    net.Listener
	mu    sync.Mutex
	model string
}

func startFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	u := &fakeUpstream{ln: ln}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		u.mu.Lock()
		m := u.model
		u.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"model": m, "content": "ok"})
	})}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return u
}

func (u *fakeUpstream) setModel(m string) {
	u.mu.Lock()
	u.model = m
	u.mu.Unlock()
}

func (u *fakeUpstream) hostPort(t *testing.T) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(u.ln.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	return host, port
}

// writeSleepScript creates a stand-in server binary that just sleeps.
func writeSleepScript(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "llama-server")
	script := "#!/bin/sh\nsleep 60\n"
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func newTestStack(t *testing.T, modelsDir, defaultModel string, up *fakeUpstream) *httptest.Server {
	t.Helper()
	models, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	host, port := up.hostPort(t)
	bin := writeSleepScript(t, t.TempDir())
	sup := supervisor.New(supervisor.Config{
		BinPath:         bin,
		Host:            host,
		Port:            port,
		SweepPattern:    "^" + bin,
		StatusBudget:    300 * time.Millisecond,
		StatusInterval:  50 * time.Millisecond,
		StartupBudget:   400 * time.Millisecond,
		StartupInterval: 50 * time.Millisecond,
		SettleDelay:     time.Millisecond,
	}, nil, models, defaultModel, zerolog.Nop())
	t.Cleanup(func() { sup.Close() })

	srv := httptest.NewServer(httpapi.NewMux(sup))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func TestE2E_EnsureReuseAndCompletion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	dir := createTempModelsDir(t, "alpha.gguf")
	up := startFakeUpstream(t)
	up.setModel(filepath.Join(dir, "alpha.gguf"))
	srv := newTestStack(t, dir, "alpha.gguf", up)

	// The endpoint already serves alpha, so ensure reuses it.
	resp, raw := postJSON(t, srv.URL+"/ensure", `{"model":"alpha.gguf"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ensure status = %d body = %s", resp.StatusCode, raw)
	}
	var er types.EnsureResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !er.Reused || er.Model != "alpha.gguf" {
		t.Fatalf("ensure resp = %+v", er)
	}

	// Ready because the endpoint answers with the ensured model.
	rr, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	rr.Body.Close()
	if rr.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", rr.StatusCode)
	}

	// Completion traffic is forwarded to the managed endpoint.
	resp, raw = postJSON(t, srv.URL+"/completion", `{"prompt":"hi","n_predict":4}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completion status = %d", resp.StatusCode)
	}
	if !bytes.Contains(raw, []byte(`"content":"ok"`)) {
		t.Fatalf("completion body = %s", raw)
	}
}

func TestE2E_EnsureUnknownModel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	dir := createTempModelsDir(t, "alpha.gguf")
	up := startFakeUpstream(t)
	up.setModel(filepath.Join(dir, "alpha.gguf"))
	srv := newTestStack(t, dir, "alpha.gguf", up)

	resp, raw := postJSON(t, srv.URL+"/ensure", `{"model":"ghost.gguf"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", resp.StatusCode, raw)
	}
	var apiErr types.ErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if apiErr.Code != http.StatusNotFound {
		t.Fatalf("error = %+v", apiErr)
	}
}

func TestE2E_EnsureReplaceTimesOutAgainstStuckEndpoint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	dir := createTempModelsDir(t, "alpha.gguf", "beta.gguf")
	up := startFakeUpstream(t)
	// The endpoint keeps serving alpha no matter what gets spawned, so
	// ensuring beta must exhaust the startup budget and surface 504.
	up.setModel(filepath.Join(dir, "alpha.gguf"))
	srv := newTestStack(t, dir, "alpha.gguf", up)

	resp, raw := postJSON(t, srv.URL+"/ensure", `{"model":"beta.gguf"}`)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d body = %s", resp.StatusCode, raw)
	}

	// The failed replacement must not leave a tracked process behind.
	st, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var sr types.StatusResponse
	if err := json.NewDecoder(st.Body).Decode(&sr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	st.Body.Close()
	if sr.State != "stopped" {
		t.Fatalf("state = %q", sr.State)
	}
}

func TestE2E_DevicesWithoutGPU(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	dir := createTempModelsDir(t, "alpha.gguf")
	up := startFakeUpstream(t)
	srv := newTestStack(t, dir, "alpha.gguf", up)

	resp, err := http.Get(srv.URL + "/devices")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	defer resp.Body.Close()
	var dr types.DevicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dr.Devices) != 0 || dr.PrimaryOrdinal != -1 {
		t.Fatalf("devices = %+v", dr)
	}
}
