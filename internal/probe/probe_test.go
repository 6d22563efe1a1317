package probe

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeServer runs an httptest server answering /completion with the given model.
func fakeServer(t *testing.T, model string, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode probe request: %v", err)
		}
		if len(req.Prompt) != 1 || req.Prompt[0] != 0 || req.NPredict != 0 {
			t.Errorf("unexpected probe payload: %+v", req)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(completionResponse{Model: model})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func addrOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestCheckCorrectModel(t *testing.T) {
	ts := fakeServer(t, "/models/m.gguf", http.StatusOK)
	p := New(addrOf(ts), "/models/m.gguf", zerolog.Nop())
	if got := p.Check(context.Background(), 200*time.Millisecond, 20*time.Millisecond); got != RunningCorrectModel {
		t.Fatalf("state = %v, want RunningCorrectModel", got)
	}
}

func TestCheckWrongModel(t *testing.T) {
	ts := fakeServer(t, "/models/other.gguf", http.StatusOK)
	p := New(addrOf(ts), "/models/m.gguf", zerolog.Nop())
	if got := p.Check(context.Background(), 200*time.Millisecond, 20*time.Millisecond); got != RunningWrongModel {
		t.Fatalf("state = %v, want RunningWrongModel", got)
	}
}

func TestCheckStoppedWhenNothingListens(t *testing.T) {
	// Grab a free port and close it again so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	p := New(addr, "/models/m.gguf", zerolog.Nop())
	start := time.Now()
	if got := p.Check(context.Background(), 100*time.Millisecond, 20*time.Millisecond); got != Stopped {
		t.Fatalf("state = %v, want Stopped", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("probe did not respect budget: %s", elapsed)
	}
}

func TestCheckReachableButBroken(t *testing.T) {
	// Endpoint accepts connections but every completion attempt errors.
	ts := fakeServer(t, "", http.StatusInternalServerError)
	p := New(addrOf(ts), "/models/m.gguf", zerolog.Nop())
	if got := p.Check(context.Background(), 200*time.Millisecond, 10*time.Millisecond); got != Stopped {
		t.Fatalf("state = %v, want Stopped", got)
	}
}

func TestCheckContextCanceled(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(addr, "/models/m.gguf", zerolog.Nop())
	start := time.Now()
	if got := p.Check(ctx, 10*time.Second, time.Second); got != Stopped {
		t.Fatalf("state = %v, want Stopped", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("canceled probe still waited %s", elapsed)
	}
}

func TestStateString(t *testing.T) {
	if Stopped.String() != "stopped" ||
		RunningWrongModel.String() != "running_wrong_model" ||
		RunningCorrectModel.String() != "running_correct_model" {
		t.Fatalf("unexpected state strings")
	}
}
