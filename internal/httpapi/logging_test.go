package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LevelOff,
		"off":     LevelOff,
		"error":   LevelError,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"garbage": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/status?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override = %d", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/status?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("legacy query override = %d", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/status", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override = %d", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/status", nil)
	if got := requestLogLevel(r); got != defaultLogLevel {
		t.Fatalf("default = %d, want %d", got, defaultLogLevel)
	}
}

func TestLoggingLineWriterSplitsLines(t *testing.T) {
	lw := &loggingLineWriter{}
	if _, err := lw.Write([]byte("partial")); err != nil {
		t.Fatal(err)
	}
	if len(lw.buf) == 0 {
		t.Fatalf("partial line should stay buffered")
	}
	if _, err := lw.Write([]byte(" line\nnext")); err != nil {
		t.Fatal(err)
	}
	if string(lw.buf) != "next" {
		t.Fatalf("buf = %q", lw.buf)
	}
}

func TestIndexByte(t *testing.T) {
	if i := indexByte([]byte("ab\nc"), '\n'); i != 2 {
		t.Fatalf("i = %d", i)
	}
	if i := indexByte([]byte("abc"), '\n'); i != -1 {
		t.Fatalf("i = %d", i)
	}
}
