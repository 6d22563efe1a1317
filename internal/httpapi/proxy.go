package httpapi

import (
	"io"
	"net/http"
	"time"
)

// proxyClient forwards completion traffic to the managed server. No client
// timeout: generation can stream for a long time and the joined context
// already cancels on shutdown or client disconnect.
var proxyClient = &http.Client{}

// proxyHandler forwards the request body to the managed inference server and
// streams the response back. The daemon stays in front so callers never need
// to know which port the current server listens on.
func proxyHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "no inference server is running")
			return
		}

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		url := svc.ServerURL() + "/completion"
		req, err := http.NewRequestWithContext(joinedCtx, http.MethodPost, url, r.Body)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to build upstream request")
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		}

		start := time.Now()
		resp, err := proxyClient.Do(req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			incrementProxyError("upstream_unreachable")
			writeJSONError(w, http.StatusBadGateway, "inference server unreachable")
			return
		}
		defer resp.Body.Close()

		for _, h := range []string{"Content-Type", "Transfer-Encoding"} {
			if v := resp.Header.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		w.WriteHeader(resp.StatusCode)

		writer := io.Writer(w)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		flusher, _ := w.(http.Flusher)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := writer.Write(buf[:n]); werr != nil {
					incrementProxyError("client_write")
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				incrementProxyError("upstream_read")
				return
			}
		}
		if lvl >= LevelInfo {
			logEvent(r, "completion end").Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Send()
		}
	}
}
