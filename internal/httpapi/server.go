package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamad/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Devices() types.DevicesResponse
	Status() types.StatusResponse
	EnsureModel(ctx context.Context, id string) (types.EnsureResponse, error)
	Terminate() error
	Ready() bool
	ServerURL() string
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// ListModels godoc
	// @Summary  List discovered models
	// @Produce  json
	// @Success  200 {object} types.ModelsResponse
	// @Router   /models [get]
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})

	// Devices godoc
	// @Summary  Report the accelerator inventory
	// @Produce  json
	// @Success  200 {object} types.DevicesResponse
	// @Router   /devices [get]
	r.Get("/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Devices())
	})

	// Status godoc
	// @Summary  Report daemon and managed server state
	// @Produce  json
	// @Success  200 {object} types.StatusResponse
	// @Router   /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	// Ensure godoc
	// @Summary  Ensure the inference server runs the requested model
	// @Accept   json
	// @Produce  json
	// @Param    request body types.EnsureRequest true "model selection"
	// @Success  200 {object} types.EnsureResponse
	// @Failure  404 {object} types.ErrorResponse
	// @Failure  504 {object} types.ErrorResponse
	// @Router   /ensure [post]
	r.Post("/ensure", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.EnsureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			logEvent(r, "ensure start").Str("model", req.Model).Send()
		}
		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.EnsureModel(joinedCtx, req.Model)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := ensureErrorStatus(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo {
				logEvent(r, "ensure end").Int("status", status).Dur("dur", time.Since(start)).Err(err).Send()
			}
			return
		}
		writeJSON(w, resp)
		if lvl >= LevelInfo {
			logEvent(r, "ensure end").Int("status", 200).Dur("dur", time.Since(start)).Bool("reused", resp.Reused).Send()
		}
	})

	// Terminate godoc
	// @Summary  Stop the managed inference server
	// @Produce  json
	// @Success  204 "terminated"
	// @Failure  500 {object} types.ErrorResponse
	// @Router   /terminate [post]
	r.Post("/terminate", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Terminate(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Completion godoc
	// @Summary  Forward a completion request to the managed server
	// @Accept   json
	// @Produce  json
	// @Router   /completion [post]
	r.Post("/completion", proxyHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
