// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package statusapi serves a read-only HTTP view of a recording session:
// liveness, readiness, Prometheus metrics and recorder status.
package statusapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/rigrec/internal/controller"
	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/health"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Source provides the session snapshot served under /api.
type Source interface {
	Status() controller.Snapshot
}

// Deps are the collaborators of the router.
type Deps struct {
	Source  Source
	Health  *health.Manager
	Metrics http.Handler
	// RequestLimit is the per-IP request budget per minute on /api.
	RequestLimit int
	Logger       zerolog.Logger
}

// DefaultRequestLimit is the per-IP budget used when Deps.RequestLimit is zero.
const DefaultRequestLimit = 600

// NewRouter builds the status API handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	limit := deps.RequestLimit
	if limit <= 0 {
		limit = DefaultRequestLimit
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(accessLog(deps.Logger))

	r.Get("/healthz", deps.Health.ServeHealth)
	r.Get("/readyz", deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", deps.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(limit, time.Minute))
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, deps.Source.Status())
		})
		r.Get("/recorders", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, deps.Source.Status().Recorders)
		})
		r.Get("/recorders/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			snap := deps.Source.Status()
			for _, group := range [][]device.Status{snap.Recorders, snap.Dropped} {
				for _, s := range group {
					if s.ID == id {
						writeJSON(w, r, http.StatusOK, s)
						return
					}
				}
			}
			writeJSON(w, r, http.StatusNotFound, errorBody{Error: "not_found", Detail: fmt.Sprintf("no recorder %q", id)})
		})
	})
	return r
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "statusapi")
		logger.Error().Err(err).Str(log.FieldEvent, "statusapi.encode_error").Msg("failed to encode response")
	}
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, r, http.StatusTooManyRequests, errorBody{
				Error:  "rate_limit_exceeded",
				Detail: "Too many requests. Please try again later.",
			})
		}),
	)
}

// accessLog logs each request at debug and records its latency by route
// pattern.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, path, ww.Status(), elapsed)
			logger.Debug().
				Str(log.FieldEvent, "statusapi.request").
				Str("method", r.Method).
				Str("route", path).
				Int("status", ww.Status()).
				Str("request_id", chimw.GetReqID(r.Context())).
				Dur("duration", elapsed).
				Msg("request served")
		})
	}
}
