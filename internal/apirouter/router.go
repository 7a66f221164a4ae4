// Package apirouter turns a registry.Registry into a live gorilla/mux
// router: one GET route per EndpointConfig, dispatched through a
// dispatcher.Dispatcher, plus the fixed system routes (health, metrics).
package apirouter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/sql-gateway/internal/api/middleware"
	"github.com/vitaliisemenov/sql-gateway/internal/apierrors"
	"github.com/vitaliisemenov/sql-gateway/internal/apimetrics"
	"github.com/vitaliisemenov/sql-gateway/internal/dispatcher"
	"github.com/vitaliisemenov/sql-gateway/internal/health"
	"github.com/vitaliisemenov/sql-gateway/internal/management"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// Config toggles the router's ambient middleware.
type Config struct {
	EnableCompression bool
	EnableCORS        bool
	EnableMetrics     bool
	MetricsPath       string
	CORSConfig        middleware.CORSConfig

	// Management, when non-nil, mounts the /api/management routes.
	Management *management.Service
	// Metrics records per-endpoint request counts/latencies behind
	// Management's /statistics route. A nil Metrics disables recording.
	Metrics *apimetrics.Recorder
}

// DefaultConfig returns the router's default middleware toggles.
func DefaultConfig() Config {
	return Config{
		EnableCompression: true,
		EnableCORS:        true,
		EnableMetrics:     true,
		MetricsPath:       "/metrics",
		CORSConfig:        middleware.DefaultCORSConfig(),
	}
}

// New builds the full router: global middleware stack, one route per
// registry endpoint, and the fixed /health and /metrics routes.
//
// The middleware stack is applied in a fixed order:
//  1. RequestID
//  2. Logging
//  3. Metrics (optional)
//  4. CORS (optional)
//  5. Compression (optional)
func New(reg *registry.Registry, disp *dispatcher.Dispatcher, monitor *health.Monitor, logger *slog.Logger, cfg Config) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	if cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if cfg.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	}
	if cfg.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	registerEndpoints(router, reg, disp, logger, cfg.Metrics)
	registerHealthRoute(router, monitor)

	if cfg.EnableMetrics {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
	}

	if cfg.Management != nil {
		cfg.Management.Register(router)
	}

	return router
}

func registerEndpoints(router *mux.Router, reg *registry.Registry, disp *dispatcher.Dispatcher, logger *slog.Logger, metrics *apimetrics.Recorder) {
	for _, endpoint := range reg.Endpoints() {
		endpoint := endpoint
		router.HandleFunc(endpoint.Path, endpointHandler(endpoint.Name, disp, logger, metrics)).Methods(endpoint.Method)
	}
}

// endpointHandler adapts one registry endpoint into an http.HandlerFunc:
// collect path/query/body parameters, dispatch, write the JSON envelope.
func endpointHandler(endpointName string, disp *dispatcher.Dispatcher, logger *slog.Logger, metrics *apimetrics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetRequestID(r.Context())

		raw := dispatcher.RawParameters{
			PathVars:   mux.Vars(r),
			QueryValue: r.URL.Query(),
			BodyFields: parseBodyFields(r),
		}

		resp, err := disp.Dispatch(r.Context(), endpointName, raw)
		if err != nil {
			if metrics != nil {
				metrics.Observe(endpointName, time.Since(start).Seconds(), true)
			}
			writeDispatchError(w, err, requestID, logger)
			return
		}
		if metrics != nil {
			metrics.Observe(endpointName, time.Since(start).Seconds(), false)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response body", "endpoint", endpointName, "error", err)
		}
	}
}

// parseBodyFields reads a JSON request body into a flat field map for
// body-field sourced parameters. A missing or empty body is not an error —
// most gateway endpoints are GETs with no body at all.
func parseBodyFields(r *http.Request) map[string]any {
	fields := make(map[string]any)
	if r.Body == nil || r.ContentLength == 0 {
		return fields
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return fields
	}
	_ = json.NewDecoder(r.Body).Decode(&fields)
	return fields
}

func writeDispatchError(w http.ResponseWriter, err error, requestID string, logger *slog.Logger) {
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		logger.Error("dispatch returned an unclassified error", "error", err)
		apiErr = apierrors.NewInternalError("internal server error")
	}
	apierrors.WriteError(w, apiErr.WithRequestID(requestID))
}

func registerHealthRoute(router *mux.Router, monitor *health.Monitor) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		overall := monitor.Overall()
		status := http.StatusOK
		if overall != health.OverallUp {
			status = http.StatusServiceUnavailable
		}

		body := struct {
			Status    string                    `json:"status"`
			Databases map[string]health.Result `json:"databases"`
		}{
			Status:    string(overall),
			Databases: monitor.All(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}).Methods(http.MethodGet)
}
