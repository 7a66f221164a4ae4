// Package management implements the gateway's read-only reflection API:
// what's configured, what's healthy, and what it's been doing. Every route
// here reads from Registry, health.Monitor and apimetrics.Recorder — none
// of them ever mutate gateway state.
package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/sql-gateway/internal/apimetrics"
	"github.com/vitaliisemenov/sql-gateway/internal/health"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// Service backs the /api/management routes.
type Service struct {
	registry  *registry.Registry
	monitor   *health.Monitor
	metrics   *apimetrics.Recorder
	startedAt time.Time
}

// New builds a management Service over the gateway's live components.
func New(reg *registry.Registry, monitor *health.Monitor, metrics *apimetrics.Recorder) *Service {
	return &Service{registry: reg, monitor: monitor, metrics: metrics, startedAt: time.Now()}
}

// Register mounts the fixed management routes on router.
func (s *Service) Register(router *mux.Router) {
	sub := router.PathPrefix("/api/management").Subrouter()
	sub.HandleFunc("/config/databases", s.handleConfigKind("databases")).Methods(http.MethodGet)
	sub.HandleFunc("/config/queries", s.handleConfigKind("queries")).Methods(http.MethodGet)
	sub.HandleFunc("/config/endpoints", s.handleConfigKind("endpoints")).Methods(http.MethodGet)
	sub.HandleFunc("/config/metadata", s.handleConfigMetadata).Methods(http.MethodGet)
	sub.HandleFunc("/config/paths", s.handleConfigPaths).Methods(http.MethodGet)
	sub.HandleFunc("/config/contents", s.handleConfigContents).Methods(http.MethodGet)
	sub.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	sub.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	sub.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
}

func (s *Service) handleConfigKind(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.configKind(kind))
	}
}

func (s *Service) configKind(kind string) map[string]any {
	switch kind {
	case "databases":
		dbs := s.registry.SanitizedDatabases()
		return map[string]any{"count": len(dbs), "databases": dbs}
	case "queries":
		queries := s.registry.Queries()
		return map[string]any{"count": len(queries), "queries": queries}
	case "endpoints":
		endpoints := s.registry.Endpoints()
		return map[string]any{"count": len(endpoints), "endpoints": endpoints}
	default:
		return map[string]any{"count": 0}
	}
}

func (s *Service) handleConfigMetadata(w http.ResponseWriter, r *http.Request) {
	databases, queries, endpoints := s.registry.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"databases": databases,
		"queries":   queries,
		"endpoints": endpoints,
		"warnings":  s.registry.Warnings(),
	})
}

func (s *Service) handleConfigPaths(w http.ResponseWriter, r *http.Request) {
	endpoints := s.registry.Endpoints()
	paths := make([]map[string]string, 0, len(endpoints))
	for name, ep := range endpoints {
		paths = append(paths, map[string]string{"name": name, "path": ep.Path, "method": ep.Method})
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

func (s *Service) handleConfigContents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"databases": s.registry.SanitizedDatabases(),
		"queries":   s.registry.Queries(),
		"endpoints": s.registry.Endpoints(),
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := s.monitor.Overall()
	status := http.StatusOK
	if overall == health.OverallDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":    overall,
		"databases": s.monitor.All(),
	})
}

func (s *Service) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.metrics.Snapshot()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptimeSeconds": time.Since(s.startedAt).Seconds(),
		"endpoints":     stats,
	})
}

func (s *Service) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.metrics.Snapshot()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	databases, queries, endpoints := s.registry.Counts()

	writeJSON(w, http.StatusOK, map[string]any{
		"config": map[string]any{
			"databases": databases,
			"queries":   queries,
			"endpoints": endpoints,
			"warnings":  s.registry.Warnings(),
		},
		"health": map[string]any{
			"status":    s.monitor.Overall(),
			"databases": s.monitor.All(),
		},
		"statistics": map[string]any{
			"uptimeSeconds": time.Since(s.startedAt).Seconds(),
			"endpoints":     stats,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
