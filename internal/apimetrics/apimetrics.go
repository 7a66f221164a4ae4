// Package apimetrics tracks per-endpoint request counts and latencies for
// the Management API's /statistics route. It is deliberately separate from
// internal/api/middleware's Prometheus metrics, which exist to be scraped
// by an external collector; this package exists to be read back out as
// JSON from inside the process, so it gathers its own counters directly
// instead of going through promhttp.
package apimetrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// EndpointStats is one endpoint's accumulated request counters, ready to
// serialize as part of the dashboard/statistics response.
type EndpointStats struct {
	Endpoint       string  `json:"endpoint"`
	RequestCount   int64   `json:"requestCount"`
	ErrorCount     int64   `json:"errorCount"`
	AverageLatency float64 `json:"averageLatencyMs"`
}

// Recorder accumulates request counts and latencies per endpoint name using
// its own Prometheus registry, gathered back into EndpointStats on demand
// instead of being scraped.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewRecorder builds a Recorder with its own private registry, independent
// of the default one internal/api/middleware registers its scrape metrics
// against.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_endpoint_requests_total",
		Help: "Total requests dispatched per configured endpoint.",
	}, []string{"endpoint"})
	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_endpoint_errors_total",
		Help: "Total failed requests per configured endpoint.",
	}, []string{"endpoint"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_endpoint_latency_seconds",
		Help:    "Per-endpoint request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	reg.MustRegister(requests, errors, latency)

	return &Recorder{registry: reg, requests: requests, errors: errors, latency: latency}
}

// Observe records one completed request against endpoint, with isError set
// when the response was a 4xx/5xx.
func (r *Recorder) Observe(endpoint string, durationSeconds float64, isError bool) {
	r.requests.WithLabelValues(endpoint).Inc()
	if isError {
		r.errors.WithLabelValues(endpoint).Inc()
	}
	r.latency.WithLabelValues(endpoint).Observe(durationSeconds)
}

// Snapshot gathers the current counters into one EndpointStats per endpoint
// observed so far.
func (r *Recorder) Snapshot() ([]EndpointStats, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering endpoint metrics: %w", err)
	}

	byEndpoint := make(map[string]*EndpointStats)
	get := func(endpoint string) *EndpointStats {
		if s, ok := byEndpoint[endpoint]; ok {
			return s
		}
		s := &EndpointStats{Endpoint: endpoint}
		byEndpoint[endpoint] = s
		return s
	}

	for _, family := range families {
		switch family.GetName() {
		case "gateway_endpoint_requests_total":
			for _, m := range family.GetMetric() {
				get(endpointLabel(m)).RequestCount = int64(m.GetCounter().GetValue())
			}
		case "gateway_endpoint_errors_total":
			for _, m := range family.GetMetric() {
				get(endpointLabel(m)).ErrorCount = int64(m.GetCounter().GetValue())
			}
		case "gateway_endpoint_latency_seconds":
			for _, m := range family.GetMetric() {
				h := m.GetHistogram()
				stats := get(endpointLabel(m))
				if h.GetSampleCount() > 0 {
					stats.AverageLatency = (h.GetSampleSum() / float64(h.GetSampleCount())) * 1000.0
				}
			}
		}
	}

	out := make([]EndpointStats, 0, len(byEndpoint))
	for _, s := range byEndpoint {
		out = append(out, *s)
	}
	return out, nil
}

func endpointLabel(m *dto.Metric) string {
	for _, label := range m.GetLabel() {
		if label.GetName() == "endpoint" {
			return label.GetValue()
		}
	}
	return ""
}
