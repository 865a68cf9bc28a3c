// Package metrics provides Prometheus metrics for the flow service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowsTotal counts flow lifecycle operations.
	FlowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "flows_total",
			Help:      "Total number of flow operations",
		},
		[]string{"operation"}, // "created", "deleted", "imported", "duplicated"
	)

	// MutationsTotal counts graph mutations by type and result.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "mutations_total",
			Help:      "Total number of graph mutations",
		},
		[]string{"type", "result"}, // type: "add_node", "remove_node", ...; result: "ok", "refused"
	)

	// QuotaRefusalsTotal counts mutations refused by plan limits.
	QuotaRefusalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "quota_refusals_total",
			Help:      "Total number of operations refused by plan limits",
		},
		[]string{"operation"},
	)

	// ValidationsTotal counts validation passes by outcome.
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "validations_total",
			Help:      "Total number of validation passes",
		},
		[]string{"outcome"}, // "valid", "invalid"
	)

	// SimSessionsActive tracks open simulator sessions.
	SimSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zapfunnel",
			Subsystem: "simulator",
			Name:      "sessions_active",
			Help:      "Number of currently open simulator sessions",
		},
	)

	// SimStepsTotal counts simulator steps by node kind.
	SimStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "simulator",
			Name:      "steps_total",
			Help:      "Total number of simulated conversation steps",
		},
		[]string{"kind"},
	)

	// ExportsTotal counts export/import operations by result.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "exports_total",
			Help:      "Total number of export and import operations",
		},
		[]string{"operation", "result"}, // operation: "export", "import"; result: "ok", "rejected"
	)

	// ArchiveUploadsTotal counts snapshot uploads to object storage.
	ArchiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "archive_uploads_total",
			Help:      "Total number of snapshot uploads to the archive",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zapfunnel",
			Subsystem: "flow",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WSConnectionsActive tracks open simulator websockets.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zapfunnel",
			Subsystem: "simulator",
			Name:      "ws_connections_active",
			Help:      "Number of open simulator websocket connections",
		},
	)
)
