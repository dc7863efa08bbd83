package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SQLOperations counts every statement issued against the store.
	// Labels allow filtering by table, action (select/update/batch_update/delete)
	// and result (ok/error).
	SQLOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spx_sql_operations_total",
		Help: "Total number of SQL statements executed by the config service",
	}, []string{"table", "action", "result"})

	// RequestDuration measures HTTP handler latency per route
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spx_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	// ConfigChanges counts Rockerbox client mutations by action and result
	ConfigChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spx_config_changes_total",
		Help: "Total number of Rockerbox client config mutations",
	}, []string{"action", "result"})

	// EventsPublished counts change events handed to the broker
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spx_events_published_total",
		Help: "Total number of config change events published to the broker",
	}, []string{"result"})
)
