package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("splitflow.service")

var (
	// runLatency measures extract and reconcile calls.
	// Labels: operation (extract, reconcile), status (success, error)
	runLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitflow",
		Subsystem: "analyzer",
		Name:      "latency_seconds",
		Help:      "Analyzer operation latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation", "status"})

	// changesTotal counts changeset entries by action.
	// Labels: method, action (add, remove, modify)
	changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitflow",
		Subsystem: "analyzer",
		Name:      "changes_total",
		Help:      "Total changeset entries produced by reconcile",
	}, []string{"method", "action"})

	// warningsTotal counts recoverable problems found in documents.
	// Labels: kind
	warningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitflow",
		Subsystem: "analyzer",
		Name:      "warnings_total",
		Help:      "Total document warnings by kind",
	}, []string{"kind"})

	// rowsExtracted tracks the size of extracted tables.
	rowsExtracted = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "splitflow",
		Subsystem: "analyzer",
		Name:      "table_rows",
		Help:      "Rows in extracted canonical tables",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// deliveriesTotal counts report deliveries.
	// Labels: status (success, error)
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitflow",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Total report deliveries by status",
	}, []string{"status"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
