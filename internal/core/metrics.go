package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Import calls broken down by kind, mode and outcome.",
	}, []string{"kind", "mode", "outcome"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Processed import rows broken down by kind, mode and result.",
	}, []string{"kind", "mode", "result"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of import calls.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind", "mode"})

	importPlaceholders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "import",
		Name:      "placeholders_total",
		Help:      "Placeholder entities created while resolving unknown references.",
	}, []string{"kind"})
)

func recordRun(kind RecordKind, mode, outcome string, started time.Time) {
	if kind == "" {
		kind = "unknown"
	}
	importRuns.WithLabelValues(string(kind), mode, outcome).Inc()
	importDuration.WithLabelValues(string(kind), mode).Observe(time.Since(started).Seconds())
}

func recordRows(kind RecordKind, mode string, res *ImportResult) {
	importRows.WithLabelValues(string(kind), mode, "ok").Add(float64(res.OK))
	importRows.WithLabelValues(string(kind), mode, "error").Add(float64(len(res.Errors)))
	importRows.WithLabelValues(string(kind), mode, "skipped").Add(float64(res.Skipped))
}

func recordPlaceholder(kind string) {
	importPlaceholders.WithLabelValues(kind).Inc()
}
