package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline-wide counters. Registered against the default registerer and
// served by PrometheusController.
var (
	RecordsStaged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importhub_records_staged_total",
		Help: "Rows parsed, mapped and written to the staging store.",
	})

	RecordsValidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importhub_records_validated_total",
		Help: "Staged records that passed schema validation and simulation.",
	})

	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importhub_records_failed_total",
		Help: "Staged records that ended in an error state, by error source.",
	}, []string{"source"})

	RecordsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importhub_records_committed_total",
		Help: "Staged records committed to the primary store, by operation.",
	}, []string{"operation"})

	RunsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importhub_runs_aborted_total",
		Help: "Import runs aborted before completion, by reason.",
	}, []string{"reason"})
)
