// Package metrics registers the Prometheus instruments for the compliance
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	EventsRegistered    prometheus.Counter
	PlansGenerated      prometheus.Counter
	Decommissions       prometheus.Counter
	AuditEntries        prometheus.Counter
	AuditShipped        prometheus.Counter
	ProjectionRefreshes prometheus.Counter
	OperationDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on a caller-supplied registerer, which keeps
// tests free of duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_check_events_registered_total",
			Help: "Total number of check events registered.",
		}),
		PlansGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_check_plans_generated_total",
			Help: "Total number of check plans inserted by plan generation.",
		}),
		Decommissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_instruments_decommissioned_total",
			Help: "Total number of instrument decommission operations.",
		}),
		AuditEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_audit_entries_total",
			Help: "Total number of audit entries appended.",
		}),
		AuditShipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_audit_entries_shipped_total",
			Help: "Total number of audit entries shipped to the audit topic.",
		}),
		ProjectionRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "metrology_projection_refreshes_total",
			Help: "Total number of due projection refreshes.",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metrology_operation_duration_seconds",
			Help:    "Latency of compliance operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
