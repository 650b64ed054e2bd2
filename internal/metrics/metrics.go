// Package metrics holds the Prometheus instruments for the registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Events           prometheus.Gauge
	Enrollments      *prometheus.CounterVec
	Notifications    prometheus.Counter
	DeliveryFailures prometheus.Counter
	Saves            *prometheus.CounterVec
	Loads            *prometheus.CounterVec
	SkippedRecords   prometheus.Counter
	BackupFailures   prometheus.Counter
}

// Enrollment outcomes.
const (
	OutcomeEnrolled  = "enrolled"
	OutcomeFull      = "full"
	OutcomeDuplicate = "duplicate"
	OutcomeWithdrawn = "withdrawn"
)

// New creates the metrics and registers them with reg. A nil reg uses a
// private registry, which keeps tests independent of the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewGauge(prometheus.GaugeOpts{
			Name: "event_registry_events",
			Help: "Number of events currently held in the registry",
		}),
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "event_registry_enrollments_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"outcome"}),
		Notifications: f.NewCounter(prometheus.CounterOpts{
			Name: "event_registry_notifications_total",
			Help: "Change messages broadcast by events",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "event_registry_delivery_failures_total",
			Help: "Observer deliveries that panicked",
		}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "event_registry_saves_total",
			Help: "Persistence saves by result",
		}, []string{"result"}),
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "event_registry_loads_total",
			Help: "Persistence loads by result",
		}, []string{"result"}),
		SkippedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "event_registry_skipped_records_total",
			Help: "Records skipped or participants dropped while decoding",
		}),
		BackupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "event_registry_backup_failures_total",
			Help: "Backups that failed before an overwrite",
		}),
	}
}

// SetEvents records the registry size.
func (m *Metrics) SetEvents(n int) { m.Events.Set(float64(n)) }

// IncEnrollment counts one enrollment attempt with the given outcome.
func (m *Metrics) IncEnrollment(outcome string) { m.Enrollments.WithLabelValues(outcome).Inc() }

// ObserveSave counts a save result.
func (m *Metrics) ObserveSave(err error) { m.Saves.WithLabelValues(result(err)).Inc() }

// ObserveLoad counts a load result.
func (m *Metrics) ObserveLoad(err error) { m.Loads.WithLabelValues(result(err)).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
