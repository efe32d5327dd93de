// Package metrics defines the Prometheus collectors of the reservation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schedula"

type Metrics struct {
	// ProposalsTotal counts reservation proposals by outcome
	// ("accepted", "rejected", "invalid", "error").
	ProposalsTotal *prometheus.CounterVec
	// RejectionsTotal counts business rejections by reason
	// ("lead_time", "overlap").
	RejectionsTotal *prometheus.CounterVec
	// ResolutionsTotal counts approve/deny decisions by resulting status.
	ResolutionsTotal *prometheus.CounterVec
	ExpirationsTotal prometheus.Counter
	// CascadeDenialsTotal counts approved reservations denied because their
	// availability was withdrawn.
	CascadeDenialsTotal prometheus.Counter
	AvailabilityUpsertsTotal *prometheus.CounterVec
	OperationDuration        *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg yields working collectors
// that are not exported anywhere.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProposalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_proposals_total",
				Help:      "Total number of reservation proposals, by outcome.",
			},
			[]string{"outcome"},
		),
		RejectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_rejections_total",
				Help:      "Total number of rejected reservation proposals, by reason.",
			},
			[]string{"reason"},
		),
		ResolutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_resolutions_total",
				Help:      "Total number of resolved pending reservations, by status.",
			},
			[]string{"status"},
		),
		ExpirationsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_expirations_total",
			Help:      "Total number of pending reservations that expired unresolved.",
		}),
		CascadeDenialsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_cascade_denials_total",
			Help:      "Total number of approved reservations denied by availability removal.",
		}),
		AvailabilityUpsertsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_upserts_total",
				Help:      "Total number of availability writes, by action (created/updated).",
			},
			[]string{"action"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine write operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}
