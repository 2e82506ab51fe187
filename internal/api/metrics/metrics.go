// Package metrics defines and registers all custom Prometheus metrics for the
// AutoScape API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default registry via promauto at package
// load; the router exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoscape"

// ── Generation flow metrics ──────────────────────────────────────────────────

// GenerationsTotal counts generation flows by terminal state.
// Label:
//   - outcome: "done", "rejected" (insufficient credits), or "failed"
var GenerationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total number of generation flows, by terminal outcome.",
	},
	[]string{"outcome"},
)

// GenerationDuration measures one flow end-to-end, reserve to terminal state.
var GenerationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Duration of a generation flow from reservation to terminal state.",
		Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
	},
	[]string{"outcome"},
)

// HandoffFallbacksTotal counts flows where persistence failed and the result
// was served from the session hand-off cache instead.
var HandoffFallbacksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handoff_fallbacks_total",
		Help:      "Total number of generated designs that fell back to the session hand-off cache.",
	},
)

// DesignsSavedTotal counts persisted designs.
// Label:
//   - visibility: "public" or "private"
var DesignsSavedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "designs_saved_total",
		Help:      "Total number of designs persisted, by visibility.",
	},
	[]string{"visibility"},
)

// ── Credit ledger metrics ────────────────────────────────────────────────────

// CreditsReservedTotal counts successful reservations.
var CreditsReservedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_reserved_total",
		Help:      "Total number of credits reserved for generation flows.",
	},
)

// CreditsRefundedTotal counts refunds by reason.
var CreditsRefundedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_refunded_total",
		Help:      "Total number of credits refunded, by reason.",
	},
	[]string{"reason"},
)

// ReservationsRejectedTotal counts reservations rejected for insufficient credits.
var ReservationsRejectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_rejected_total",
		Help:      "Total number of reservations rejected with insufficient credits.",
	},
)

// LedgerInvalidStateTotal counts rejected transitions on terminal reservations.
// These indicate a bookkeeping bug and are always logged alongside.
var LedgerInvalidStateTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_invalid_state_total",
		Help:      "Total number of attempted transitions on already-terminal reservations.",
	},
)

// ── Video pipeline metrics ───────────────────────────────────────────────────

// VideoJobsTotal counts processed video jobs.
// Label:
//   - status: "completed", "error", "forbidden", or "dropped"
var VideoJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "video_jobs_total",
		Help:      "Total number of transformation video jobs processed.",
	},
	[]string{"status"},
)

// VideoQueueDepth tracks events waiting in each video worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var VideoQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "video_queue_depth",
		Help:      "Current number of jobs pending in each video worker channel.",
	},
	[]string{"worker_id"},
)
