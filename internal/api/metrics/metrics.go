// Package metrics defines and registers all custom Prometheus metrics for the
// evacuation-data session gateway. It is the single source of truth for metric
// names, labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "evacgw"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts by result.
// Labels:
//   - result: "success", "invalid_credentials", "conflict", "unreachable",
//     "forced" (force-login retry that succeeded)
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ValidationsTotal counts periodic session validation ticks.
// Label:
//   - outcome: "valid", "invalid", "transient" (upstream unreachable or
//     malformed, session kept on grace), "skipped" (a tick overlapped an
//     in-flight validation)
var ValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Total number of session validation ticks, by outcome.",
	},
	[]string{"outcome"},
)

// SessionClearsTotal counts forced session clears by reason.
// Label:
//   - reason: "expired", "inactive", "invalid", "logout"
var SessionClearsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_clears_total",
		Help:      "Total number of session clears, by reason code.",
	},
	[]string{"reason"},
)

// GraceHoldsTotal counts validation ticks that kept the session alive despite
// an unreachable upstream.
var GraceHoldsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_grace_holds_total",
		Help:      "Validation failures absorbed by the grace policy instead of forcing logout.",
	},
)

// ── Activity metrics ──────────────────────────────────────────────────────────

// ActivityEventsTotal counts tracked activity events by source.
// Label:
//   - source: "api", "heartbeat", "record"
var ActivityEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_events_total",
		Help:      "Total number of activity events recorded, by source.",
	},
	[]string{"source"},
)

// ActivityDebouncedTotal counts activity notifications swallowed by the
// debounce window.
var ActivityDebouncedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_debounced_total",
		Help:      "Activity notifications suppressed because an identical event fired within the debounce window.",
	},
)

// ── Broadcast metrics ─────────────────────────────────────────────────────────

// BroadcastPublishedTotal counts data-change hints published to siblings.
// Label:
//   - action: the data-change action name
var BroadcastPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_published_total",
		Help:      "Total number of data-change hints published, by action.",
	},
	[]string{"action"},
)

// BroadcastDedupTotal counts subscriber-side de-duplication decisions.
// Label:
//   - result: "hit" (duplicate, dropped) or "miss" (new event, delivered)
var BroadcastDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dedup_total",
		Help:      "Total number of broadcast de-duplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Upstream metrics ──────────────────────────────────────────────────────────

// UpstreamRequestDuration measures round-trip time per upstream action.
// Label:
//   - action: the upstream action field value (e.g. "validateSession")
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests to the hosted-script backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"action"},
)

// UpstreamErrorsTotal counts failed upstream calls.
// Labels:
//   - action: the upstream action field value
//   - kind: "transport" (unreachable/timeout/malformed) or "rejected"
var UpstreamErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Total number of failed upstream calls, by action and failure kind.",
	},
	[]string{"action", "kind"},
)
