// Package metrics exposes the server's operational surface via
// github.com/prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the server exposes at /metrics.
type Registry struct {
	TickDuration       prometheus.Histogram
	ActiveSessions     prometheus.Gauge
	SnapshotsSent      prometheus.Counter
	EventsAppended     prometheus.Counter
	DroppedDatagrams   *prometheus.CounterVec
	InactivityEviction prometheus.Counter
}

// New constructs and registers every collector against a fresh registry.
func New() *Registry {
	return &Registry{
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hqm",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "hqm",
			Name:      "active_sessions",
			Help:      "Number of occupied roster slots.",
		}),
		SnapshotsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hqm",
			Name:      "snapshots_sent_total",
			Help:      "Total GAME_UPDATE datagrams sent across all sessions.",
		}),
		EventsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hqm",
			Name:      "events_appended_total",
			Help:      "Total events appended to the match event log.",
		}),
		DroppedDatagrams: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hqm",
			Name:      "dropped_datagrams_total",
			Help:      "Datagrams silently dropped, labeled by the §7 reason taxonomy.",
		}, []string{"reason"}),
		InactivityEviction: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hqm",
			Name:      "inactivity_evictions_total",
			Help:      "Sessions evicted for exceeding the inactivity threshold.",
		}),
	}
}

// Handler returns the standard Prometheus scrape handler for /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// Drop-reason labels matching the §7 error-handling taxonomy.
const (
	ReasonMalformedDatagram  = "malformed_datagram"
	ReasonBadVersion         = "bad_version"
	ReasonUnknownSession     = "unknown_session"
	ReasonGameIDMismatch     = "game_id_mismatch"
	ReasonRateLimited        = "rate_limited"
	ReasonRosterFull         = "roster_full"
	ReasonUnreferencedDelta  = "unreferenced_delta"
	ReasonSendPoolOverloaded = "send_pool_overloaded"
)

// DropDatagram increments the dropped-datagram counter for reason.
func (r *Registry) DropDatagram(reason string) {
	r.DroppedDatagrams.WithLabelValues(reason).Inc()
}
