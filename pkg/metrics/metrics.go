// Package metrics holds the Prometheus instruments for the sync core.
//
// All instruments are registered on the default registry at package init and
// are safe for concurrent use.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alumni"

var (
	// ActionsTotal counts reducer actions by kind.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "actions_total",
		Help:      "Actions dispatched into session stores.",
	}, []string{"kind"})

	// FetchesTotal counts collection fetches by outcome (ok, error, stale).
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refetch",
		Name:      "fetches_total",
		Help:      "Collection fetches by outcome.",
	}, []string{"collection", "outcome"})

	// FetchDurationSeconds measures fetch latency per collection.
	FetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "refetch",
		Name:      "fetch_duration_seconds",
		Help:      "Collection fetch latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collection"})

	// MutationsTotal counts optimistic mutations by kind and outcome
	// (ok, rolled_back, in_flight, unauthenticated).
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "optimistic",
		Name:      "mutations_total",
		Help:      "Optimistic mutations by outcome.",
	}, []string{"kind", "outcome"})

	// RealtimeEventsTotal counts change events by table and result
	// (delivered, dropped).
	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Change events received from the feeds.",
	}, []string{"table", "result"})

	// RealtimeStateTransitions counts channel state changes by target state.
	RealtimeStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "state_transitions_total",
		Help:      "Realtime channel state transitions.",
	}, []string{"state"})

	// StreamMessagesTotal counts websocket frames by type and result
	// (sent, dropped).
	StreamMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "messages_total",
		Help:      "Frames pushed to session stream clients.",
	}, []string{"type", "result"})

	// ActiveSessions tracks live session stores.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently holding a store.",
	})
)
