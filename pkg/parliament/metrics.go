package parliament

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parliament_published_total",
		Help: "Envelopes published, by channel (senate or mass) and purpose.",
	}, []string{"channel", "purpose"})

	publishConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parliament_publish_conflicts_total",
		Help: "Optimistic publish transactions aborted by a concurrent writer.",
	}, []string{"op"})

	publishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parliament_publish_retries_total",
		Help: "Publish attempts retried after a transport error.",
	}, []string{"op"})

	received = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parliament_received_total",
		Help: "Envelopes dispatched by the watcher, by purpose.",
	}, []string{"purpose"})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parliament_handler_errors_total",
		Help: "Envelopes whose handler failed, by purpose.",
	}, []string{"purpose"})

	lost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parliament_senate_lost_total",
		Help: "Multicast entries that expired before this consumer read them.",
	})

	staleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parliament_stale_discards_total",
		Help: "Relayed path updates discarded because a newer order token was already applied.",
	})

	transportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parliament_transport_errors_total",
		Help: "Watcher receive failures that triggered a backoff.",
	})

	archives = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parliament_archives",
		Help: "Archives currently held in this process.",
	})
)
