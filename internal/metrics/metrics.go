// Package metrics exposes Prometheus collectors for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts processed turns by intent and outcome
	// (ok, rejected, fetch_error, completion_error, persist_error).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billchat_turns_total",
		Help: "Conversation turns processed, by intent and outcome.",
	}, []string{"intent", "outcome"})

	// CompletionSeconds tracks external completion call latency.
	CompletionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billchat_completion_seconds",
		Help:    "Latency of external completion calls.",
		Buckets: prometheus.DefBuckets,
	})
)
