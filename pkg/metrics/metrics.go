// Copyright 2025 Certen Protocol
//
// Metrics - Prometheus collectors for commits, sync, store operations,
// and RED novelty. Grounded on the pack's metrics.Registerer-based
// constructor pattern (github.com/luxfi/consensus's metrics/metric.go:
// one constructor per collector, each registered against a passed-in
// prometheus.Registerer and returned for direct use), simplified to a
// single Metrics struct covering VMS's own surface rather than that
// package's generic Counter/Gauge/Averager abstraction - VMS's metrics
// have known, fixed names and don't need a runtime registry of them.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector a vault node exposes.
type Metrics struct {
	CommitsTotal      prometheus.Counter
	CommitDuration    prometheus.Histogram
	CommitEventsTotal prometheus.Counter
	CommitClaimsTotal prometheus.Counter

	SyncBlocksSentTotal     prometheus.Counter
	SyncBlocksReceivedTotal prometheus.Counter
	SyncFailuresTotal       *prometheus.CounterVec
	SyncDuration            prometheus.Histogram

	StoreOpsTotal *prometheus.CounterVec
	StoreOpErrors *prometheus.CounterVec

	RedScoreObserved prometheus.Histogram
	RedNoveltyTotal  prometheus.Counter
	RedFallbackTotal prometheus.Counter
}

// New constructs and registers every collector against reg. Callers
// typically pass prometheus.NewRegistry() for test isolation or
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_commits_total",
			Help: "Total number of successful vault commits.",
		}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vms_commit_duration_seconds",
			Help:    "Time spent assembling and signing a commit.",
			Buckets: prometheus.DefBuckets,
		}),
		CommitEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_commit_events_total",
			Help: "Total number of events persisted across all commits.",
		}),
		CommitClaimsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_commit_claims_total",
			Help: "Total number of claims persisted across all commits.",
		}),

		SyncBlocksSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_sync_blocks_sent_total",
			Help: "Total number of blocks streamed to peers as sender.",
		}),
		SyncBlocksReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_sync_blocks_received_total",
			Help: "Total number of blocks verified and applied as receiver.",
		}),
		SyncFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vms_sync_failures_total",
			Help: "Total number of sync runs that failed, by phase.",
		}, []string{"phase"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vms_sync_duration_seconds",
			Help:    "Wall-clock time of a complete sync run.",
			Buckets: prometheus.DefBuckets,
		}),

		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vms_store_ops_total",
			Help: "Total number of content store operations, by op.",
		}, []string{"op"}),
		StoreOpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vms_store_op_errors_total",
			Help: "Total number of content store operation failures, by op.",
		}, []string{"op"}),

		RedScoreObserved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vms_red_score_observed",
			Help:    "Distribution of RED combined salience scores at event creation.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		RedNoveltyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_red_novelty_total",
			Help: "Total number of RED novelty (entropy) computations at event creation.",
		}),
		RedFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_red_fallback_total",
			Help: "Total number of RED operations that fell back to the default score due to invalid input.",
		}),
	}

	collectors := []prometheus.Collector{
		m.CommitsTotal, m.CommitDuration, m.CommitEventsTotal, m.CommitClaimsTotal,
		m.SyncBlocksSentTotal, m.SyncBlocksReceivedTotal, m.SyncFailuresTotal, m.SyncDuration,
		m.StoreOpsTotal, m.StoreOpErrors,
		m.RedScoreObserved, m.RedNoveltyTotal, m.RedFallbackTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
