// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStartedTotal tracks started upload sessions by staged kind
	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "sessions_started_total",
		Help:      "Total number of upload sessions started",
	}, []string{"kind"}) // kind: "file", "url"

	// SessionsCompletedTotal tracks sessions that reached Ready
	SessionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "sessions_completed_total",
		Help:      "Total number of upload sessions that reached readiness",
	})

	// SessionsFailedTotal tracks terminally errored sessions by reason
	SessionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "sessions_failed_total",
		Help:      "Total number of upload sessions that errored",
	}, []string{"reason"}) // reason: "credentials", "initiation", "transfer", "timeout", "materialize", "other"

	// SessionsCancelledTotal tracks explicitly cancelled sessions
	SessionsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "sessions_cancelled_total",
		Help:      "Total number of upload sessions cancelled by the user",
	})

	// PollAttempts tracks readiness poll attempts per session
	PollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "poll_attempts",
		Help:      "Readiness poll attempts consumed before resolution",
		Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20, 30},
	})

	// TransferDuration tracks end-to-end byte transfer time
	TransferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "transfer_duration_seconds",
		Help:      "Time spent streaming file bytes to the upload target",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// CleanupRemoteFailuresTotal tracks swallowed remote cleanup errors
	CleanupRemoteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "muxinput",
		Subsystem: "pipeline",
		Name:      "cleanup_remote_failures_total",
		Help:      "Remote-side cleanup deletions that failed and were swallowed",
	})
)
