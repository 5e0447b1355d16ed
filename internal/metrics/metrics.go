// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts index requests, resolution attempts, and entry
// outcomes for a single run. Counters live in a private registry and are
// written once, at the end of the run, in the Prometheus text format so a
// node_exporter textfile collector can pick them up.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the run's counters. A nil *Recorder is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Recorder struct {
	registry *prometheus.Registry

	entries  *prometheus.CounterVec
	requests *prometheus.CounterVec
	attempts prometheus.Counter
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebib_entries_total",
			Help: "Bibliography entries processed, by final outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebib_index_requests_total",
			Help: "Requests sent to the publication index, by operation and status.",
		}, []string{"op", "status"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebib_resolve_attempts_total",
			Help: "Resolution attempts, including retries.",
		}),
	}
	r.registry.MustRegister(r.entries, r.requests, r.attempts)
	return r
}

// Entry counts one entry with its final outcome label.
func (r *Recorder) Entry(outcome string) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(outcome).Inc()
}

// Request counts one index request. op is "search" or "fetch"; status is
// "ok" or "error".
func (r *Recorder) Request(op, status string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(op, status).Inc()
}

// Attempt counts one resolution attempt.
func (r *Recorder) Attempt() {
	if r == nil {
		return
	}
	r.attempts.Inc()
}

// Registry exposes the underlying registry for tests and exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all counters to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
