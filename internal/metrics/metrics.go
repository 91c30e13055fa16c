// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a grouping run.
//
// The package is intentionally minimal:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems live in subpackages (prompush, datadog) so the
//     grouping code depends only on this package.
package metrics

import "time"

// Metric names shared by all backends.
const (
	PhaseTotal    = "linegroup_phase_total"
	PhaseDuration = "linegroup_phase_duration_seconds"
	LinesTotal    = "linegroup_lines_total"
	GroupsTotal   = "linegroup_groups_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordPhase counts one execution of a grouping phase (count, collect, link,
// materialize, write, export) and observes its duration.
func RecordPhase(job, phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"phase":  phase,
		"status": status,
	}

	backend.IncCounter(PhaseTotal, 1, lbls)
	backend.ObserveHistogram(PhaseDuration, d.Seconds(), lbls)
}

// RecordLines increments a line-level counter for the given job and kind.
//
// Kinds used by the grouping run:
//   - "read"
//   - "malformed"
//   - "relevant"
//   - "grouped"
func RecordLines(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(LinesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordGroups increments the emitted group counter for the given job.
func RecordGroups(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(GroupsTotal, float64(delta), Labels{
		"job": job,
	})
}
