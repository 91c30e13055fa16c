// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A grouping run is a short-lived batch job, so instead of exposing a scrape
// endpoint the collected metrics are pushed to a Pushgateway when the run
// calls metrics.Flush. The job label is used as the Pushgateway grouping key.
package prompush

import (
	"fmt"

	"linegroup/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	phaseCounter  *prometheus.CounterVec // linegroup_phase_total
	phaseDuration *prometheus.SummaryVec // linegroup_phase_duration_seconds
	lineCounter   *prometheus.CounterVec // linegroup_lines_total
	groupCounter  prometheus.Counter     // linegroup_groups_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "linegroup"
	}

	reg := prometheus.NewRegistry()

	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.PhaseTotal,
			Help: "Grouping phase executions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.PhaseDuration,
			Help:       "Duration of grouping phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)
	lineCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.LinesTotal,
			Help: "Input lines per kind (read, malformed, relevant, grouped).",
		},
		[]string{"kind"},
	)
	groupCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.GroupsTotal,
			Help: "Groups with more than one element emitted by the run.",
		},
	)

	for _, c := range []prometheus.Collector{phaseCounter, phaseDuration, lineCounter, groupCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		phaseCounter:  phaseCounter,
		phaseDuration: phaseDuration,
		lineCounter:   lineCounter,
		groupCounter:  groupCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.PhaseTotal:
		if b.phaseCounter == nil {
			return
		}
		b.phaseCounter.WithLabelValues(labels["phase"], labels["status"]).Add(delta)

	case metrics.LinesTotal:
		if b.lineCounter == nil {
			return
		}
		b.lineCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.GroupsTotal:
		if b.groupCounter == nil {
			return
		}
		b.groupCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.PhaseDuration || b.phaseDuration == nil {
		return
	}
	b.phaseDuration.WithLabelValues(labels["phase"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
