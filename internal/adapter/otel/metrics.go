package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "moecore"

// Metrics holds all moecore metric instruments.
type Metrics struct {
	Routes          metric.Int64Counter
	Selections      metric.Int64Counter
	RunsCompleted   metric.Int64Counter
	RunsFailed      metric.Int64Counter
	ExpertErrors    metric.Int64Counter
	DatasetFailures metric.Int64Counter
	RunDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Routes, err = meter.Int64Counter("moecore.routes",
		metric.WithDescription("Number of routed queries"))
	if err != nil {
		return nil, err
	}

	m.Selections, err = meter.Int64Counter("moecore.route.selections",
		metric.WithDescription("Number of experts selected across all queries"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("moecore.runs.completed",
		metric.WithDescription("Number of orchestrator runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("moecore.runs.failed",
		metric.WithDescription("Number of orchestrator runs aborted"))
	if err != nil {
		return nil, err
	}

	m.ExpertErrors, err = meter.Int64Counter("moecore.expert.errors",
		metric.WithDescription("Number of expert calls that returned an error string"))
	if err != nil {
		return nil, err
	}

	m.DatasetFailures, err = meter.Int64Counter("moecore.dataset.failures",
		metric.WithDescription("Number of examples that could not be persisted"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("moecore.run.duration_seconds",
		metric.WithDescription("Orchestrator run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
