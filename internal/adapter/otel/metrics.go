package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "trademesh"

// Metrics holds all TradeMesh metric instruments.
type Metrics struct {
	WorkflowsStarted   metric.Int64Counter
	WorkflowsCompleted metric.Int64Counter
	WorkflowsFailed    metric.Int64Counter
	StepsExecuted      metric.Int64Counter
	StepDuration       metric.Float64Histogram
	WorkflowDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.WorkflowsStarted, err = meter.Int64Counter("trademesh.workflows.started",
		metric.WithDescription("Number of workflows started"))
	if err != nil {
		return nil, err
	}

	m.WorkflowsCompleted, err = meter.Int64Counter("trademesh.workflows.completed",
		metric.WithDescription("Number of workflows completed"))
	if err != nil {
		return nil, err
	}

	m.WorkflowsFailed, err = meter.Int64Counter("trademesh.workflows.failed",
		metric.WithDescription("Number of workflows failed"))
	if err != nil {
		return nil, err
	}

	m.StepsExecuted, err = meter.Int64Counter("trademesh.steps.executed",
		metric.WithDescription("Number of workflow steps executed"))
	if err != nil {
		return nil, err
	}

	m.StepDuration, err = meter.Float64Histogram("trademesh.step.duration_seconds",
		metric.WithDescription("Step duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.WorkflowDuration, err = meter.Float64Histogram("trademesh.workflow.duration_seconds",
		metric.WithDescription("Workflow duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
