package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "trademesh"

// StartWorkflowSpan starts a span for a workflow execution.
func StartWorkflowSpan(ctx context.Context, workflowID, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workflow",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("workflow.name", name),
		),
	)
}

// StartStepSpan starts a span for one workflow step.
func StartStepSpan(ctx context.Context, workflowID, stepID, capability string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("step.id", stepID),
			attribute.String("step.capability", capability),
		),
	)
}
