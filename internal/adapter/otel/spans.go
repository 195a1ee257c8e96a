package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "moecore"

// StartRouteSpan starts a span for one routed query.
func StartRouteSpan(ctx context.Context, op string, maxExperts int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "route",
		trace.WithAttributes(
			attribute.String("route.op", op),
			attribute.Int("route.max_experts", maxExperts),
		),
	)
}

// StartRunSpan starts a span for an orchestrator run.
func StartRunSpan(ctx context.Context, runID string, tokens, expertsPerToken int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.tokens", tokens),
			attribute.Int("run.experts_per_token", expertsPerToken),
		),
	)
}
