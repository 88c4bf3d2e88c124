package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type TraceManager struct {
	tracer trace.Tracer
}

func NewTraceManager(serviceName string) *TraceManager {
	return &TraceManager{
		tracer: otel.Tracer(serviceName),
	}
}

func (tm *TraceManager) StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, operationName, trace.WithAttributes(attrs...))
}

func (tm *TraceManager) InjectTraceContext(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

func (tm *TraceManager) ExtractTraceContext(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// StartInvocationSpan starts the span covering one whole agent invocation,
// from message send to persisted session.
func (tm *TraceManager) StartInvocationSpan(ctx context.Context, agentKey, toolInvocationID string, streaming bool) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "agent_invoke", trace.WithAttributes(
		attribute.String("a2a.agent.key", agentKey),
		attribute.String("a2a.tool_invocation.id", toolInvocationID),
		attribute.Bool("a2a.streaming", streaming),
		attribute.String("messaging.protocol", "a2a"),
	))
}

// StartCardResolutionSpan starts a span for resolving one agent's card.
func (tm *TraceManager) StartCardResolutionSpan(ctx context.Context, agentKey, url string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "resolve_agent_card", trace.WithAttributes(
		attribute.String("a2a.agent.key", agentKey),
		attribute.String("a2a.agent.url", url),
	))
}

// StartReconcileSpan starts a span for one reconciliation pass over the
// persisted and live views.
func (tm *TraceManager) StartReconcileSpan(ctx context.Context, persistedCount, liveCount int) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "reconcile_views", trace.WithAttributes(
		attribute.Int("reconcile.persisted_count", persistedCount),
		attribute.Int("reconcile.live_count", liveCount),
	))
}

func (tm *TraceManager) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(1, err.Error()) // Error status
	}
}

func (tm *TraceManager) SetSpanSuccess(span trace.Span) {
	span.SetStatus(2, "") // OK status
}

// AddStreamEventAttributes records one received stream event on a span.
func (tm *TraceManager) AddStreamEventAttributes(span trace.Span, eventKind, taskID, contextID string) {
	span.SetAttributes(
		attribute.String("a2a.event.kind", eventKind),
	)
	if taskID != "" {
		span.SetAttributes(attribute.String("a2a.task.id", taskID))
	}
	if contextID != "" {
		span.SetAttributes(attribute.String("a2a.context.id", contextID))
	}
}

// AddSessionAttributes adds session identity to a span.
func (tm *TraceManager) AddSessionAttributes(span trace.Span, sessionKey, contextID, primaryTaskID string) {
	span.SetAttributes(attribute.String("session.key", sessionKey))
	if contextID != "" {
		span.SetAttributes(attribute.String("a2a.context.id", contextID))
	}
	if primaryTaskID != "" {
		span.SetAttributes(attribute.String("a2a.task.primary_id", primaryTaskID))
	}
}

// AddInvocationResult records the outcome of an invocation on its span.
func (tm *TraceManager) AddInvocationResult(span trace.Span, taskCount, messageCount, responseLength int) {
	span.SetAttributes(
		attribute.Int("a2a.invocation.task_count", taskCount),
		attribute.Int("a2a.invocation.message_count", messageCount),
		attribute.Int("a2a.invocation.response_length", responseLength),
	)
}

// AddSpanEvent adds a timestamped event to a span for tracking processing steps
func (tm *TraceManager) AddSpanEvent(span trace.Span, eventName string, attributes ...attribute.KeyValue) {
	span.AddEvent(eventName, trace.WithAttributes(attributes...))
}

// AddComponentAttribute adds a component identifier to a span
func (tm *TraceManager) AddComponentAttribute(span trace.Span, component string) {
	span.SetAttributes(attribute.String("agentline.component", component))
}
