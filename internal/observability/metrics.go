package observability

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type MetricsManager struct {
	meter metric.Meter

	// Invocation metrics
	invocationsTotal   metric.Int64Counter
	invocationDuration metric.Float64Histogram
	invocationErrors   metric.Int64Counter
	streamEventsTotal  metric.Int64Counter
	snapshotsTotal     metric.Int64Counter

	// Registry metrics
	agentsConnected metric.Int64UpDownCounter

	// Store metrics
	sessionsSaved     metric.Int64Counter
	eventLogAppends   metric.Int64Counter
	reconcileDuration metric.Float64Histogram

	// System metrics
	processResidentMemoryBytes metric.Int64UpDownCounter
	goGoroutines               metric.Int64UpDownCounter
	goMemstatsAllocBytes       metric.Int64UpDownCounter
}

func NewMetricsManager(meter metric.Meter) (*MetricsManager, error) {
	mm := &MetricsManager{meter: meter}

	var err error

	// Invocation metrics
	mm.invocationsTotal, err = meter.Int64Counter(
		"agent_invocations_total",
		metric.WithDescription("Total number of agent invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.invocationDuration, err = meter.Float64Histogram(
		"agent_invocation_duration_seconds",
		metric.WithDescription("Agent invocation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mm.invocationErrors, err = meter.Int64Counter(
		"agent_invocation_errors_total",
		metric.WithDescription("Total number of failed agent invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.streamEventsTotal, err = meter.Int64Counter(
		"stream_events_total",
		metric.WithDescription("Total number of protocol events received over streams"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.snapshotsTotal, err = meter.Int64Counter(
		"progress_snapshots_total",
		metric.WithDescription("Total number of interim progress snapshots emitted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	// Registry metrics
	mm.agentsConnected, err = meter.Int64UpDownCounter(
		"agents_connected",
		metric.WithDescription("Number of agents with a resolved card"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	// Store metrics
	mm.sessionsSaved, err = meter.Int64Counter(
		"sessions_saved_total",
		metric.WithDescription("Total number of session snapshots persisted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.eventLogAppends, err = meter.Int64Counter(
		"event_log_appends_total",
		metric.WithDescription("Total number of event log appends"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.reconcileDuration, err = meter.Float64Histogram(
		"reconcile_duration_seconds",
		metric.WithDescription("Duration of reconciliation passes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	// System metrics
	mm.processResidentMemoryBytes, err = meter.Int64UpDownCounter(
		"process_resident_memory_bytes",
		metric.WithDescription("Resident memory size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	mm.goGoroutines, err = meter.Int64UpDownCounter(
		"go_goroutines",
		metric.WithDescription("Number of goroutines that currently exist"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	mm.goMemstatsAllocBytes, err = meter.Int64UpDownCounter(
		"go_memstats_alloc_bytes",
		metric.WithDescription("Number of bytes allocated and still in use"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

// Invocation metrics methods
func (mm *MetricsManager) IncrementInvocations(ctx context.Context, agentKey string, success bool) {
	mm.invocationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_key", agentKey),
		attribute.Bool("success", success),
	))
}

func (mm *MetricsManager) RecordInvocationDuration(ctx context.Context, agentKey string, duration time.Duration) {
	mm.invocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("agent_key", agentKey),
	))
}

func (mm *MetricsManager) IncrementInvocationErrors(ctx context.Context, agentKey, errorType string) {
	mm.invocationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_key", agentKey),
		attribute.String("error", errorType),
	))
}

func (mm *MetricsManager) IncrementStreamEvents(ctx context.Context, agentKey, eventKind string) {
	mm.streamEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_key", agentKey),
		attribute.String("event_kind", eventKind),
	))
}

func (mm *MetricsManager) IncrementSnapshots(ctx context.Context, agentKey string) {
	mm.snapshotsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_key", agentKey),
	))
}

// Registry metrics methods
func (mm *MetricsManager) AddAgentsConnected(ctx context.Context, delta int64) {
	mm.agentsConnected.Add(ctx, delta)
}

// Store metrics methods
func (mm *MetricsManager) IncrementSessionsSaved(ctx context.Context, agentKey string) {
	mm.sessionsSaved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_key", agentKey),
	))
}

func (mm *MetricsManager) IncrementEventLogAppends(ctx context.Context) {
	mm.eventLogAppends.Add(ctx, 1)
}

func (mm *MetricsManager) RecordReconcileDuration(ctx context.Context, duration time.Duration) {
	mm.reconcileDuration.Record(ctx, duration.Seconds())
}

// System metrics methods
func (mm *MetricsManager) UpdateSystemMetrics(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Add(ctx, int64(runtime.NumGoroutine()))
	mm.goMemstatsAllocBytes.Add(ctx, int64(m.Alloc))
	mm.processResidentMemoryBytes.Add(ctx, int64(m.Sys))
}

// Helper method to start timing an invocation
func (mm *MetricsManager) StartTimer() func(ctx context.Context, agentKey string) {
	start := time.Now()
	return func(ctx context.Context, agentKey string) {
		duration := time.Since(start)
		mm.RecordInvocationDuration(ctx, agentKey, duration)
	}
}
