// Package observability provides the observability infrastructure for
// agentline: distributed tracing, metrics collection, structured logging,
// and health checks.
//
// # Overview
//
// The package implements OpenTelemetry-based observability with:
//   - Distributed tracing (OTLP exporter)
//   - Metrics collection (Prometheus)
//   - Structured logging (log/slog)
//   - Health check endpoints
//   - Specialized instrumentation for agent invocations
//
// # Quick Start
//
// Initialize observability for the service:
//
//	config := observability.DefaultConfig("agentline")
//	obs, err := observability.NewObservability(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(context.Background())
//
//	logger := obs.Logger
//	tracer := obs.Tracer
//	meter := obs.Meter
//
// This sets up the OTLP trace exporter, the Prometheus metrics exporter, a
// structured logger that injects trace context, and resource attributes
// (service name, version, environment).
//
// # Distributed Tracing
//
// TraceManager creates and manages spans, with helpers specific to agent
// invocations:
//
//	traceManager := observability.NewTraceManager("agentline")
//
//	ctx, span := traceManager.StartInvocationSpan(ctx, "researcher", "a2a_researcher", true)
//	defer span.End()
//
//	if err != nil {
//	    traceManager.RecordError(span, err)
//	} else {
//	    traceManager.SetSpanSuccess(span)
//	}
//
// StartCardResolutionSpan and StartReconcileSpan cover the registry and
// reconciliation paths; AddSessionAttributes and AddInvocationResult attach
// session identity and outcome to any span.
//
// # Metrics Collection
//
// MetricsManager records invocation, registry, store, and runtime metrics:
//
//	metricsManager, err := observability.NewMetricsManager(obs.Meter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	timer := metricsManager.StartTimer()
//	// ... invoke the agent ...
//	timer(ctx, "researcher")
//	metricsManager.IncrementInvocations(ctx, "researcher", true)
//
// Available metrics include:
//   - agent_invocations_total: Counter with labels (agent_key, success)
//   - agent_invocation_duration_seconds: Histogram with label (agent_key)
//   - agent_invocation_errors_total: Counter with labels (agent_key, error)
//   - stream_events_total: Counter with labels (agent_key, event_kind)
//   - progress_snapshots_total: Counter with label (agent_key)
//   - agents_connected: Gauge of agents with a resolved card
//   - sessions_saved_total, event_log_appends_total, reconcile_duration_seconds
//   - go_goroutines, go_memstats_alloc_bytes, process_resident_memory_bytes
//
// All metrics are exposed on the Prometheus endpoint (default: :9090/metrics).
//
// # Structured Logging
//
// The logger is slog-based and context-aware; when a span is active, the
// trace and span ids are attached to every record:
//
//	logger.InfoContext(ctx, "Agent invocation complete",
//	    "agent_key", agentKey,
//	    "session_key", sessionKey,
//	)
//
// Records are buffered and written off the hot path; a full buffer drops
// entries and counts them in logs_dropped_total rather than blocking.
//
// # Health Checks
//
// HealthServer exposes /health, /ready, and /metrics:
//
//	healthServer := observability.NewHealthServer("8080", "agentline", "1.0.0")
//	healthServer.AddChecker("agents", observability.NewAgentRegistryChecker("agents", registry.Status))
//	go healthServer.Start(ctx)
//
// AgentRegistryChecker reports unhealthy while any configured agent is
// missing a resolved card.
//
// # Graceful Shutdown
//
// Always shut down observability to flush traces and metrics:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := obs.Shutdown(ctx); err != nil {
//	    log.Printf("Observability shutdown error: %v", err)
//	}
//
// Without shutdown, recent traces may be lost.
package observability
