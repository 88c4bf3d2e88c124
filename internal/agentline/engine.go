package agentline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentline/agentline/internal/config"
	"github.com/agentline/agentline/internal/observability"
	"github.com/agentline/agentline/internal/reconcile"
	"github.com/agentline/agentline/internal/registry"
	"github.com/agentline/agentline/internal/session"
	"github.com/agentline/agentline/internal/storage"
	"github.com/agentline/agentline/internal/timeline"
)

// Engine ties the agent registry, the invocation driver, and the store
// together with observability.
type Engine struct {
	Registry       *registry.Registry
	Store          session.Store
	Observability  *observability.Observability
	TraceManager   *observability.TraceManager
	MetricsManager *observability.MetricsManager
	HealthServer   *observability.HealthServer
	Logger         *slog.Logger
	Config         *config.AppConfig

	driver *session.Driver

	// Live view: in-flight invocation snapshots, reconciled against the
	// store on every Snapshot call.
	mu         sync.RWMutex
	liveEvents map[string]*session.ToolEventPayload
}

// NewEngine creates an engine with observability from the application
// configuration. The store defaults to in-memory when nil.
func NewEngine(cfg *config.AppConfig, store session.Store) (*Engine, error) {
	obsConfig := observability.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		PrometheusPort: cfg.PrometheusPort,
		Environment:    cfg.Environment,
	}
	obs, err := observability.NewObservability(obsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	metricsManager, err := observability.NewMetricsManager(obs.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics manager: %w", err)
	}

	traceManager := observability.NewTraceManager(cfg.ServiceName)

	healthServer := observability.NewHealthServer(cfg.HealthPort, cfg.ServiceName, cfg.ServiceVersion)
	healthServer.AddChecker("self", observability.NewBasicHealthChecker("self", func(ctx context.Context) error {
		return nil
	}))

	if store == nil {
		store = storage.NewMemoryStore()
	}

	reg := registry.NewRegistry(obs.Logger, registry.WithTraceManager(traceManager))
	healthServer.AddChecker("agents", observability.NewAgentRegistryChecker("agents", reg.Status))

	e := &Engine{
		Registry:       reg,
		Store:          store,
		Observability:  obs,
		TraceManager:   traceManager,
		MetricsManager: metricsManager,
		HealthServer:   healthServer,
		Logger:         obs.Logger,
		Config:         cfg,
	}

	e.driver = session.NewDriver(store, obs.Logger,
		session.WithTimeout(cfg.InvokeTimeout),
		session.WithProgress(e.onProgress),
		session.WithTrace(e.onTrace),
	)

	return e, nil
}

// Initialize connects the registry to the configured agents.
func (e *Engine) Initialize(ctx context.Context, agents []registry.AgentConfig) error {
	if err := e.Registry.Initialize(ctx, agents); err != nil {
		return err
	}
	for _, ok := range e.Registry.Status() {
		if ok {
			e.MetricsManager.AddAgentsConnected(ctx, 1)
		}
	}
	return nil
}

// Invoke sends user text to the named agent and returns the finished
// invocation payload.
func (e *Engine) Invoke(ctx context.Context, agentKey, text string) (*session.ToolEventPayload, error) {
	client, err := e.Registry.Client(agentKey)
	if err != nil {
		return nil, err
	}
	descriptor, err := e.Registry.Descriptor(agentKey)
	if err != nil {
		return nil, err
	}

	toolID := descriptor.ToolInvocationID()
	streaming := descriptor.SupportsStreaming()

	ctx, span := e.TraceManager.StartInvocationSpan(ctx, agentKey, toolID, streaming)
	defer span.End()
	e.TraceManager.AddComponentAttribute(span, "engine")

	timer := e.MetricsManager.StartTimer()
	defer timer(ctx, agentKey)

	payload, err := e.driver.Invoke(ctx, client, session.Request{
		AgentKey:  agentKey,
		AgentID:   toolID,
		AgentName: descriptor.DisplayName(),
		Text:      text,
		Streaming: streaming,
	})

	e.mu.Lock()
	delete(e.liveEvents, toolID)
	e.mu.Unlock()

	if err != nil {
		e.TraceManager.RecordError(span, err)
		e.MetricsManager.IncrementInvocations(ctx, agentKey, false)
		e.MetricsManager.IncrementInvocationErrors(ctx, agentKey, "invoke_failed")
		return nil, err
	}

	e.TraceManager.SetSpanSuccess(span)
	e.TraceManager.AddSessionAttributes(span, sessionKeyOf(payload), payload.ContextID, payload.PrimaryTaskID)
	e.TraceManager.AddInvocationResult(span, len(payload.Tasks), len(payload.Messages), len(payload.ResponseText))
	e.MetricsManager.IncrementInvocations(ctx, agentKey, true)
	e.MetricsManager.IncrementSessionsSaved(ctx, agentKey)
	e.MetricsManager.IncrementEventLogAppends(ctx)
	return payload, nil
}

// Snapshot is the reconciled view over the persisted and live state.
type Snapshot struct {
	Agents   []registry.AgentDescriptor  `json:"agents"`
	Sessions []*session.SessionState     `json:"sessions"`
	EventLog []*session.ToolEventPayload `json:"eventLog"`
}

// Snapshot builds the reconciled view: persisted sessions and event log from
// the store, merged with the in-flight invocation snapshots.
func (e *Engine) Snapshot(ctx context.Context, scope session.Filter) (*Snapshot, error) {
	persisted, err := e.Store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	persistedLog, err := e.Store.LoadEventLog(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load event log: %w", err)
	}

	e.mu.RLock()
	live := make(map[string]*session.SessionState, len(e.liveEvents))
	liveLog := make([]*session.ToolEventPayload, 0, len(e.liveEvents))
	for _, payload := range e.liveEvents {
		live[sessionKeyOf(payload)] = liveSessionState(payload)
		liveLog = append(liveLog, payload)
	}
	e.mu.RUnlock()

	ctx, span := e.TraceManager.StartReconcileSpan(ctx, len(persistedLog), len(liveLog))
	defer span.End()
	start := time.Now()

	merged := reconcile.MergeSessions(persisted, live)
	mergedLog := reconcile.MergeEventLog(persistedLog, liveLog)

	e.MetricsManager.RecordReconcileDuration(ctx, time.Since(start))
	e.TraceManager.SetSpanSuccess(span)

	sessions := make([]*session.SessionState, 0, len(merged))
	for _, state := range merged {
		sessions = append(sessions, state)
	}

	return &Snapshot{
		Agents:   e.Registry.Descriptors(),
		Sessions: sessions,
		EventLog: mergedLog,
	}, nil
}

// Timeline places the reconciled event log onto the given conversation
// turns.
func (e *Engine) Timeline(ctx context.Context, turns []timeline.Turn, scope session.Filter) ([]timeline.Entry, error) {
	snapshot, err := e.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}
	return timeline.Assign(snapshot.EventLog, turns), nil
}

// Shutdown flushes observability and stops the health server.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Logger.InfoContext(ctx, "Shutting down engine")

	if err := e.HealthServer.Shutdown(ctx); err != nil {
		e.Logger.ErrorContext(ctx, "Error shutting down health server", slog.Any("error", err))
	}

	if err := e.Observability.Shutdown(ctx); err != nil {
		e.Logger.ErrorContext(ctx, "Observability shutdown failed - likely OTLP trace export issue",
			slog.Any("error", err),
			slog.String("otlp_endpoint", e.Config.OTLPEndpoint),
		)
		return err
	}
	return nil
}

func (e *Engine) onProgress(payload *session.ToolEventPayload) {
	e.mu.Lock()
	if e.liveEvents == nil {
		e.liveEvents = make(map[string]*session.ToolEventPayload)
	}
	e.liveEvents[payload.ToolInvocationID] = payload
	e.mu.Unlock()

	e.MetricsManager.IncrementSnapshots(context.Background(), payload.AgentKey)
}

func (e *Engine) onTrace(t session.Trace) {
	if t.Phase == session.PhaseEvent {
		e.MetricsManager.IncrementStreamEvents(context.Background(), t.AgentKey, t.Detail)
	}
	e.Logger.Debug("Invocation trace",
		"phase", t.Phase,
		"agent_key", t.AgentKey,
		"session_key", t.SessionKey,
		"detail", t.Detail,
	)
}

// sessionKeyOf derives the session key an invocation payload belongs to.
func sessionKeyOf(payload *session.ToolEventPayload) string {
	if payload.ContextID != "" {
		return payload.ContextID
	}
	return payload.ToolInvocationID
}

// liveSessionState projects an in-flight payload to a session state so the
// reconciled view can show sessions that have not been persisted yet.
func liveSessionState(payload *session.ToolEventPayload) *session.SessionState {
	tasks := make(map[string]session.TaskSnapshot, len(payload.Tasks))
	for _, task := range payload.Tasks {
		tasks[task.TaskID] = task
	}
	return &session.SessionState{
		AgentKey:         payload.AgentKey,
		ContextID:        payload.ContextID,
		PrimaryTaskID:    payload.PrimaryTaskID,
		Tasks:            tasks,
		Messages:         payload.Messages,
		LastResponseText: payload.ResponseText,
		LastUpdated:      payload.Timestamp,
	}
}
