// Package agentline wires the whole service together: the engine that
// coordinates registry, driver, storage and reconciliation, the HTTP API in
// front of it, and the process lifecycle.
//
// # Overview
//
// The engine is the single entry point the API talks to:
//   - Initialize: resolve all configured agent cards concurrently
//   - Invoke: run one conversation turn against one agent
//   - Snapshot: the merged view of persisted and in-flight sessions
//   - Timeline: correlate the event log with conversation turns
//
// While an invocation is in flight its interim progress is held in memory;
// Snapshot reconciles those live projections with the persisted store so
// callers always see one coherent view, never a stale or duplicated one.
//
// # Quick Start
//
// The usual way to run the service:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := agentline.Run(ctx); err != nil {
//		panic(err)
//	}
//
// Run loads configuration, connects the agents from the roster file, starts
// the health endpoints and the HTTP API, and shuts everything down in order
// when the context is canceled.
//
// # HTTP API
//
//   - POST /invoke    {"agent": "researcher", "text": "..."}
//   - GET  /status    connection state of every configured agent
//   - GET  /snapshot  merged sessions and event log, ?context= to scope
//   - POST /timeline  events correlated with the supplied turns
//
// # Observability
//
// Every invocation runs under a trace span with agent, session and result
// attributes; metrics cover invocation counts and latency, stream events,
// progress snapshots, persistence activity and reconciliation timing.
// Health endpoints report not-ready while any configured agent is
// disconnected.
package agentline
