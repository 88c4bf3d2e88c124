// Package session turns the raw protocol event stream of one agent
// invocation into durable conversation state: the fold that aggregates
// events, the driver that runs a full invocation, and the types and store
// interface the rest of agentline persists through.
//
// # Overview
//
// One invocation is one conversation turn with a remote agent. The driver
// sends the user's message, consumes the resulting event stream through a
// FoldState, decides when the turn is over, and persists the outcome:
//   - FoldState: pure aggregation of messages, tasks, status updates and
//     artifacts, with deterministic message back-fill and deduplication
//   - Driver: transport selection (streaming or blocking), progress and
//     trace callbacks, session continuity across turns, persistence
//   - Store: the persistence boundary implemented by internal/storage
//
// # Quick Start
//
//	driver := session.NewDriver(store, logger,
//		session.WithProgress(onProgress),
//		session.WithTimeout(90*time.Second),
//	)
//	payload, err := driver.Invoke(ctx, client, session.Request{
//		AgentKey:  "researcher",
//		AgentName: "Research Agent",
//		Text:      "What changed since yesterday?",
//		Streaming: true,
//	})
//
// # Turn Termination
//
// The fold reports the turn complete when any of these arrives:
//   - an agent message while a task touched this turn has settled
//   - a task event whose state has settled
//   - a status update marked final, or whose state has settled
//
// Settled states are the terminal ones (completed, failed, canceled) plus
// input-required and unknown: all of them mean the agent will not act
// further without new input. A stream that ends cleanly also completes the
// turn with whatever was aggregated.
//
// # Continuity
//
// Sessions are stored under the agent's contextId once the agent reveals
// one, and always under the derived tool invocation id so the next turn for
// the same agent finds its prior state. The next outbound message carries
// the prior contextId and references the prior primary task, which is how
// the remote agent links turns together.
package session
