package session

import "context"

// Filter narrows an event-log load to a context scope. The zero value loads
// everything.
type Filter struct {
	ContextScope string
}

// Store is the persistence boundary for sessions and the event log. It is
// assumed to be a key-value/document store reachable via simple get/put
// operations; implementations decide durability.
type Store interface {
	// LoadSession retrieves the session snapshot stored under the given key,
	// or nil when none exists.
	LoadSession(ctx context.Context, sessionKey string) (*SessionState, error)

	// SaveSession persists the session snapshot under the given key.
	SaveSession(ctx context.Context, sessionKey string, state *SessionState) error

	// Sessions returns all persisted session snapshots keyed by session key.
	Sessions(ctx context.Context) (map[string]*SessionState, error)

	// AppendEvent appends one entry to the durable event log.
	AppendEvent(ctx context.Context, entry *ToolEventPayload) error

	// LoadEventLog replays the durable event log, optionally narrowed by the
	// filter, in append order.
	LoadEventLog(ctx context.Context, filter Filter) ([]*ToolEventPayload, error)
}
