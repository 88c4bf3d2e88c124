// Package storage provides implementations of the session persistence
// boundary. The in-memory store is the default; the session.Store interface
// allows swapping in persistent backends (Redis, PostgreSQL, etc.) without
// touching the aggregation logic.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentline/agentline/internal/session"
)

// MemoryStore is a thread-safe in-memory implementation of session.Store.
// Sessions are keyed by session key; the event log is append-only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.SessionState
	events   []*session.ToolEventPayload
	locks    sync.Map // sessionKey → *sync.Mutex for per-session updates
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session.SessionState),
	}
}

// LoadSession retrieves the session stored under sessionKey. It returns nil
// without error when the session does not exist.
func (s *MemoryStore) LoadSession(_ context.Context, sessionKey string) (*session.SessionState, error) {
	if sessionKey == "" {
		return nil, &StoreError{Op: "load", Err: "session key cannot be empty"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sessions[sessionKey]
	if !exists {
		return nil, nil
	}
	// Return a copy to prevent external modifications
	return copySessionState(state), nil
}

// SaveSession persists the session under sessionKey, replacing any previous
// value.
func (s *MemoryStore) SaveSession(_ context.Context, sessionKey string, state *session.SessionState) error {
	if sessionKey == "" {
		return &StoreError{Op: "save", Err: "session key cannot be empty"}
	}
	if state == nil {
		return &StoreError{Op: "save", Err: "state cannot be nil"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external modifications
	s.sessions[sessionKey] = copySessionState(state)
	return nil
}

// Sessions returns a snapshot of every stored session keyed by session key.
func (s *MemoryStore) Sessions(_ context.Context) (map[string]*session.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*session.SessionState, len(s.sessions))
	for key, state := range s.sessions {
		out[key] = copySessionState(state)
	}
	return out, nil
}

// DeleteSession removes the session stored under sessionKey. Deleting a
// missing session is not an error.
func (s *MemoryStore) DeleteSession(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionKey)
	return nil
}

// AppendEvent appends one invocation payload to the event log.
func (s *MemoryStore) AppendEvent(_ context.Context, entry *session.ToolEventPayload) error {
	if entry == nil {
		return &StoreError{Op: "append", Err: "entry cannot be nil"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, copyEvent(entry))
	return nil
}

// LoadEventLog returns the stored event log in append order. When the filter
// names a context scope, only entries from that context (or entries that
// never revealed one) are returned.
func (s *MemoryStore) LoadEventLog(_ context.Context, filter session.Filter) ([]*session.ToolEventPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*session.ToolEventPayload, 0, len(s.events))
	for _, entry := range s.events {
		if filter.ContextScope != "" && entry.ContextID != "" && entry.ContextID != filter.ContextScope {
			continue
		}
		out = append(out, copyEvent(entry))
	}
	return out, nil
}

// WithSessionLock executes fn with exclusive access to one session's state,
// then persists the result. fn receives a fresh empty state when the session
// does not exist yet.
func (s *MemoryStore) WithSessionLock(ctx context.Context, sessionKey string, fn func(*session.SessionState) error) error {
	if sessionKey == "" {
		return &StoreError{Op: "withlock", Err: "session key cannot be empty"}
	}

	lockInterface, _ := s.locks.LoadOrStore(sessionKey, &sync.Mutex{})
	sessionLock := lockInterface.(*sync.Mutex)

	sessionLock.Lock()
	defer sessionLock.Unlock()

	state, err := s.LoadSession(ctx, sessionKey)
	if err != nil {
		return err
	}
	if state == nil {
		state = &session.SessionState{Tasks: make(map[string]session.TaskSnapshot)}
	}

	if err := fn(state); err != nil {
		return err
	}

	return s.SaveSession(ctx, sessionKey, state)
}

// StoreError represents an error from a store operation.
type StoreError struct {
	Op  string // Operation that failed (e.g., "load", "save")
	Err string // Error message
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s", e.Op, e.Err)
}

// copySessionState creates a deep copy of a SessionState so stored and
// returned values cannot alias caller memory.
func copySessionState(state *session.SessionState) *session.SessionState {
	if state == nil {
		return nil
	}

	out := &session.SessionState{
		AgentKey:         state.AgentKey,
		ContextID:        state.ContextID,
		PrimaryTaskID:    state.PrimaryTaskID,
		Tasks:            make(map[string]session.TaskSnapshot, len(state.Tasks)),
		Messages:         make([]session.AgentMessage, len(state.Messages)),
		LastResponseText: state.LastResponseText,
		LastUpdated:      state.LastUpdated,
	}

	copy(out.Messages, state.Messages)

	for id, task := range state.Tasks {
		t := task
		t.Artifacts = append([]session.ArtifactRef(nil), task.Artifacts...)
		out.Tasks[id] = t
	}

	return out
}

func copyEvent(entry *session.ToolEventPayload) *session.ToolEventPayload {
	if entry == nil {
		return nil
	}

	out := *entry
	out.Tasks = make([]session.TaskSnapshot, len(entry.Tasks))
	for i, task := range entry.Tasks {
		out.Tasks[i] = task
		out.Tasks[i].Artifacts = append([]session.ArtifactRef(nil), task.Artifacts...)
	}
	out.StatusUpdates = append([]session.StatusUpdateSummary(nil), entry.StatusUpdates...)
	out.Artifacts = append([]session.ArtifactUpdateSummary(nil), entry.Artifacts...)
	out.Messages = append([]session.AgentMessage(nil), entry.Messages...)
	return &out
}
