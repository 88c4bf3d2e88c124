package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentline/agentline/internal/a2a"
	"github.com/agentline/agentline/internal/session"
)

func TestMemoryStore_LoadSave(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Load on a non-existent session returns nil without error
	state, err := store.LoadSession(ctx, "non-existent")
	if err != nil {
		t.Fatalf("LoadSession should not error on non-existent session: %v", err)
	}
	if state != nil {
		t.Fatal("LoadSession should return nil for a missing session")
	}

	testState := &session.SessionState{
		AgentKey:      "researcher",
		ContextID:     "ctx-1",
		PrimaryTaskID: "task-1",
		Tasks: map[string]session.TaskSnapshot{
			"task-1": {TaskID: "task-1", ContextID: "ctx-1", State: a2a.TaskStateWorking},
		},
		Messages: []session.AgentMessage{
			{MessageID: "msg-1", Role: a2a.RoleUser, Text: "Hello"},
		},
		LastResponseText: "Hello back",
	}

	if err := store.SaveSession(ctx, "ctx-1", testState); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	retrieved, err := store.LoadSession(ctx, "ctx-1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("LoadSession returned nil for a stored session")
	}
	if retrieved.ContextID != "ctx-1" {
		t.Errorf("Expected ContextID 'ctx-1', got %s", retrieved.ContextID)
	}
	if len(retrieved.Messages) != 1 || retrieved.Messages[0].MessageID != "msg-1" {
		t.Errorf("Expected 1 message with ID 'msg-1', got %+v", retrieved.Messages)
	}
	if len(retrieved.Tasks) != 1 {
		t.Errorf("Expected 1 task, got %d", len(retrieved.Tasks))
	}
}

func TestMemoryStore_CopyIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := &session.SessionState{
		AgentKey: "researcher",
		Tasks: map[string]session.TaskSnapshot{
			"task-1": {TaskID: "task-1", State: a2a.TaskStateWorking},
		},
		Messages: []session.AgentMessage{{MessageID: "msg-1"}},
	}
	if err := store.SaveSession(ctx, "key", original); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Mutating the caller's value must not affect the stored session
	original.Messages[0].MessageID = "mutated"
	original.Tasks["task-2"] = session.TaskSnapshot{TaskID: "task-2"}

	retrieved, err := store.LoadSession(ctx, "key")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if retrieved.Messages[0].MessageID != "msg-1" {
		t.Error("Stored session aliased the caller's message slice")
	}
	if len(retrieved.Tasks) != 1 {
		t.Error("Stored session aliased the caller's task map")
	}

	// Mutating a loaded value must not affect the next load
	retrieved.Messages[0].MessageID = "mutated-again"
	again, _ := store.LoadSession(ctx, "key")
	if again.Messages[0].MessageID != "msg-1" {
		t.Error("Loaded session aliased the store's internal state")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &session.SessionState{AgentKey: "researcher", ContextID: "ctx-del"}
	if err := store.SaveSession(ctx, "ctx-del", state); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "ctx-del"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	retrieved, err := store.LoadSession(ctx, "ctx-del")
	if err != nil {
		t.Fatalf("LoadSession after delete failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Session should be gone after deletion")
	}
}

func TestMemoryStore_EventLog(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	entries := []*session.ToolEventPayload{
		{AgentKey: "a", ContextID: "ctx-1", ResponseText: "first", Timestamp: time.Now()},
		{AgentKey: "b", ContextID: "ctx-2", ResponseText: "second", Timestamp: time.Now()},
		{AgentKey: "c", ResponseText: "no context", Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := store.AppendEvent(ctx, entry); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	all, err := store.LoadEventLog(ctx, session.Filter{})
	if err != nil {
		t.Fatalf("LoadEventLog failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	if all[0].ResponseText != "first" || all[2].ResponseText != "no context" {
		t.Error("Event log should preserve append order")
	}

	// A context scope keeps matching entries plus context-less ones
	scoped, err := store.LoadEventLog(ctx, session.Filter{ContextScope: "ctx-1"})
	if err != nil {
		t.Fatalf("LoadEventLog with scope failed: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("Expected 2 scoped entries, got %d", len(scoped))
	}
	if scoped[0].ContextID != "ctx-1" || scoped[1].ContextID != "" {
		t.Errorf("Scope filter kept the wrong entries: %+v", scoped)
	}
}

func TestMemoryStore_Concurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionKey := "concurrent-test"

	const numGoroutines = 100
	var wg sync.WaitGroup

	// Launch multiple goroutines that all update the same session
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			err := store.WithSessionLock(ctx, sessionKey, func(state *session.SessionState) error {
				state.Messages = append(state.Messages, session.AgentMessage{
					MessageID: fmt.Sprintf("msg-%d", index),
					Role:      a2a.RoleUser,
					Text:      "Test message",
				})
				return nil
			})
			if err != nil {
				t.Errorf("WithSessionLock failed: %v", err)
			}
		}(i)
	}

	wg.Wait()

	// Verify we have exactly numGoroutines messages (no lost updates)
	state, err := store.LoadSession(ctx, sessionKey)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if state == nil {
		t.Fatal("Session should exist after concurrent updates")
	}
	if len(state.Messages) != numGoroutines {
		t.Errorf("Expected %d messages, got %d (lost updates detected)", numGoroutines, len(state.Messages))
	}
}

func TestMemoryStore_WithSessionLock_Error(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Errors from the callback are propagated and nothing is persisted
	err := store.WithSessionLock(ctx, "error-test", func(state *session.SessionState) error {
		state.Messages = append(state.Messages, session.AgentMessage{MessageID: "should-not-persist"})
		return &StoreError{Op: "test", Err: "test error"}
	})
	if err == nil {
		t.Fatal("Expected error to be returned from WithSessionLock")
	}
	if err.Error() != "store test: test error" {
		t.Errorf("Expected error message 'store test: test error', got '%s'", err.Error())
	}

	state, _ := store.LoadSession(ctx, "error-test")
	if state != nil {
		t.Error("Failed update should not be persisted")
	}
}

func TestMemoryStore_Validation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SaveSession(ctx, "", &session.SessionState{}); err == nil {
		t.Error("SaveSession should reject an empty session key")
	}
	if err := store.SaveSession(ctx, "key", nil); err == nil {
		t.Error("SaveSession should reject a nil state")
	}
	if _, err := store.LoadSession(ctx, ""); err == nil {
		t.Error("LoadSession should reject an empty session key")
	}
	if err := store.AppendEvent(ctx, nil); err == nil {
		t.Error("AppendEvent should reject a nil entry")
	}
}
