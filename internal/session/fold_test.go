package session

import (
	"strings"
	"testing"
	"time"

	"github.com/agentline/agentline/internal/a2a"
)

func agentText(id, taskID, text string) *a2a.Message {
	return &a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: id,
		TaskID:    taskID,
		Role:      a2a.RoleAgent,
		Parts:     []a2a.Part{a2a.NewTextPart(text)},
	}
}

func taskEvent(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		Kind:      a2a.KindTask,
		ID:        id,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state},
	}
}

func statusEvent(taskID, contextID string, state a2a.TaskState, final bool) *a2a.StatusUpdate {
	return &a2a.StatusUpdate{
		Kind:      a2a.KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state},
		Final:     final,
	}
}

func TestFoldState_TaskUpsert(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(taskEvent("t1", "c1", a2a.TaskStateSubmitted))
	fold.Apply(taskEvent("t1", "", a2a.TaskStateWorking))

	snap := fold.Snapshot("a2a_researcher", "Researcher")
	if len(snap.Tasks) != 1 {
		t.Fatalf("Expected 1 task after upsert, got %d", len(snap.Tasks))
	}
	if snap.Tasks[0].State != a2a.TaskStateWorking {
		t.Errorf("Expected task state working, got %s", snap.Tasks[0].State)
	}
	if snap.Tasks[0].ContextID != "c1" {
		t.Errorf("Expected context id preserved across upsert, got %q", snap.Tasks[0].ContextID)
	}
	if snap.ContextID != "c1" {
		t.Errorf("Expected context adopted from first event, got %q", snap.ContextID)
	}
}

func TestFoldState_SnapshotMonotonicity(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(taskEvent("t1", "c1", a2a.TaskStateWorking))
	first := fold.Snapshot("a2a_researcher", "Researcher")

	fold.Apply(agentText("m1", "t1", "partial answer"))
	fold.Apply(&a2a.ArtifactUpdate{
		Kind:     a2a.KindArtifactUpdate,
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "art1", Name: "report"},
	})
	second := fold.Snapshot("a2a_researcher", "Researcher")

	if len(second.Tasks) < len(first.Tasks) {
		t.Error("Later snapshot lost tasks")
	}
	if len(second.Messages) < len(first.Messages) {
		t.Error("Later snapshot lost messages")
	}
	if second.ResponseText != "partial answer" {
		t.Errorf("Expected response text carried in snapshot, got %q", second.ResponseText)
	}
	if len(second.Tasks[0].Artifacts) != 1 || second.Tasks[0].Artifacts[0].ArtifactID != "art1" {
		t.Errorf("Expected artifact merged into task, got %+v", second.Tasks[0].Artifacts)
	}

	// Mutating the first snapshot must not affect the accumulator
	first.Tasks[0].State = a2a.TaskStateFailed
	third := fold.Snapshot("a2a_researcher", "Researcher")
	if third.Tasks[0].State == a2a.TaskStateFailed {
		t.Error("Snapshot aliased the accumulator's task state")
	}
}

func TestFoldState_TerminationOnSettledTask(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	if done := fold.Apply(taskEvent("t1", "c1", a2a.TaskStateWorking)); done {
		t.Error("Working task should not terminate the stream")
	}
	if done := fold.Apply(taskEvent("t1", "c1", a2a.TaskStateCompleted)); !done {
		t.Error("Completed task should terminate the stream")
	}
}

func TestFoldState_TerminationOnInputRequired(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	if done := fold.Apply(taskEvent("t1", "c1", a2a.TaskStateInputRequired)); !done {
		t.Error("Input-required task should end the turn")
	}
}

func TestFoldState_TerminationOnFinalStatusUpdate(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(taskEvent("t1", "c1", a2a.TaskStateWorking))
	if done := fold.Apply(statusEvent("t1", "c1", a2a.TaskStateWorking, false)); done {
		t.Error("Non-final working status should not terminate")
	}
	if done := fold.Apply(statusEvent("t1", "c1", a2a.TaskStateWorking, true)); !done {
		t.Error("Final status update should terminate even without a settled state")
	}
}

func TestFoldState_TerminationOnMessageAfterSettledTask(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	if done := fold.Apply(agentText("m1", "", "warming up")); done {
		t.Error("Agent message with no settled task should not terminate")
	}

	fold.Apply(taskEvent("t1", "c1", a2a.TaskStateCompleted))
	if done := fold.Apply(agentText("m2", "t1", "all done")); !done {
		t.Error("Agent message after settled task should terminate")
	}
}

func TestFoldState_StatusUpdatePreservesArtifacts(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(&a2a.ArtifactUpdate{
		Kind:     a2a.KindArtifactUpdate,
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "art1", Name: "draft"},
	})
	fold.Apply(statusEvent("t1", "c1", a2a.TaskStateWorking, false))

	snap := fold.Snapshot("a2a_researcher", "Researcher")
	if len(snap.Tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(snap.Tasks))
	}
	if len(snap.Tasks[0].Artifacts) != 1 {
		t.Error("Status update must not discard accumulated artifacts")
	}
	if snap.Tasks[0].State != a2a.TaskStateWorking {
		t.Errorf("Expected patched state working, got %s", snap.Tasks[0].State)
	}
}

func TestFoldState_ArtifactMergeByID(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(&a2a.ArtifactUpdate{
		Kind:     a2a.KindArtifactUpdate,
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "art1", Name: "draft"},
	})
	fold.Apply(&a2a.ArtifactUpdate{
		Kind:     a2a.KindArtifactUpdate,
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "art1", Name: "final", Description: "polished"},
	})
	fold.Apply(&a2a.ArtifactUpdate{
		Kind:     a2a.KindArtifactUpdate,
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "art2"},
	})

	snap := fold.Snapshot("a2a_researcher", "Researcher")
	artifacts := snap.Tasks[0].Artifacts
	if len(artifacts) != 2 {
		t.Fatalf("Expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Name != "final" || artifacts[0].Description != "polished" {
		t.Errorf("Expected artifact fields updated in place, got %+v", artifacts[0])
	}
}

func TestFoldState_ResponseAggregation(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(agentText("m1", "", "part one"))
	fold.Apply(&a2a.Message{Kind: a2a.KindMessage, MessageID: "m2", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.NewTextPart("ignored")}})
	fold.Apply(agentText("m3", "", "part two"))

	if got := fold.ResponseText(); got != "part one\n\npart two" {
		t.Errorf("Expected agent responses joined by blank line, got %q", got)
	}
}

func TestFoldState_MessageBackfill(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(agentText("", "", "anonymous response"))

	snap := fold.Snapshot("a2a_researcher", "Researcher")
	if len(snap.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(snap.Messages))
	}
	msg := snap.Messages[0]
	if msg.MessageID == "" {
		t.Error("Expected synthesized message id for anonymous message")
	}
	if !strings.HasPrefix(msg.MessageID, "a2a_researcher") {
		t.Errorf("Expected synthesized id derived from tool id, got %q", msg.MessageID)
	}
	if msg.Text != "anonymous response" {
		t.Errorf("Expected message text retained, got %q", msg.Text)
	}
}

func TestFoldState_MessageDedup(t *testing.T) {
	fold := NewFoldState("researcher", nil)

	fold.Apply(agentText("m1", "t1", "same text"))
	fold.Apply(agentText("m1", "t1", "same text"))

	snap := fold.Snapshot("a2a_researcher", "Researcher")
	if len(snap.Messages) != 1 {
		t.Errorf("Expected redelivered message dropped, got %d messages", len(snap.Messages))
	}
}

func TestFoldState_ContinuityFromPriorSession(t *testing.T) {
	prior := &SessionState{
		AgentKey:      "researcher",
		ContextID:     "c1",
		PrimaryTaskID: "t1",
		Tasks: map[string]TaskSnapshot{
			"t1": {TaskID: "t1", ContextID: "c1", State: a2a.TaskStateCompleted},
		},
		Messages: []AgentMessage{{MessageID: "old", Role: a2a.RoleAgent, Text: "earlier"}},
	}

	fold := NewFoldState("researcher", prior)
	if fold.ContextID() != "c1" {
		t.Errorf("Expected context carried from prior session, got %q", fold.ContextID())
	}

	// A different context on new events must not displace the adopted one
	fold.Apply(taskEvent("t2", "c-other", a2a.TaskStateWorking))
	if fold.ContextID() != "c1" {
		t.Errorf("Context must be first-writer-wins, got %q", fold.ContextID())
	}

	state := fold.FinalState(prior)
	if len(state.Tasks) != 2 {
		t.Errorf("Expected prior and new tasks retained, got %d", len(state.Tasks))
	}
	if state.PrimaryTaskID != "t2" {
		t.Errorf("Expected latest task id as primary, got %q", state.PrimaryTaskID)
	}
	if len(state.Messages) != 1 || state.Messages[0].MessageID != "old" {
		t.Errorf("Expected prior messages carried into final state, got %+v", state.Messages)
	}
}

func TestFoldState_PrimaryTaskFallbacks(t *testing.T) {
	// No task, no context: falls back to prior primary
	prior := &SessionState{AgentKey: "researcher", PrimaryTaskID: "t-old"}
	fold := NewFoldState("researcher", prior)
	fold.Apply(agentText("m1", "", "hello"))
	if got := fold.FinalState(prior).PrimaryTaskID; got != "t-old" {
		t.Errorf("Expected prior primary retained, got %q", got)
	}

	// Context but no task: context id is the primary
	fold = NewFoldState("researcher", nil)
	fold.Apply(&a2a.Message{Kind: a2a.KindMessage, MessageID: "m1", ContextID: "c9", Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.NewTextPart("hi")}})
	if got := fold.FinalState(nil).PrimaryTaskID; got != "c9" {
		t.Errorf("Expected context id as primary fallback, got %q", got)
	}
}

func TestFoldState_FinalStateTimestamps(t *testing.T) {
	fold := NewFoldState("researcher", nil)
	fold.Apply(taskEvent("t1", "c1", a2a.TaskStateCompleted))

	state := fold.FinalState(nil)
	if state.LastUpdated.IsZero() {
		t.Error("Expected final state to carry a timestamp")
	}
	if time.Since(state.LastUpdated) > time.Minute {
		t.Error("Final state timestamp is stale")
	}
}

func TestToolInvocationID(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"researcher", "a2a_researcher"},
		{"my agent!", "a2a_my_agent_"},
		{"a-b_c", "a2a_a-b_c"},
	}
	for _, tt := range tests {
		if got := ToolInvocationID(tt.key); got != tt.want {
			t.Errorf("ToolInvocationID(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
