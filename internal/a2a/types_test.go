package a2a

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEvent_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "message",
			raw:  `{"kind":"message","messageId":"m1","role":"agent","parts":[{"kind":"text","text":"hi"}]}`,
			want: KindMessage,
		},
		{
			name: "task",
			raw:  `{"kind":"task","id":"t1","contextId":"c1","status":{"state":"working"}}`,
			want: KindTask,
		},
		{
			name: "status update",
			raw:  `{"kind":"status-update","taskId":"t1","contextId":"c1","status":{"state":"completed"},"final":true}`,
			want: KindStatusUpdate,
		},
		{
			name: "artifact update",
			raw:  `{"kind":"artifact-update","taskId":"t1","contextId":"c1","artifact":{"artifactId":"a1"}}`,
			want: KindArtifactUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			var got string
			switch e := event.(type) {
			case *Message:
				got = KindMessage
				if e.MessageID != "m1" {
					t.Errorf("Expected messageId 'm1', got %s", e.MessageID)
				}
			case *Task:
				got = KindTask
				if e.Status.State != TaskStateWorking {
					t.Errorf("Expected state 'working', got %s", e.Status.State)
				}
			case *StatusUpdate:
				got = KindStatusUpdate
				if !e.Final {
					t.Error("Expected final flag to be set")
				}
			case *ArtifactUpdate:
				got = KindArtifactUpdate
				if e.Artifact.ArtifactID != "a1" {
					t.Errorf("Expected artifactId 'a1', got %s", e.Artifact.ArtifactID)
				}
			}

			if got != tt.want {
				t.Errorf("Expected kind %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := DecodeEvent(json.RawMessage(`{"kind":"something-else"}`))
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Errorf("Expected ErrUnknownEventKind, got %v", err)
	}

	_, err = DecodeEvent(json.RawMessage(`not json`))
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Errorf("Expected ErrUnknownEventKind for unparseable payload, got %v", err)
	}
}

func TestMessage_TextContent(t *testing.T) {
	msg := &Message{
		Parts: []Part{
			NewTextPart("first"),
			{Kind: PartKindData, Data: map[string]any{"x": 1}},
			NewTextPart("second"),
			{Kind: PartKindText, Text: ""},
		},
	}

	if got := msg.TextContent(); got != "first\n\nsecond" {
		t.Errorf("Expected text parts joined by blank line, got %q", got)
	}

	empty := &Message{Parts: []Part{{Kind: PartKindData}}}
	if got := empty.TextContent(); got != "" {
		t.Errorf("Expected empty text content, got %q", got)
	}
}

func TestTaskState_TerminalAndSettled(t *testing.T) {
	tests := []struct {
		state    TaskState
		terminal bool
		settled  bool
	}{
		{TaskStateSubmitted, false, false},
		{TaskStateWorking, false, false},
		{TaskStateInputRequired, false, true},
		{TaskStateCompleted, true, true},
		{TaskStateFailed, true, true},
		{TaskStateCanceled, true, true},
		{TaskStateUnknown, false, true},
	}

	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
		if got := tt.state.Settled(); got != tt.settled {
			t.Errorf("%s: Settled() = %v, want %v", tt.state, got, tt.settled)
		}
	}
}

func TestCardURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:4100", "http://localhost:4100/.well-known/agent-card.json"},
		{"http://localhost:4100/", "http://localhost:4100/.well-known/agent-card.json"},
		{"http://localhost:4100//", "http://localhost:4100/.well-known/agent-card.json"},
		{"http://localhost:4100/.well-known/agent-card.json", "http://localhost:4100/.well-known/agent-card.json"},
	}

	for _, tt := range tests {
		if got := CardURL(tt.base); got != tt.want {
			t.Errorf("CardURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestTaskStatus_Text(t *testing.T) {
	status := TaskStatus{
		State:   TaskStateWorking,
		Message: &Message{Parts: []Part{NewTextPart("thinking")}},
	}
	if got := status.Text(); got != "thinking" {
		t.Errorf("Expected 'thinking', got %q", got)
	}

	empty := TaskStatus{State: TaskStateWorking}
	if got := empty.Text(); got != "" {
		t.Errorf("Expected empty status text, got %q", got)
	}
}
