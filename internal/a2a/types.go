package a2a

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminators carried on every streamed protocol event.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is the sum type over everything an agent can emit on a message stream.
// The concrete types are Message, Task, StatusUpdate and ArtifactUpdate.
type Event interface {
	isEvent()
}

func (*Message) isEvent()        {}
func (*Task) isEvent()           {}
func (*StatusUpdate) isEvent()   {}
func (*ArtifactUpdate) isEvent() {}

// ErrUnknownEventKind is returned by DecodeEvent for payloads that are not an
// object or whose kind field names no known event type. Callers consuming a
// stream are expected to skip these rather than abort.
var ErrUnknownEventKind = fmt.Errorf("a2a: unknown event kind")

// DecodeEvent parses one wire event, dispatching on its kind field.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEventKind, err)
	}

	switch probe.Kind {
	case KindMessage:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("a2a: decoding message event: %w", err)
		}
		return &msg, nil
	case KindTask:
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("a2a: decoding task event: %w", err)
		}
		return &task, nil
	case KindStatusUpdate:
		var su StatusUpdate
		if err := json.Unmarshal(raw, &su); err != nil {
			return nil, fmt.Errorf("a2a: decoding status-update event: %w", err)
		}
		return &su, nil
	case KindArtifactUpdate:
		var au ArtifactUpdate
		if err := json.Unmarshal(raw, &au); err != nil {
			return nil, fmt.Errorf("a2a: decoding artifact-update event: %w", err)
		}
		return &au, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, probe.Kind)
	}
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// Part kinds.
const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// Part is one segment of a message or artifact body. Only the field matching
// Kind is populated.
type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	File     map[string]any `json:"file,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Message represents a single message exchanged between user and agent.
type Message struct {
	Kind             string         `json:"kind"`
	MessageID        string         `json:"messageId"`
	ContextID        string         `json:"contextId,omitempty"`
	TaskID           string         `json:"taskId,omitempty"`
	Role             MessageRole    `json:"role"`
	Parts            []Part         `json:"parts"`
	ReferenceTaskIDs []string       `json:"referenceTaskIds,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewMessageID generates a message identifier for locally authored messages.
func NewMessageID() string {
	return uuid.NewString()
}

// TextContent concatenates the text-bearing parts of the message, separating
// parts with a blank line.
func (m *Message) TextContent() string {
	return joinTextParts(m.Parts)
}

func joinTextParts(parts []Part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == PartKindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether the state ends a task for good. A task observed in
// a terminal state is immutable for the rest of the invocation.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCanceled
}

// Settled reports whether the state ends the current turn: terminal states
// plus input-required (the agent is waiting on the user) and unknown.
func (s TaskState) Settled() bool {
	return s.Terminal() || s == TaskStateInputRequired || s == TaskStateUnknown
}

// TaskStatus is a TaskState with an optional accompanying message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Text returns the text content of the status message, if any.
func (ts TaskStatus) Text() string {
	if ts.Message == nil {
		return ""
	}
	return ts.Message.TextContent()
}

// Artifact is an output object produced by an agent during a task.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TextContent concatenates the text-bearing parts of the artifact.
func (a *Artifact) TextContent() string {
	return joinTextParts(a.Parts)
}

// Task is a stateful unit of work tracked by an agent, scoped to a context.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StatusUpdate is sent by the agent to notify the client of a change in a
// task's status. Final marks the end of the event stream.
type StatusUpdate struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ArtifactUpdate is sent by the agent when an artifact has been generated or
// updated during a task.
type ArtifactUpdate struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  Artifact       `json:"artifact"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MessageSendConfiguration configures a message/send or message/stream request.
type MessageSendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	Blocking            bool     `json:"blocking,omitempty"`
	HistoryLength       int      `json:"historyLength,omitempty"`
}

// MessageSendParams is the parameter object for message/send and
// message/stream. It may create, continue or restart a task.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}
