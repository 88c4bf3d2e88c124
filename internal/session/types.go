package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentline/agentline/internal/a2a"
)

// ToolInvocationID derives the stable tool identifier for an agent key. The
// key is sanitized so the identifier is safe to use as a tool name in the
// outer tool-calling loop.
func ToolInvocationID(agentKey string) string {
	var b strings.Builder
	b.WriteString("a2a_")
	for _, r := range agentKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// AgentMessage is one protocol message recorded during an invocation. The
// MessageID is opaque: it may be agent-assigned or locally generated.
type AgentMessage struct {
	MessageID string          `json:"messageId"`
	Role      a2a.MessageRole `json:"role"`
	TaskID    string          `json:"taskId,omitempty"`
	Text      string          `json:"text,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
}

// DedupKey identifies the message for deduplication: the messageId when
// present, otherwise a synthetic key over the message content and its
// position in the list.
func (m AgentMessage) DedupKey(ordinal int) string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return strings.Join([]string{m.TaskID, string(m.Role), m.Text, strconv.Itoa(ordinal)}, "\x1f")
}

// ArtifactRef is a lightweight reference to an artifact produced by a task.
// Updates are overwrite-by-id: last write wins for name and description.
type ArtifactRef struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// TaskSnapshot is the session's view of one remote task. Once a terminal
// state is observed the snapshot is only superseded by a new task, never
// reopened.
type TaskSnapshot struct {
	TaskID        string        `json:"taskId"`
	ContextID     string        `json:"contextId,omitempty"`
	State         a2a.TaskState `json:"state"`
	StatusMessage string        `json:"statusMessage,omitempty"`
	Artifacts     []ArtifactRef `json:"artifacts,omitempty"`
	LastUpdated   time.Time     `json:"lastUpdated,omitzero"`
}

// StatusUpdateSummary records one status-update event for the progress trace.
type StatusUpdateSummary struct {
	TaskID        string        `json:"taskId"`
	ContextID     string        `json:"contextId,omitempty"`
	State         a2a.TaskState `json:"state"`
	StatusMessage string        `json:"statusMessage,omitempty"`
	Final         bool          `json:"final,omitempty"`
	Timestamp     time.Time     `json:"timestamp,omitzero"`
}

// ArtifactUpdateSummary records one artifact-update event for the progress trace.
type ArtifactUpdateSummary struct {
	TaskID      string    `json:"taskId"`
	ArtifactID  string    `json:"artifactId"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Text        string    `json:"text,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// ToolEventPayload is the unit emitted to the outer system on every progress
// tick and at completion of an invocation. It is an immutable point-in-time
// snapshot; the final payload of an invocation is authoritative. Accumulated
// across invocations and reload boundaries, payloads form the event log.
type ToolEventPayload struct {
	AgentKey         string                  `json:"agentKey"`
	AgentID          string                  `json:"agentId,omitempty"`
	ToolInvocationID string                  `json:"toolInvocationId"`
	AgentName        string                  `json:"agentName,omitempty"`
	ResponseText     string                  `json:"responseText,omitempty"`
	ContextID        string                  `json:"contextId,omitempty"`
	PrimaryTaskID    string                  `json:"primaryTaskId,omitempty"`
	Tasks            []TaskSnapshot          `json:"tasks,omitempty"`
	StatusUpdates    []StatusUpdateSummary   `json:"statusUpdates,omitempty"`
	Artifacts        []ArtifactUpdateSummary `json:"artifacts,omitempty"`
	Messages         []AgentMessage          `json:"messages,omitempty"`
	Timestamp        time.Time               `json:"timestamp,omitzero"`
}

// LastMessageID returns the id of the most recent recorded message.
func (p *ToolEventPayload) LastMessageID() string {
	if len(p.Messages) == 0 {
		return ""
	}
	return p.Messages[len(p.Messages)-1].MessageID
}

// SessionState is the durable bookkeeping for one agent's ongoing
// conversation: the context and task continuity carried into the next
// invocation, plus the accumulated task map and message list. It is owned
// exclusively by the invocation currently running for its agent.
type SessionState struct {
	AgentKey         string                  `json:"agentKey"`
	ContextID        string                  `json:"contextId,omitempty"`
	PrimaryTaskID    string                  `json:"primaryTaskId,omitempty"`
	Tasks            map[string]TaskSnapshot `json:"tasks,omitempty"`
	Messages         []AgentMessage          `json:"messages,omitempty"`
	LastResponseText string                  `json:"lastResponseText,omitempty"`
	LastUpdated      time.Time               `json:"lastUpdated,omitzero"`
}

// SessionKey returns the durable storage key for this session: the contextId
// when the agent has revealed one, otherwise the derived tool identifier.
func (s *SessionState) SessionKey() string {
	if s.ContextID != "" {
		return s.ContextID
	}
	return ToolInvocationID(s.AgentKey)
}
