package session

import (
	"strings"
	"time"

	"github.com/agentline/agentline/internal/a2a"
)

// FoldState is the explicit accumulator threaded through one invocation's
// streaming loop. Each incoming protocol event is folded in via Apply; the
// upsert and merge rules live here so they are testable apart from the
// stream-consumption mechanics.
type FoldState struct {
	agentKey string
	toolID   string

	contextID    string
	latestTaskID string

	agentResponses  []string
	messages        []AgentMessage
	seenMessages    map[string]bool
	tasks           map[string]*TaskSnapshot
	taskOrder       []string
	touched         map[string]bool
	statusUpdates   []StatusUpdateSummary
	artifactUpdates []ArtifactUpdateSummary

	now func() time.Time
}

// NewFoldState creates the accumulator for one invocation of the given agent.
// A prior session seeds context/task continuity: its contextId counts as
// already known and its task map is carried forward so tasks are superseded,
// never lost.
func NewFoldState(agentKey string, prior *SessionState) *FoldState {
	f := &FoldState{
		agentKey:     agentKey,
		toolID:       ToolInvocationID(agentKey),
		seenMessages: make(map[string]bool),
		tasks:        make(map[string]*TaskSnapshot),
		touched:      make(map[string]bool),
		now:          time.Now,
	}
	if prior != nil {
		f.contextID = prior.ContextID
		for id, task := range prior.Tasks {
			t := task
			t.Artifacts = append([]ArtifactRef(nil), task.Artifacts...)
			f.tasks[id] = &t
			f.taskOrder = append(f.taskOrder, id)
		}
	}
	return f
}

// ContextID returns the context id revealed so far, if any.
func (f *FoldState) ContextID() string {
	return f.contextID
}

// ResponseText concatenates the agent-authored responses accumulated this
// turn, separated by blank lines.
func (f *FoldState) ResponseText() string {
	return strings.Join(f.agentResponses, "\n\n")
}

// Apply folds one protocol event into the accumulator and reports whether the
// stream is logically complete afterwards. Completion is signaled by any of:
// an agent message arriving after a task has settled, a task event carrying a
// settled state, or a status-update that is final or settled. Different agent
// implementations signal completion differently, so no single convention is
// assumed.
func (f *FoldState) Apply(event a2a.Event) (done bool) {
	switch e := event.(type) {
	case *a2a.Message:
		f.applyMessage(e)
		return e.Role == a2a.RoleAgent && f.anyTaskSettled()
	case *a2a.Task:
		f.applyTask(e)
		return e.Status.State.Settled()
	case *a2a.StatusUpdate:
		f.applyStatusUpdate(e)
		return e.Final || e.Status.State.Settled()
	case *a2a.ArtifactUpdate:
		f.applyArtifactUpdate(e)
		return false
	default:
		return false
	}
}

func (f *FoldState) applyMessage(msg *a2a.Message) {
	f.adoptContext(msg.ContextID)
	if msg.TaskID != "" {
		f.latestTaskID = msg.TaskID
	}

	text := msg.TextContent()
	if msg.Role == a2a.RoleAgent && text != "" {
		f.agentResponses = append(f.agentResponses, text)
	}

	// Record the message even when empty so the trace stays complete.
	f.appendMessage(AgentMessage{
		MessageID: msg.MessageID,
		Role:      msg.Role,
		TaskID:    msg.TaskID,
		Text:      text,
		Timestamp: f.now(),
	})
}

func (f *FoldState) applyTask(task *a2a.Task) {
	f.adoptContext(task.ContextID)
	if task.ID != "" {
		f.latestTaskID = task.ID
	}

	snap := f.upsertTask(task.ID, task.ContextID)
	snap.State = task.Status.State
	if text := task.Status.Text(); text != "" {
		snap.StatusMessage = text
	}
	for _, artifact := range task.Artifacts {
		mergeArtifact(snap, ArtifactRef{
			ArtifactID:  artifact.ArtifactID,
			Name:        artifact.Name,
			Description: artifact.Description,
		})
	}
	snap.LastUpdated = f.now()
}

func (f *FoldState) applyStatusUpdate(su *a2a.StatusUpdate) {
	f.adoptContext(su.ContextID)
	if su.TaskID != "" {
		f.latestTaskID = su.TaskID
	}

	f.statusUpdates = append(f.statusUpdates, StatusUpdateSummary{
		TaskID:        su.TaskID,
		ContextID:     su.ContextID,
		State:         su.Status.State,
		StatusMessage: su.Status.Text(),
		Final:         su.Final,
		Timestamp:     f.now(),
	})

	// Patch only status fields; artifacts accumulated earlier are preserved.
	snap := f.upsertTask(su.TaskID, su.ContextID)
	snap.State = su.Status.State
	if text := su.Status.Text(); text != "" {
		snap.StatusMessage = text
	}
	snap.LastUpdated = f.now()
}

func (f *FoldState) applyArtifactUpdate(au *a2a.ArtifactUpdate) {
	f.adoptContext(au.ContextID)
	if au.TaskID != "" {
		f.latestTaskID = au.TaskID
	}

	f.artifactUpdates = append(f.artifactUpdates, ArtifactUpdateSummary{
		TaskID:      au.TaskID,
		ArtifactID:  au.Artifact.ArtifactID,
		Name:        au.Artifact.Name,
		Description: au.Artifact.Description,
		Text:        au.Artifact.TextContent(),
		Timestamp:   f.now(),
	})

	snap := f.upsertTask(au.TaskID, au.ContextID)
	mergeArtifact(snap, ArtifactRef{
		ArtifactID:  au.Artifact.ArtifactID,
		Name:        au.Artifact.Name,
		Description: au.Artifact.Description,
	})
	snap.LastUpdated = f.now()
}

// adoptContext records the context id the first time any event reveals it.
func (f *FoldState) adoptContext(contextID string) {
	if f.contextID == "" && contextID != "" {
		f.contextID = contextID
	}
}

func (f *FoldState) upsertTask(taskID, contextID string) *TaskSnapshot {
	f.touched[taskID] = true
	if snap, ok := f.tasks[taskID]; ok {
		if snap.ContextID == "" && contextID != "" {
			snap.ContextID = contextID
		}
		return snap
	}
	snap := &TaskSnapshot{TaskID: taskID, ContextID: contextID, State: a2a.TaskStateUnknown}
	f.tasks[taskID] = snap
	f.taskOrder = append(f.taskOrder, taskID)
	return snap
}

func mergeArtifact(snap *TaskSnapshot, ref ArtifactRef) {
	for i, existing := range snap.Artifacts {
		if existing.ArtifactID == ref.ArtifactID {
			if ref.Name != "" {
				snap.Artifacts[i].Name = ref.Name
			}
			if ref.Description != "" {
				snap.Artifacts[i].Description = ref.Description
			}
			return
		}
	}
	snap.Artifacts = append(snap.Artifacts, ref)
}

// appendMessage records a message, back-filling missing identity and text so
// downstream dedup keys stay well-formed, and dropping exact re-deliveries.
func (f *FoldState) appendMessage(msg AgentMessage) {
	if msg.MessageID == "" {
		msg.MessageID = f.toolID + msg.Timestamp.UTC().Format("20060102T150405.000000000Z")
	}
	if msg.Text == "" {
		msg.Text = f.ResponseText()
	}
	if msg.Role == "" {
		msg.Role = a2a.RoleAgent
	}

	key := msg.DedupKey(len(f.messages))
	if f.seenMessages[key] {
		return
	}
	f.seenMessages[key] = true
	f.messages = append(f.messages, msg)
}

// anyTaskSettled considers only tasks touched by this turn's events; tasks
// carried over from a prior session do not end the current turn.
func (f *FoldState) anyTaskSettled() bool {
	for id := range f.touched {
		if snap, ok := f.tasks[id]; ok && snap.State.Settled() {
			return true
		}
	}
	return false
}

func (f *FoldState) taskList() []TaskSnapshot {
	tasks := make([]TaskSnapshot, 0, len(f.taskOrder))
	for _, id := range f.taskOrder {
		snap := *f.tasks[id]
		snap.Artifacts = append([]ArtifactRef(nil), f.tasks[id].Artifacts...)
		tasks = append(tasks, snap)
	}
	return tasks
}

// Snapshot builds the point-in-time payload for the current accumulator
// state. Each snapshot reflects a superset of the previous one's state.
func (f *FoldState) Snapshot(agentID, agentName string) *ToolEventPayload {
	return &ToolEventPayload{
		AgentKey:         f.agentKey,
		AgentID:          agentID,
		ToolInvocationID: f.toolID,
		AgentName:        agentName,
		ResponseText:     f.ResponseText(),
		ContextID:        f.contextID,
		PrimaryTaskID:    f.primaryTaskID(nil),
		Tasks:            f.taskList(),
		StatusUpdates:    append([]StatusUpdateSummary(nil), f.statusUpdates...),
		Artifacts:        append([]ArtifactUpdateSummary(nil), f.artifactUpdates...),
		Messages:         append([]AgentMessage(nil), f.messages...),
		Timestamp:        f.now(),
	}
}

// primaryTaskID picks the task carried into the next invocation: the most
// recently revealed task id, falling back to the context id, falling back to
// the prior session's primary task.
func (f *FoldState) primaryTaskID(prior *SessionState) string {
	if f.latestTaskID != "" {
		return f.latestTaskID
	}
	if f.contextID != "" {
		return f.contextID
	}
	if prior != nil {
		return prior.PrimaryTaskID
	}
	return ""
}

// FinalState builds the durable session snapshot persisted at the end of the
// invocation, merging this turn's messages into the prior session's list.
func (f *FoldState) FinalState(prior *SessionState) *SessionState {
	state := &SessionState{
		AgentKey:         f.agentKey,
		ContextID:        f.contextID,
		PrimaryTaskID:    f.primaryTaskID(prior),
		Tasks:            make(map[string]TaskSnapshot, len(f.tasks)),
		LastResponseText: f.ResponseText(),
		LastUpdated:      f.now(),
	}
	for id, snap := range f.tasks {
		t := *snap
		t.Artifacts = append([]ArtifactRef(nil), snap.Artifacts...)
		state.Tasks[id] = t
	}
	if prior != nil {
		state.Messages = append(state.Messages, prior.Messages...)
	}
	state.Messages = append(state.Messages, f.messages...)
	return state
}
