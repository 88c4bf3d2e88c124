package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/agentline/agentline/internal/a2a"
)

// Streamer is the slice of the protocol client the driver consumes. A2A
// clients satisfy it directly; tests inject scripted implementations.
type Streamer interface {
	SendMessage(ctx context.Context, params a2a.MessageSendParams) (a2a.Event, error)
	SendMessageStream(ctx context.Context, params a2a.MessageSendParams) (*a2a.EventStream, error)
}

// Trace phases emitted through TraceFunc during an invocation.
const (
	PhaseSend     = "send"
	PhaseEvent    = "event"
	PhaseProgress = "progress"
	PhaseFinalize = "finalize"
)

// Trace is a lightweight observability hook payload. It carries no protocol
// types so trace consumers need not depend on the wire model.
type Trace struct {
	Phase      string
	AgentKey   string
	SessionKey string
	Detail     string
}

// Request describes one invocation of a remote agent.
type Request struct {
	AgentKey  string
	AgentID   string
	AgentName string
	Text      string
	// Streaming selects message/stream; when false the driver falls back to
	// a single blocking message/send round trip.
	Streaming bool
}

// Driver runs the send-and-fold loop for agent invocations: it builds the
// outbound message from prior session state, folds the event stream, emits
// interim progress snapshots, and persists the result.
type Driver struct {
	store    Store
	logger   *slog.Logger
	progress func(*ToolEventPayload)
	trace    func(Trace)
	timeout  time.Duration
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithProgress installs a callback invoked with an interim snapshot after
// every meaningful state change during the stream.
func WithProgress(fn func(*ToolEventPayload)) DriverOption {
	return func(d *Driver) { d.progress = fn }
}

// WithTrace installs the observability hook.
func WithTrace(fn func(Trace)) DriverOption {
	return func(d *Driver) { d.trace = fn }
}

// WithTimeout bounds a whole invocation. Zero means no bound.
func WithTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) { d.timeout = timeout }
}

// NewDriver creates a driver persisting through the given store.
func NewDriver(store Store, logger *slog.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{store: store, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke sends the user text to the agent and folds the response into a new
// session snapshot. Prior session state for the same agent provides the
// contextId and referenced task so multi-turn conversations stay threaded.
// The session is persisted after every folded event so a reloaded process
// can resume the conversation mid-invocation. Transport errors surface to
// the caller; a send that fails before any event arrives persists nothing.
func (d *Driver) Invoke(ctx context.Context, client Streamer, req Request) (*ToolEventPayload, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	prior, sessionKey, err := d.loadPrior(ctx, req.AgentKey)
	if err != nil {
		return nil, err
	}

	params := buildSendParams(req.Text, prior)
	fold := NewFoldState(req.AgentKey, prior)
	fold.appendMessage(AgentMessage{
		MessageID: params.Message.MessageID,
		Role:      a2a.RoleUser,
		Text:      req.Text,
		Timestamp: time.Now(),
	})

	d.emitTrace(Trace{Phase: PhaseSend, AgentKey: req.AgentKey, SessionKey: sessionKey, Detail: params.Message.MessageID})

	if req.Streaming {
		err = d.consumeStream(ctx, client, params, fold, prior, req)
	} else {
		err = d.consumeBlocking(ctx, client, params, fold, prior, req)
	}
	if err != nil {
		return nil, err
	}

	return d.finalize(ctx, fold, prior, req)
}

func (d *Driver) loadPrior(ctx context.Context, agentKey string) (*SessionState, string, error) {
	// Without a prior session the key is the deterministic per-agent id; once
	// the agent reveals a contextId the session is stored under that instead.
	sessionKey := ToolInvocationID(agentKey)
	prior, err := d.store.LoadSession(ctx, sessionKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load session %s: %w", sessionKey, err)
	}
	if prior != nil && prior.SessionKey() != sessionKey {
		sessionKey = prior.SessionKey()
	}
	return prior, sessionKey, nil
}

func buildSendParams(text string, prior *SessionState) a2a.MessageSendParams {
	msg := a2a.Message{
		Kind:      a2a.KindMessage,
		MessageID: a2a.NewMessageID(),
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.NewTextPart(text)},
	}
	if prior != nil {
		msg.ContextID = prior.ContextID
		if prior.PrimaryTaskID != "" {
			msg.ReferenceTaskIDs = []string{prior.PrimaryTaskID}
		}
	}
	return a2a.MessageSendParams{Message: &msg}
}

func (d *Driver) consumeStream(ctx context.Context, client Streamer, params a2a.MessageSendParams, fold *FoldState, prior *SessionState, req Request) error {
	stream, err := client.SendMessageStream(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to open stream to agent %s: %w", req.AgentKey, err)
	}
	defer stream.Close()

	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream from agent %s failed: %w", req.AgentKey, err)
		}

		done := fold.Apply(event)
		d.emitTrace(Trace{Phase: PhaseEvent, AgentKey: req.AgentKey, SessionKey: fold.contextID, Detail: eventKind(event)})
		d.saveInterim(ctx, fold, prior, req)
		d.emitProgress(fold, req)
		if done {
			return nil
		}
	}
}

func (d *Driver) consumeBlocking(ctx context.Context, client Streamer, params a2a.MessageSendParams, fold *FoldState, prior *SessionState, req Request) error {
	event, err := client.SendMessage(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send message to agent %s: %w", req.AgentKey, err)
	}
	fold.Apply(event)
	d.saveInterim(ctx, fold, prior, req)
	d.emitProgress(fold, req)
	return nil
}

// saveInterim persists the session mid-invocation so a reloaded process can
// resume the conversation. Failures are logged, not fatal: the save at
// finalization still gates the invocation's success.
func (d *Driver) saveInterim(ctx context.Context, fold *FoldState, prior *SessionState, req Request) {
	if err := d.persistState(ctx, fold.FinalState(prior), req.AgentKey); err != nil {
		d.logger.WarnContext(ctx, "Failed to save interim session",
			"agent_key", req.AgentKey,
			"error", err)
	}
}

func (d *Driver) emitProgress(fold *FoldState, req Request) {
	if d.progress == nil {
		return
	}
	snapshot := fold.Snapshot(req.AgentID, req.AgentName)
	d.emitTrace(Trace{Phase: PhaseProgress, AgentKey: req.AgentKey, SessionKey: snapshot.ContextID, Detail: snapshot.PrimaryTaskID})
	d.progress(snapshot)
}

// sessionLocker is the store upgrade for serialized session saves. Stores
// without it fall back to plain SaveSession.
type sessionLocker interface {
	WithSessionLock(ctx context.Context, sessionKey string, fn func(*SessionState) error) error
}

// persistState saves the session under its durable key and, when different,
// under the per-agent key so the next invocation for the same agent finds
// the session before it knows the contextId.
func (d *Driver) persistState(ctx context.Context, state *SessionState, agentKey string) error {
	keys := []string{state.SessionKey()}
	if toolKey := ToolInvocationID(agentKey); toolKey != keys[0] {
		keys = append(keys, toolKey)
	}
	for _, key := range keys {
		if err := d.saveUnder(ctx, key, state); err != nil {
			return fmt.Errorf("failed to save session %s: %w", key, err)
		}
	}
	return nil
}

func (d *Driver) saveUnder(ctx context.Context, sessionKey string, state *SessionState) error {
	if locker, ok := d.store.(sessionLocker); ok {
		return locker.WithSessionLock(ctx, sessionKey, func(s *SessionState) error {
			*s = *state
			return nil
		})
	}
	return d.store.SaveSession(ctx, sessionKey, state)
}

func (d *Driver) finalize(ctx context.Context, fold *FoldState, prior *SessionState, req Request) (*ToolEventPayload, error) {
	state := fold.FinalState(prior)
	sessionKey := state.SessionKey()

	if err := d.persistState(ctx, state, req.AgentKey); err != nil {
		return nil, err
	}

	payload := fold.Snapshot(req.AgentID, req.AgentName)
	if err := d.store.AppendEvent(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to append event for session %s: %w", sessionKey, err)
	}

	d.emitTrace(Trace{Phase: PhaseFinalize, AgentKey: req.AgentKey, SessionKey: sessionKey, Detail: state.PrimaryTaskID})
	d.logger.InfoContext(ctx, "Agent invocation complete",
		"agent_key", req.AgentKey,
		"session_key", sessionKey,
		"primary_task_id", state.PrimaryTaskID,
		"tasks", len(state.Tasks),
		"messages", len(fold.messages))
	return payload, nil
}

func (d *Driver) emitTrace(t Trace) {
	if d.trace != nil {
		d.trace(t)
	}
}

func eventKind(event a2a.Event) string {
	switch event.(type) {
	case *a2a.Message:
		return a2a.KindMessage
	case *a2a.Task:
		return a2a.KindTask
	case *a2a.StatusUpdate:
		return a2a.KindStatusUpdate
	case *a2a.ArtifactUpdate:
		return a2a.KindArtifactUpdate
	default:
		return "unknown"
	}
}
