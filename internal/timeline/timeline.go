// Package timeline correlates agent invocation events with conversation
// turns so a transcript can show which agent activity belongs to which user
// exchange.
package timeline

import (
	"time"

	"github.com/agentline/agentline/internal/session"
)

// Turn roles in the conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one transcript entry, identified by id, role and the moment it
// started. Only user turns anchor events; assistant turns are carried so
// callers can pass the full transcript unfiltered.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	StartedAt time.Time `json:"startedAt"`
}

// Entry is one event placed on the timeline.
type Entry struct {
	TurnID string                    `json:"turnId"`
	Event  *session.ToolEventPayload `json:"event"`
}

// Assign correlates each event with the user turn it happened during: the
// latest user turn that started at or before the event's timestamp. Agent
// activity belongs to the user exchange that triggered it, so assistant
// turns never anchor events. Events predating every user turn, and events
// without a timestamp, fall into the last user turn, the most plausible home
// for activity whose clock cannot be trusted. A transcript without user
// turns yields an empty timeline. Within a turn, events describing the same
// session are collapsed to the newest one.
func Assign(events []*session.ToolEventPayload, turns []Turn) []Entry {
	userTurns := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == RoleUser {
			userTurns = append(userTurns, turn)
		}
	}
	if len(userTurns) == 0 || len(events) == 0 {
		return nil
	}

	lastTurn := userTurns[len(userTurns)-1].ID
	// newest entry per (turn, session) pair
	newest := make(map[[2]string]*session.ToolEventPayload)
	order := make([][2]string, 0, len(events))

	for _, event := range events {
		turnID := lastTurn
		if !event.Timestamp.IsZero() {
			// Backward scan: turns are few, ordering need not be assumed.
			matched := false
			for i := len(userTurns) - 1; i >= 0; i-- {
				if !userTurns[i].StartedAt.After(event.Timestamp) {
					turnID = userTurns[i].ID
					matched = true
					break
				}
			}
			if !matched {
				turnID = lastTurn
			}
		}

		key := [2]string{turnID, sessionIdentity(event)}
		existing, ok := newest[key]
		if !ok {
			newest[key] = event
			order = append(order, key)
			continue
		}
		if event.Timestamp.After(existing.Timestamp) {
			newest[key] = event
		}
	}

	out := make([]Entry, 0, len(order))
	for _, key := range order {
		out = append(out, Entry{TurnID: key[0], Event: newest[key]})
	}
	return out
}

// sessionIdentity picks the strongest available identifier for the session
// an event belongs to.
func sessionIdentity(event *session.ToolEventPayload) string {
	if event.PrimaryTaskID != "" {
		return event.PrimaryTaskID
	}
	if event.ContextID != "" {
		return event.ContextID
	}
	if event.ToolInvocationID != "" {
		return event.ToolInvocationID
	}
	return event.AgentKey
}
