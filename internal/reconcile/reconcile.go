// Package reconcile merges session and event-log views that come from two
// sources: the live in-process state and the persisted store. All functions
// are pure; callers own locking and IO.
package reconcile

import (
	"sort"
	"strings"

	"github.com/agentline/agentline/internal/session"
)

// MergeSessions combines persisted and live session maps. A live session
// wins over a persisted one under the same key; persisted-only sessions are
// retained. Neither input map is modified.
func MergeSessions(persisted, live map[string]*session.SessionState) map[string]*session.SessionState {
	out := make(map[string]*session.SessionState, len(persisted)+len(live))
	for key, state := range persisted {
		out[key] = state
	}
	for key, state := range live {
		out[key] = state
	}
	return out
}

// MergeEventLog combines persisted and live event-log entries, removing
// duplicates of the same invocation seen through both sources, and returns
// the result sorted newest first. Deduplication runs in two passes: an exact
// identity pass keyed on invocation id, timestamp and primary task, then a
// semantic pass that catches re-listed invocations whose timestamps differ
// but whose content is the same. Within a pass the first occurrence wins;
// the list is sorted newest first before the semantic pass, so when two
// sources disagree about a logically identical snapshot the most recent
// copy survives.
func MergeEventLog(persisted, live []*session.ToolEventPayload) []*session.ToolEventPayload {
	combined := make([]*session.ToolEventPayload, 0, len(persisted)+len(live))
	combined = append(combined, persisted...)
	combined = append(combined, live...)
	if len(combined) == 0 {
		return combined
	}

	seen := make(map[string]bool, len(combined))
	coarse := combined[:0:0]
	for _, entry := range combined {
		key := coarseKey(entry)
		if seen[key] {
			continue
		}
		seen[key] = true
		coarse = append(coarse, entry)
	}

	// Newest first; entries without a timestamp sink to the end.
	sort.SliceStable(coarse, func(i, j int) bool {
		ti, tj := coarse[i].Timestamp, coarse[j].Timestamp
		if ti.IsZero() || tj.IsZero() {
			return tj.IsZero() && !ti.IsZero()
		}
		return ti.After(tj)
	})

	seenFine := make(map[string]bool, len(coarse))
	out := coarse[:0:0]
	for _, entry := range coarse {
		key := semanticKey(entry)
		if seenFine[key] {
			continue
		}
		seenFine[key] = true
		out = append(out, entry)
	}
	return out
}

// invocationID identifies the entry's invocation, falling back to the agent
// key for entries recorded before the tool id was assigned.
func invocationID(entry *session.ToolEventPayload) string {
	if entry.ToolInvocationID != "" {
		return entry.ToolInvocationID
	}
	return entry.AgentKey
}

func coarseKey(entry *session.ToolEventPayload) string {
	return strings.Join([]string{
		invocationID(entry),
		entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		entry.PrimaryTaskID,
	}, "\x1f")
}

func semanticKey(entry *session.ToolEventPayload) string {
	return strings.Join([]string{
		invocationID(entry),
		entry.PrimaryTaskID,
		entry.ContextID,
		entry.LastMessageID(),
		normalizeText(entry.ResponseText),
	}, "\x1f")
}

// normalizeText collapses all whitespace runs so reflowed copies of the same
// response compare equal.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
