package a2a

import "strings"

// WellKnownCardPath is the path agents serve their capability card from.
const WellKnownCardPath = "/.well-known/agent-card.json"

// AgentCapabilities declares optional capabilities supported by an agent.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming,omitempty"`
	PushNotifications      bool `json:"pushNotifications,omitempty"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

// AgentSkill is a unit of capability an agent can perform.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentProvider identifies the service provider of an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCard conveys an agent's identity, endpoint, capabilities and skills.
// It is served from the well-known card path on the agent's base URL.
type AgentCard struct {
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	URL                string             `json:"url"`
	Version            string             `json:"version,omitempty"`
	Provider           *AgentProvider     `json:"provider,omitempty"`
	Capabilities       *AgentCapabilities `json:"capabilities,omitempty"`
	DefaultInputModes  []string           `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string           `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill       `json:"skills,omitempty"`
}

// SupportsStreaming reports whether the card declares SSE streaming support.
func (c *AgentCard) SupportsStreaming() bool {
	return c.Capabilities != nil && c.Capabilities.Streaming
}

// CardURL normalizes a configured base URL into the discovery URL for the
// agent's card. A URL that already ends in the well-known path is returned
// unchanged; otherwise trailing slashes are collapsed to exactly one before
// the well-known path is appended.
func CardURL(base string) string {
	if strings.HasSuffix(base, WellKnownCardPath) {
		return base
	}
	return strings.TrimRight(base, "/") + WellKnownCardPath
}
