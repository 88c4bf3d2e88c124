// Package registry manages the set of remote agents the engine can invoke.
// It resolves agent cards concurrently at startup and holds one protocol
// client per configured agent.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentline/agentline/internal/a2a"
	"github.com/agentline/agentline/internal/observability"
	"github.com/agentline/agentline/internal/session"
)

// AgentConfig describes one remote agent to connect to.
type AgentConfig struct {
	// Name is the stable key the agent is addressed by.
	Name        string            `yaml:"name" json:"name"`
	URL         string            `yaml:"url" json:"url"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	// Headers are attached to every request to this agent (auth tokens etc.).
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Validate checks the configuration for required fields.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if c.URL == "" {
		return fmt.Errorf("agent %s: url is required", c.Name)
	}
	return nil
}

// AgentDescriptor is the resolved view of one configured agent: its config
// plus whatever the card resolution produced. Connected is false when card
// resolution failed; Err then carries the reason.
type AgentDescriptor struct {
	Key         string         `json:"key"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Connected   bool           `json:"connected"`
	Err         string         `json:"error,omitempty"`
	Card        *a2a.AgentCard `json:"card,omitempty"`
}

// ToolInvocationID returns the deterministic tool id for this agent.
func (d *AgentDescriptor) ToolInvocationID() string {
	return session.ToolInvocationID(d.Key)
}

// DisplayName returns the card's advertised name, falling back to the key.
func (d *AgentDescriptor) DisplayName() string {
	if d.Card != nil && d.Card.Name != "" {
		return d.Card.Name
	}
	return d.Key
}

// SupportsStreaming reports whether the resolved card advertises streaming.
// Agents without a card default to streaming.
func (d *AgentDescriptor) SupportsStreaming() bool {
	if d.Card == nil {
		return true
	}
	return d.Card.SupportsStreaming()
}

// entry pairs a descriptor with its live client.
type entry struct {
	descriptor AgentDescriptor
	client     *a2a.Client
}

// Registry resolves and holds connections to the configured agents. All
// methods are safe for concurrent use; Initialize replaces the whole agent
// set atomically.
type Registry struct {
	logger     *slog.Logger
	httpClient *http.Client
	trace      *observability.TraceManager

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithHTTPClient sets the HTTP client shared by all agent connections.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Registry) { r.httpClient = hc }
}

// WithTraceManager enables spans around card resolution.
func WithTraceManager(tm *observability.TraceManager) Option {
	return func(r *Registry) { r.trace = tm }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:  logger,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize connects to every configured agent, resolving all cards
// concurrently. A failed resolution does not fail the call or abort the
// others: the agent is recorded as disconnected and the rest proceed. The
// previous agent set is replaced wholesale, so repeated calls reconfigure
// the registry rather than accumulate.
func (r *Registry) Initialize(ctx context.Context, configs []AgentConfig) error {
	entries := make(map[string]*entry, len(configs))
	order := make([]string, 0, len(configs))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid agent configuration: %w", err)
		}
		order = append(order, cfg.Name)

		g.Go(func() error {
			e := r.connect(ctx, cfg)

			mu.Lock()
			entries[cfg.Name] = e
			mu.Unlock()
			return nil
		})
	}

	// connect never returns an error, so this only propagates ctx problems.
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Agent registry initialized",
		"configured", len(configs),
		"connected", r.connectedCount(),
	)
	return nil
}

func (r *Registry) connect(ctx context.Context, cfg AgentConfig) *entry {
	var span trace.Span
	if r.trace != nil {
		ctx, span = r.trace.StartCardResolutionSpan(ctx, cfg.Name, cfg.URL)
		defer span.End()
	}

	opts := []a2a.Option{a2a.WithLogger(r.logger)}
	if r.httpClient != nil {
		opts = append(opts, a2a.WithHTTPClient(r.httpClient))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, a2a.WithHeaders(cfg.Headers))
	}
	client := a2a.NewClient(cfg.URL, opts...)

	e := &entry{
		descriptor: AgentDescriptor{
			Key:         cfg.Name,
			URL:         cfg.URL,
			Description: cfg.Description,
		},
		client: client,
	}

	card, err := client.ResolveCard(ctx)
	if err != nil {
		if r.trace != nil {
			r.trace.RecordError(span, err)
		}
		e.descriptor.Err = err.Error()
		r.logger.WarnContext(ctx, "Failed to resolve agent card",
			"agent_key", cfg.Name,
			"url", cfg.URL,
			"error", err,
		)
		return e
	}

	if r.trace != nil {
		r.trace.SetSpanSuccess(span)
	}
	e.descriptor.Connected = true
	e.descriptor.Card = card
	if e.descriptor.Description == "" {
		e.descriptor.Description = card.Description
	}
	r.logger.InfoContext(ctx, "Agent connected",
		"agent_key", cfg.Name,
		"agent_name", card.Name,
		"streaming", card.SupportsStreaming(),
	)
	return e
}

// Client returns the protocol client for the given agent key.
func (r *Registry) Client(key string) (*a2a.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", key)
	}
	return e.client, nil
}

// Descriptor returns the resolved descriptor for the given agent key.
func (r *Registry) Descriptor(key string) (AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return AgentDescriptor{}, fmt.Errorf("unknown agent: %s", key)
	}
	return e.descriptor, nil
}

// Descriptors returns all agent descriptors in configuration order.
func (r *Registry) Descriptors() []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentDescriptor, 0, len(r.order))
	for _, key := range r.order {
		if e, ok := r.entries[key]; ok {
			out = append(out, e.descriptor)
		}
	}
	return out
}

// Status returns connection state keyed by agent key.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.entries))
	for key, e := range r.entries {
		out[key] = e.descriptor.Connected
	}
	return out
}

// Keys returns the configured agent keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) connectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.descriptor.Connected {
			n++
		}
	}
	return n
}
