package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/agentline/agentline/internal/a2a"
	"github.com/agentline/agentline/internal/observability"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// cardServer serves an agent card at the well-known path.
func cardServer(t *testing.T, card a2a.AgentCard) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a2a.WellKnownCardPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(card); err != nil {
			t.Errorf("Failed to encode card: %v", err)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistry_Initialize(t *testing.T) {
	srv := cardServer(t, a2a.AgentCard{
		Name:         "Research Agent",
		Description:  "Finds things out",
		Capabilities: &a2a.AgentCapabilities{Streaming: true},
	})

	r := NewRegistry(quietLogger())
	err := r.Initialize(context.Background(), []AgentConfig{
		{Name: "researcher", URL: srv.URL},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	d, err := r.Descriptor("researcher")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if !d.Connected {
		t.Error("Expected agent to be connected")
	}
	if d.DisplayName() != "Research Agent" {
		t.Errorf("Expected display name from card, got %q", d.DisplayName())
	}
	if !d.SupportsStreaming() {
		t.Error("Expected streaming support from card")
	}
	if d.ToolInvocationID() != "a2a_researcher" {
		t.Errorf("Expected tool id a2a_researcher, got %q", d.ToolInvocationID())
	}
	if d.Description != "Finds things out" {
		t.Errorf("Expected description from card, got %q", d.Description)
	}

	if _, err := r.Client("researcher"); err != nil {
		t.Errorf("Client lookup failed: %v", err)
	}
}

func TestRegistry_FailedAgentDoesNotBlockOthers(t *testing.T) {
	good := cardServer(t, a2a.AgentCard{Name: "Good Agent"})
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no card here", http.StatusNotFound)
	}))
	t.Cleanup(bad.Close)

	r := NewRegistry(quietLogger())
	err := r.Initialize(context.Background(), []AgentConfig{
		{Name: "good", URL: good.URL},
		{Name: "bad", URL: bad.URL},
	})
	if err != nil {
		t.Fatalf("Initialize must not fail on a single bad agent: %v", err)
	}

	status := r.Status()
	if !status["good"] {
		t.Error("Expected good agent connected")
	}
	if status["bad"] {
		t.Error("Expected bad agent disconnected")
	}

	d, err := r.Descriptor("bad")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if d.Err == "" {
		t.Error("Expected failure reason recorded on the descriptor")
	}
	// A disconnected agent is still addressable; invocation decides what to do.
	if _, err := r.Client("bad"); err != nil {
		t.Errorf("Expected client for disconnected agent, got error: %v", err)
	}
}

func TestRegistry_SlowAgentResolvesConcurrently(t *testing.T) {
	var inflight atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"Slow Agent"}`)
	})
	srv := httptest.NewServer(slow)
	t.Cleanup(srv.Close)

	go func() {
		// Give both resolutions time to arrive, then let them finish.
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	r := NewRegistry(quietLogger())
	err := r.Initialize(context.Background(), []AgentConfig{
		{Name: "slow-1", URL: srv.URL},
		{Name: "slow-2", URL: srv.URL},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if peak.Load() < 2 {
		t.Errorf("Expected card resolutions to overlap, peak in-flight was %d", peak.Load())
	}
}

func TestRegistry_ReinitializeReplacesWholesale(t *testing.T) {
	first := cardServer(t, a2a.AgentCard{Name: "First"})
	second := cardServer(t, a2a.AgentCard{Name: "Second"})

	r := NewRegistry(quietLogger())
	if err := r.Initialize(context.Background(), []AgentConfig{{Name: "first", URL: first.URL}}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := r.Initialize(context.Background(), []AgentConfig{{Name: "second", URL: second.URL}}); err != nil {
		t.Fatalf("Reinitialize failed: %v", err)
	}

	if _, err := r.Descriptor("first"); err == nil {
		t.Error("Expected first agent gone after reinitialize")
	}
	if _, err := r.Descriptor("second"); err != nil {
		t.Errorf("Expected second agent present: %v", err)
	}
	if keys := r.Keys(); len(keys) != 1 || keys[0] != "second" {
		t.Errorf("Expected keys [second], got %v", keys)
	}
}

func TestRegistry_InvalidConfig(t *testing.T) {
	r := NewRegistry(quietLogger())
	if err := r.Initialize(context.Background(), []AgentConfig{{Name: "", URL: "http://x"}}); err == nil {
		t.Error("Expected error for missing agent name")
	}
	if err := r.Initialize(context.Background(), []AgentConfig{{Name: "x", URL: ""}}); err == nil {
		t.Error("Expected error for missing agent url")
	}
}

func TestRegistry_UnknownAgent(t *testing.T) {
	r := NewRegistry(quietLogger())
	if _, err := r.Client("nobody"); err == nil {
		t.Error("Expected error for unknown agent client")
	}
	if _, err := r.Descriptor("nobody"); err == nil {
		t.Error("Expected error for unknown agent descriptor")
	}
}

func TestRegistry_DescriptorsInConfigOrder(t *testing.T) {
	srv := cardServer(t, a2a.AgentCard{Name: "Agent"})

	r := NewRegistry(quietLogger())
	configs := []AgentConfig{
		{Name: "zeta", URL: srv.URL},
		{Name: "alpha", URL: srv.URL},
		{Name: "mid", URL: srv.URL},
	}
	if err := r.Initialize(context.Background(), configs); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	descriptors := r.Descriptors()
	if len(descriptors) != 3 {
		t.Fatalf("Expected 3 descriptors, got %d", len(descriptors))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if descriptors[i].Key != want {
			t.Errorf("Expected descriptor %d to be %s, got %s", i, want, descriptors[i].Key)
		}
	}
}

func TestRegistry_CardResolutionSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	good := cardServer(t, a2a.AgentCard{Name: "Good Agent"})
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no card here", http.StatusNotFound)
	}))
	t.Cleanup(bad.Close)

	r := NewRegistry(quietLogger(), WithTraceManager(observability.NewTraceManager("registry-test")))
	err := r.Initialize(context.Background(), []AgentConfig{
		{Name: "good", URL: good.URL},
		{Name: "bad", URL: bad.URL},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	statuses := make(map[codes.Code]int)
	for _, span := range recorder.Ended() {
		if span.Name() != "resolve_agent_card" {
			t.Errorf("Unexpected span name %q", span.Name())
			continue
		}
		statuses[span.Status().Code]++
	}
	if statuses[codes.Ok] != 1 {
		t.Errorf("Expected one successful resolution span, got %d", statuses[codes.Ok])
	}
	if statuses[codes.Error] != 1 {
		t.Errorf("Expected one failed resolution span, got %d", statuses[codes.Error])
	}
}

func TestRegistry_HeadersForwarded(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"Secured Agent"}`)
	}))
	t.Cleanup(srv.Close)

	r := NewRegistry(quietLogger())
	err := r.Initialize(context.Background(), []AgentConfig{
		{Name: "secured", URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer token-123"}},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if got, _ := gotAuth.Load().(string); got != "Bearer token-123" {
		t.Errorf("Expected configured header forwarded, got %q", got)
	}
}
