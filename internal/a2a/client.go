package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// JSON-RPC methods of the protocol surface this client speaks.
const (
	methodMessageSend   = "message/send"
	methodMessageStream = "message/stream"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("a2a: rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Client speaks the agent protocol against a single remote agent endpoint:
// card discovery plus JSON-RPC message/send and message/stream.
type Client struct {
	endpoint string
	header   http.Header
	hc       *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithHeaders adds headers sent on every request (e.g. authorization).
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.header.Set(k, v)
		}
	}
}

// WithLogger sets the logger used for skipped-event diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the agent at the given base URL.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		header:   make(http.Header),
		hc:       http.DefaultClient,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the agent's configured base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ResolveCard fetches and parses the agent's capability card from the
// well-known discovery URL derived from the endpoint.
func (c *Client) ResolveCard(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CardURL(c.endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: building card request: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: fetching agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("a2a: fetching agent card: unexpected status %s", resp.Status)
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("a2a: parsing agent card: %w", err)
	}
	return &card, nil
}

// SendMessage performs a blocking message/send call and returns the result
// event (a Task or a Message).
func (c *Client) SendMessage(ctx context.Context, params MessageSendParams) (Event, error) {
	resp, err := c.post(ctx, methodMessageSend, params, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("a2a: parsing send response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	event, err := DecodeEvent(rpcResp.Result)
	if err != nil {
		return nil, fmt.Errorf("a2a: decoding send result: %w", err)
	}
	return event, nil
}

// SendMessageStream opens a message/stream call and returns the stream of
// protocol events. Each call opens a fresh stream; conversation continuity is
// carried by contextId and referenceTaskIds inside params, not by stream
// resumption. The caller must drain or Close the returned stream.
func (c *Client) SendMessageStream(ctx context.Context, params MessageSendParams) (*EventStream, error) {
	resp, err := c.post(ctx, methodMessageStream, params, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isEventStream(ct) {
		resp.Body.Close()
		return nil, fmt.Errorf("a2a: unexpected stream content type %q", ct)
	}

	return newEventStream(resp.Body, c.logger), nil
}

func (c *Client) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("a2a: encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2a: building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	c.applyHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s request failed: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("a2a: %s request failed: unexpected status %s", method, resp.Status)
	}
	return resp, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

func isEventStream(contentType string) bool {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			contentType = contentType[:i]
			break
		}
	}
	return contentType == "text/event-stream"
}

var _ io.Closer = (*EventStream)(nil)
