package a2a

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// maxEventSize bounds a single SSE event payload (artifacts can be large).
const maxEventSize = 4 << 20

// EventStream is a lazy sequence of protocol events read from one
// message/stream response. Recv returns io.EOF when the transport closes the
// stream; any other error aborts the sequence.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	closed  bool
}

func newEventStream(body io.ReadCloser, logger *slog.Logger) *EventStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &EventStream{
		body:    body,
		scanner: scanner,
		logger:  logger,
	}
}

// Recv blocks until the next well-formed protocol event arrives. Malformed or
// unknown events on the wire are logged and skipped, never fatal; a transport
// failure is returned as-is and ends the stream.
func (s *EventStream) Recv() (Event, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		payload, err := s.nextPayload()
		if err != nil {
			return nil, err
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(payload, &rpcResp); err != nil {
			s.logger.Debug("skipping unparseable stream payload", "error", err)
			continue
		}
		if rpcResp.Error != nil {
			return nil, rpcResp.Error
		}

		event, err := DecodeEvent(rpcResp.Result)
		if err != nil {
			if errors.Is(err, ErrUnknownEventKind) {
				s.logger.Debug("skipping unknown stream event", "error", err)
				continue
			}
			s.logger.Debug("skipping malformed stream event", "error", err)
			continue
		}
		return event, nil
	}
}

// nextPayload reads one SSE event and returns the concatenated data lines.
func (s *EventStream) nextPayload() ([]byte, error) {
	var data []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
		// Comment lines and other SSE fields (event:, id:, retry:) are ignored.
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	// Stream ended; flush a trailing event that was not followed by a blank line.
	if len(data) > 0 {
		return []byte(strings.Join(data, "\n")), nil
	}
	return nil, io.EOF
}

// Close releases the underlying response body. Recv returns io.EOF afterwards.
func (s *EventStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
