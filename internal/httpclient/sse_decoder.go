package httpclient

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// NewSSEDecoder parses an upstream text/event-stream body into StreamEvents.
// Event framing follows the WHATWG SSE spec subset providers actually emit:
// "event: <type>" and "data: <payload>" lines, multiple data lines are
// joined with "\n", and a blank line terminates the event.
func NewSSEDecoder(ctx context.Context, body io.ReadCloser) StreamDecoder {
	scanner := bufio.NewScanner(body)
	// Tool-call argument and base64 image payload lines can dwarf the
	// scanner's 64KiB default, so give it room to grow.
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	return &sseDecoder{ctx: ctx, body: body, scanner: scanner}
}

type sseDecoder struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	current *StreamEvent
	err     error
	closed  bool
}

func (s *sseDecoder) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	var (
		eventType string
		dataLines []string
		sawAny    bool
	)

	for s.scanner.Scan() {
		line := s.scanner.Text()
		sawAny = true

		switch {
		case line == "":
			if len(dataLines) == 0 && eventType == "" {
				continue
			}

			s.current = &StreamEvent{Type: eventType, Data: []byte(strings.Join(dataLines, "\n"))}

			return true
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat, ignored
		default:
			// unknown field, ignored per spec
		}
	}

	if err := s.scanner.Err(); err != nil {
		s.err = err
		_ = s.Close()

		return false
	}

	if sawAny && (len(dataLines) > 0 || eventType != "") {
		s.current = &StreamEvent{Type: eventType, Data: []byte(strings.Join(dataLines, "\n"))}
		_ = s.Close()

		return true
	}

	_ = s.Close()

	return false
}

func (s *sseDecoder) Current() *StreamEvent { return s.current }
func (s *sseDecoder) Err() error            { return s.err }

func (s *sseDecoder) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return s.body.Close()
}
