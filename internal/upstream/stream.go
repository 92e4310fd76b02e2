package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// doneSentinel is the literal stream line marking logical end of content.
const doneSentinel = "data: [DONE]"

// Stream delivers the body of a streaming chat-completions response as text
// chunks. Each chunk holds one or more complete "data:" lines; a partial line
// at a read boundary is buffered until its newline arrives, so callers can
// split chunks on '\n' without reassembly.
type Stream struct {
	chunks <-chan string
	cancel context.CancelCauseFunc
}

func newStream(body io.ReadCloser, cancel context.CancelCauseFunc) *Stream {
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		defer body.Close()
		var pending []byte
		buf := make([]byte, 4096)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				if i := bytes.LastIndexByte(pending, '\n'); i >= 0 {
					ch <- string(pending[:i+1])
					pending = pending[i+1:]
				}
			}
			if err != nil {
				if len(pending) > 0 {
					ch <- string(pending)
				}
				return
			}
		}
	}()
	return &Stream{chunks: ch, cancel: cancel}
}

// Next returns the next chunk. ok is false once the stream is exhausted,
// whether by natural end, abort, or transport error.
func (s *Stream) Next() (chunk string, ok bool) {
	chunk, ok = <-s.chunks
	return chunk, ok
}

// Abort instructs the transport to stop delivering further chunks. The reason
// is recorded as the cancellation cause.
func (s *Stream) Abort(reason string) {
	s.cancel(fmt.Errorf("stream aborted: %s", reason))
}

// Close releases the underlying transport and drains any buffered chunks.
func (s *Stream) Close() {
	s.cancel(context.Canceled)
	for range s.chunks {
	}
}

// ParseLine parses one stream line. done is true for the terminate sentinel.
// A leading "data: " prefix is stripped before JSON decoding; the fragment
// defaults to "" when the first choice carries no delta content.
func ParseLine(line string) (fragment string, done bool, err error) {
	if line == doneSentinel {
		return "", true, nil
	}
	payload := strings.TrimPrefix(line, "data: ")
	var chunk ChunkPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false, fmt.Errorf("parse stream line: %w", err)
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}

// Events consumes a Stream and sends parsed content fragments to the returned
// channel. Malformed lines are logged and skipped; the terminate sentinel
// produces no fragment. The channel is closed when the stream ends.
func Events(s *Stream) <-chan string {
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		for {
			chunk, ok := s.Next()
			if !ok {
				return
			}
			for line := range strings.SplitSeq(chunk, "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				fragment, done, err := ParseLine(line)
				if err != nil {
					slog.Warn("skipping malformed stream line", "error", err)
					continue
				}
				if done {
					continue
				}
				ch <- fragment
			}
		}
	}()
	return ch
}
