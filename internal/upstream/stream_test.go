package upstream

import (
	"context"
	"io"
	"strings"
	"testing"
)

func chunkLine(content string) string {
	return `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":` + quote(content) + `}}]}`
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		fragment string
		done     bool
		wantErr  bool
	}{
		{name: "sentinel", line: "data: [DONE]", done: true},
		{name: "content", line: chunkLine("Hello"), fragment: "Hello"},
		{name: "newline fragment", line: chunkLine("\n"), fragment: "\n"},
		{name: "no choices", line: `data: {"id":"c1","choices":[]}`, fragment: ""},
		{name: "malformed", line: "data: {not json", wantErr: true},
		{name: "not an event", line: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragment, done, err := ParseLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got fragment %q", fragment)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if done != tt.done {
				t.Errorf("done: want %v, got %v", tt.done, done)
			}
			if fragment != tt.fragment {
				t.Errorf("fragment: want %q, got %q", tt.fragment, fragment)
			}
		})
	}
}

func newTestStream(parts ...string) *Stream {
	_, cancel := context.WithCancelCause(context.Background())
	body := io.NopCloser(&partReader{parts: parts})
	return newStream(body, cancel)
}

// partReader returns one part per Read call, then EOF.
type partReader struct {
	parts []string
}

func (r *partReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	part := r.parts[0]
	n := copy(p, part)
	if n < len(part) {
		r.parts[0] = part[n:]
	} else {
		r.parts = r.parts[1:]
	}
	return n, nil
}

func TestStreamBuffersPartialLines(t *testing.T) {
	line := chunkLine("Hello")
	s := newTestStream(line[:10], line[10:]+"\n")
	defer s.Close()

	chunk, ok := s.Next()
	if !ok {
		t.Fatal("expected a chunk")
	}
	if chunk != line+"\n" {
		t.Errorf("want full line in one chunk, got %q", chunk)
	}
	if _, ok := s.Next(); ok {
		t.Error("expected stream end")
	}
}

func TestStreamFlushesTrailingPartialLine(t *testing.T) {
	s := newTestStream("data: [DONE]")
	defer s.Close()

	chunk, ok := s.Next()
	if !ok || chunk != "data: [DONE]" {
		t.Errorf("want trailing partial flushed, got %q (ok=%v)", chunk, ok)
	}
}

func TestEventsFiltersSentinelAndMalformed(t *testing.T) {
	s := newTestStream(
		chunkLine("Hello") + "\n\n" +
			"data: {broken\n" +
			chunkLine(" world") + "\n\n" +
			"data: [DONE]\n",
	)

	var got []string
	for fragment := range Events(s) {
		got = append(got, fragment)
	}
	want := []string{"Hello", " world"}
	if len(got) != len(want) {
		t.Fatalf("want %d fragments, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d: want %q, got %q", i, want[i], got[i])
		}
	}
}
