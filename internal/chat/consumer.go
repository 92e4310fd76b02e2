// Package chat drives one request/response cycle against a chat-completions
// endpoint, incrementally materializing the assistant's reply into a
// conversation turn and supporting cooperative mid-stream cancellation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chatgate/internal/upstream"
)

// ErrNoModel is returned when the handler is invoked without a usable model.
// The user-facing notification has already been emitted via the Sink.
var ErrNoModel = errors.New("no model selected")

// noModelMessage is the user-facing text for the missing-model precondition.
const noModelMessage = "Please select a model."

// abortReason is passed to the stream's cancellation handle on user stop.
const abortReason = "user requested stop"

// Sink receives the consumer's UI-facing side effects. Implementations bind
// the live conversation to whatever renders it: a terminal, a message list,
// a test recorder.
type Sink interface {
	// FragmentAppended fires after every fragment appended to the target
	// turn, unbatched, so bound views re-render incrementally.
	FragmentAppended(turn *Turn)
	// ChunkProcessed fires after each chunk's lines have been applied
	// (scroll-to-bottom analog).
	ChunkProcessed()
	// Notify surfaces a user-facing error message (toast analog).
	Notify(message string)
}

// ModelResolver reports whether a model id is currently known and usable.
type ModelResolver interface {
	Resolve(ctx context.Context, id string) (bool, error)
}

// ChunkStream is the consumer's view of an open response stream.
// *upstream.Stream satisfies it.
type ChunkStream interface {
	Next() (chunk string, ok bool)
	Abort(reason string)
	Close()
}

// Transport opens streaming completion requests.
type Transport interface {
	OpenStream(ctx context.Context, apiKey string, req *upstream.ChatRequest) (ChunkStream, error)
}

// clientTransport adapts *upstream.Client to the Transport interface.
type clientTransport struct {
	client *upstream.Client
}

func (t clientTransport) OpenStream(ctx context.Context, apiKey string, req *upstream.ChatRequest) (ChunkStream, error) {
	s, err := t.client.OpenStream(ctx, apiKey, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Consumer issues chat-completion requests and applies the streamed reply to
// a conversation.
type Consumer struct {
	transport Transport
	resolver  ModelResolver
	sink      Sink
	apiKey    string
}

// New constructs a Consumer over an arbitrary Transport.
func New(t Transport, resolver ModelResolver, sink Sink, apiKey string) *Consumer {
	return &Consumer{transport: t, resolver: resolver, sink: sink, apiKey: apiKey}
}

// NewWithClient constructs a Consumer backed by an upstream HTTP client.
func NewWithClient(c *upstream.Client, resolver ModelResolver, sink Sink, apiKey string) *Consumer {
	return New(clientTransport{client: c}, resolver, sink, apiKey)
}

// Run drives one completion cycle: validate the model, issue the streaming
// request, and apply fragments to the conversation's trailing assistant turn
// until the stream ends or the session is stopped.
//
// A rejected request (non-2xx or transport failure) skips the read loop
// entirely; the possibly-already-appended empty assistant turn remains.
// Malformed stream lines are logged and skipped, never fatal.
func (c *Consumer) Run(ctx context.Context, sess *Session, conv *Conversation, model string) error {
	if model == "" {
		c.sink.Notify(noModelMessage)
		return ErrNoModel
	}
	known, err := c.resolver.Resolve(ctx, model)
	if err != nil {
		c.sink.Notify(noModelMessage)
		return fmt.Errorf("resolve model %q: %w", model, err)
	}
	if !known {
		c.sink.Notify(noModelMessage)
		return ErrNoModel
	}

	req := &upstream.ChatRequest{
		Model:    model,
		Messages: conv.Messages(),
		Stream:   true,
	}
	stream, err := c.transport.OpenStream(ctx, c.apiKey, req)

	target := conv.assistantTarget()

	if err != nil {
		slog.Warn("completion request rejected", "model", model, "error", err)
		return err
	}
	defer stream.Close()

	for {
		chunk, more := stream.Next()
		if !more || sess.StopRequested() {
			if sess.StopRequested() {
				stream.Abort(abortReason)
			}
			break
		}
		for line := range strings.SplitSeq(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			fragment, done, err := upstream.ParseLine(line)
			if err != nil {
				slog.Error("skipping malformed stream line", "error", err)
				continue
			}
			if done {
				continue
			}
			// Some backends emit a lone newline before real content;
			// suppress it while the turn is still empty.
			if target.Content == "" && fragment == "\n" {
				continue
			}
			target.Content += fragment
			c.sink.FragmentAppended(target)
		}
		c.sink.ChunkProcessed()
	}
	return nil
}
