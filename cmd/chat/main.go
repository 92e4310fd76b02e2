// Command chat is an interactive terminal client for a chat-completions
// endpoint. Each stdin line becomes a user turn; the assistant's reply is
// streamed to the terminal as fragments arrive. Ctrl-C during a reply stops
// the stream at the next chunk boundary; a second Ctrl-C exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatgate/internal/chat"
	"chatgate/internal/upstream"
)

func main() {
	baseURL := flag.String("base-url", getEnv("UPSTREAM_BASE_URL", "http://localhost:8080"), "Gateway base URL or full chat-completions endpoint URL")
	apiKey := flag.String("api-key", os.Getenv("UPSTREAM_API_KEY"), "API key sent with every request")
	model := flag.String("model", os.Getenv("DEFAULT_MODEL"), "Model id to chat with")
	system := flag.String("system", "", "Optional system prompt")
	proxyURL := flag.String("proxy-url", os.Getenv("UPSTREAM_PROXY_URL"), "HTTP/HTTPS proxy URL for upstream requests")
	timeout := flag.Duration("timeout", 120*time.Second, "Per-request timeout")
	flag.Parse()

	client := upstream.NewClient(*baseURL, *timeout, *proxyURL)
	resolver := &upstream.Resolver{Client: client, APIKey: *apiKey}
	sink := &terminalSink{out: os.Stdout}
	consumer := chat.NewWithClient(client, resolver, sink, *apiKey)

	conv := &chat.Conversation{System: *system}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		conv.Append(chat.RoleUser, line)

		// Fresh session per request; the stop flag is not reused.
		sess := &chat.Session{}
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-sigs:
					if sess.StopRequested() {
						os.Exit(130)
					}
					sess.Stop()
					fmt.Fprintln(os.Stderr, "\n(stopping, Ctrl-C again to exit)")
				case <-done:
					return
				}
			}
		}()

		sink.reset()
		err := consumer.Run(context.Background(), sess, conv, *model)
		close(done)
		if err != nil && !errors.Is(err, chat.ErrNoModel) {
			slog.Error("request failed", "error", err)
		}
		fmt.Println()
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		slog.Error("read stdin", "error", err)
		os.Exit(1)
	}
}

// terminalSink renders the streaming reply by printing each fragment's suffix
// of the accumulated turn content.
type terminalSink struct {
	out     *os.File
	printed int
}

func (s *terminalSink) reset() { s.printed = 0 }

func (s *terminalSink) FragmentAppended(turn *chat.Turn) {
	if len(turn.Content) > s.printed {
		fmt.Fprint(s.out, turn.Content[s.printed:])
		s.printed = len(turn.Content)
	}
}

func (s *terminalSink) ChunkProcessed() {}

func (s *terminalSink) Notify(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
