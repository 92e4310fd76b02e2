package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"
)

// MockBackend is an httptest.Server that simulates an OpenAI-compatible
// chat-completions backend.
type MockBackend struct {
	Server *httptest.Server

	// Answer is split into word fragments for streaming responses and returned
	// whole for blocking ones.
	Answer string
	// Models is the id list served by GET /v1/models.
	Models []string
	// StatusOverride, when non-zero, makes every chat request fail with the
	// given HTTP status before any body is written.
	StatusOverride int
	// RawStream, when non-empty, is written verbatim (one line per entry) for
	// streaming requests instead of the synthesized chunks. Use it to script
	// malformed lines or leading-newline fragments.
	RawStream []string

	// LastRequest captures the most recent chat request body parsed.
	LastRequest map[string]any
	// Requests counts chat requests received.
	Requests int
}

// NewMockBackend creates and starts a mock backend serving the given answer
// and model list.
func NewMockBackend(answer string, models ...string) *MockBackend {
	m := &MockBackend{Answer: answer, Models: models}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", m.handleChat)
	mux.HandleFunc("GET /v1/models", m.handleModels)
	m.Server = httptest.NewServer(mux)
	return m
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockBackend) URL() string {
	return m.Server.URL
}

func (m *MockBackend) handleChat(w http.ResponseWriter, r *http.Request) {
	m.Requests++

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	m.LastRequest = body

	if m.StatusOverride != 0 {
		http.Error(w, "scripted failure", m.StatusOverride)
		return
	}

	if stream, _ := body["stream"].(bool); stream {
		m.writeStreaming(w)
		return
	}
	m.writeBlocking(w)
}

func (m *MockBackend) handleModels(w http.ResponseWriter, r *http.Request) {
	data := make([]map[string]any, 0, len(m.Models))
	for _, id := range m.Models {
		data = append(data, map[string]any{
			"id":       id,
			"object":   "model",
			"created":  time.Now().Unix(),
			"owned_by": "mock",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

func (m *MockBackend) writeBlocking(w http.ResponseWriter) {
	resp := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": m.Answer},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockBackend) writeStreaming(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, hasFlusher := w.(http.Flusher)
	flush := func() {
		if hasFlusher {
			flusher.Flush()
		}
	}

	if len(m.RawStream) > 0 {
		for _, line := range m.RawStream {
			fmt.Fprintf(w, "%s\n", line)
			flush()
		}
		return
	}

	words := splitWords(m.Answer)
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		fmt.Fprintf(w, "data: %s\n\n", ChunkLine(word))
		flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flush()
}

// ChunkLine builds the JSON payload of one streaming chunk carrying the given
// delta content.
func ChunkLine(content string) string {
	chunk := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "mock",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(chunk)
	return string(data)
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, c := range s {
		if c != ' ' {
			if start == -1 {
				start = i
			}
		} else {
			if start != -1 {
				words = append(words, s[start:i])
				start = -1
			}
		}
	}
	if start != -1 {
		words = append(words, s[start:])
	}
	if len(words) == 0 {
		words = []string{s}
	}
	return words
}
