package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends requests to an OpenAI-compatible chat backend.
type Client struct {
	// completionsURL is the full URL of the chat-completions endpoint,
	// e.g. "https://chat.example.com/v1/chat/completions". If the base URL
	// does not already end with "/v1/chat/completions" the suffix is appended
	// automatically so that callers can pass either a base host or the full URL.
	completionsURL string
	modelsURL      string
	httpClient     *http.Client
	// streamTransport is used by streaming requests (no timeout, but same proxy).
	streamTransport http.RoundTripper
}

const completionsPath = "/v1/chat/completions"

// NewClient constructs a Client with the given base URL (or full endpoint URL),
// timeout, and optional proxy URL. proxyURL may be empty to use the default
// environment proxy.
func NewClient(baseURL string, timeout time.Duration, proxyURL string) *Client {
	completionsURL := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(completionsURL, completionsPath) {
		completionsURL += completionsPath
	}
	modelsURL := strings.TrimSuffix(completionsURL, completionsPath) + "/v1/models"

	transport := &http.Transport{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &Client{
		completionsURL: completionsURL,
		modelsURL:      modelsURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		streamTransport: transport,
	}
}

func (c *Client) newRequest(ctx context.Context, apiKey string, req *ChatRequest) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	return httpReq, nil
}

// SendBlocking sends a chat-completions request with stream=false and returns
// the parsed response.
func (c *Client) SendBlocking(ctx context.Context, apiKey string, req *ChatRequest) (*Completion, error) {
	req.Stream = false
	httpReq, err := c.newRequest(ctx, apiKey, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upstream %d: %s", resp.StatusCode, string(raw))
	}

	var result Completion
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// OpenStream sends a chat-completions request with stream=true and returns a
// Stream of text chunks. A non-2xx status is reported as an error before any
// stream data is consumed.
func (c *Client) OpenStream(ctx context.Context, apiKey string, req *ChatRequest) (*Stream, error) {
	req.Stream = true

	streamCtx, cancel := context.WithCancelCause(ctx)
	httpReq, err := c.newRequest(streamCtx, apiKey, req)
	if err != nil {
		cancel(nil)
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// Use a client without timeout for streaming (context carries deadline),
	// but reuse the same transport so the proxy setting is preserved.
	streamClient := &http.Client{Transport: c.streamTransport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel(nil)
		return nil, fmt.Errorf("upstream %d: %s", resp.StatusCode, string(raw))
	}

	return newStream(resp.Body, cancel), nil
}

// SendStreaming opens a stream and returns a channel of parsed content
// fragments. The HTTP response body is closed when the channel is drained.
func (c *Client) SendStreaming(ctx context.Context, apiKey string, req *ChatRequest) (<-chan string, error) {
	stream, err := c.OpenStream(ctx, apiKey, req)
	if err != nil {
		return nil, err
	}
	return Events(stream), nil
}

// ListModels fetches the models known to the backend.
func (c *Client) ListModels(ctx context.Context, apiKey string) (*ModelList, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upstream %d: %s", resp.StatusCode, string(raw))
	}

	var result ModelList
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Resolver adapts the client's ListModels to a model-existence check, for
// callers that validate a model id against a remote gateway.
type Resolver struct {
	Client *Client
	APIKey string
}

// Resolve reports whether the backend knows the given model id.
func (r *Resolver) Resolve(ctx context.Context, id string) (bool, error) {
	list, err := r.Client.ListModels(ctx, r.APIKey)
	if err != nil {
		return false, err
	}
	for _, m := range list.Data {
		if m.ID == id {
			return true, nil
		}
	}
	return false, nil
}
