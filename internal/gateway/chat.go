package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apierrors "chatgate/internal/errors"
	"chatgate/internal/httputil"
	"chatgate/internal/models"
	"chatgate/internal/upstream"
)

// chatHandler implements the OpenAI-compatible chat completions endpoint,
// validating the requested model against the registry before forwarding
// upstream.
type chatHandler struct {
	client       *upstream.Client
	store        *models.Store
	defaultUser  string
	defaultModel string
	timeout      time.Duration
}

// ServeHTTP handles POST /v1/chat/completions.
func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds := httputil.ExtractCredentials(r, h.defaultUser)
	if creds.APIKey == "" {
		apierrors.WriteJSONError(w, http.StatusUnauthorized, "missing API key: provide X-Api-Key header or Authorization: Bearer <key>")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req upstream.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	if req.Model == "" {
		req.Model = h.defaultModel
	}
	ok, err := h.store.Resolve(ctx, req.Model)
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, "resolve model: "+err.Error())
		return
	}
	if !ok {
		apierrors.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown or inactive model %q", req.Model))
		return
	}

	if req.Stream {
		fragments, err := h.client.SendStreaming(ctx, creds.APIKey, &req)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		httputil.SetSSEHeaders(w)
		writeStreamingResponse(newFlushWriter(w), fragments, req.Model)
		return
	}

	resp, err := h.client.SendBlocking(ctx, creds.APIKey, &req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// listModels handles GET /v1/models: the active registry entries in the
// OpenAI model-list shape.
func (h *chatHandler) listModels(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.Active(r.Context())
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	list := upstream.ModelList{Object: "list", Data: []upstream.ModelInfo{}}
	for _, m := range active {
		list.Data = append(list.Data, upstream.ModelInfo{
			ID:      m.ID,
			Object:  "model",
			Created: m.CreatedAt,
			OwnedBy: "chatgate",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// writeStreamingResponse re-encodes parsed content fragments as OpenAI SSE
// chunks, terminated by the [DONE] sentinel.
func writeStreamingResponse(fw *flushWriter, fragments <-chan string, model string) error {
	id := fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
	for fragment := range fragments {
		chunk := upstream.ChunkPayload{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []upstream.ChunkChoice{
				{Index: 0, Delta: upstream.Delta{Content: fragment}},
			},
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshal chunk: %w", err)
		}
		if _, err := fmt.Fprintf(fw, "data: %s\n\n", data); err != nil {
			return err
		}
		fw.Flush()
	}
	_, err := fmt.Fprintf(fw, "data: [DONE]\n\n")
	fw.Flush()
	return err
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout") {
		apierrors.WriteJSONError(w, http.StatusGatewayTimeout, "upstream timeout")
		return
	}
	apierrors.WriteJSONError(w, http.StatusBadGateway, "upstream error: "+msg)
}
