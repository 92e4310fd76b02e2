// Package gateway is the HTTP surface of chatgate: the OpenAI-compatible
// chat endpoints plus the admin APIs for the model registry and log files.
package gateway

import (
	"context"
	"net/http"
	"time"

	"chatgate/internal/config"
	"chatgate/internal/logfile"
	"chatgate/internal/models"
	"chatgate/internal/upstream"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config, model registry, and log
// manager. logs may be nil when file logging is disabled entirely.
func New(cfg *config.Config, store *models.Store, logs *logfile.Manager) *Server {
	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.RequestTimeout, cfg.UpstreamProxy)

	chat := &chatHandler{
		client:       client,
		store:        store,
		defaultUser:  cfg.DefaultUser,
		defaultModel: cfg.DefaultModel,
		timeout:      cfg.RequestTimeout,
	}
	modelsAPI := &modelsHandler{store: store}
	logsAPI := &logsHandler{manager: logs}

	mux := http.NewServeMux()

	mux.Handle("POST /v1/chat/completions", chat)
	mux.HandleFunc("GET /v1/models", chat.listModels)

	mux.HandleFunc("GET /api/models", modelsAPI.search)
	mux.HandleFunc("POST /api/models", modelsAPI.create)
	mux.HandleFunc("GET /api/models/tags", modelsAPI.tags)
	mux.HandleFunc("GET /api/models/{id}", modelsAPI.get)
	mux.HandleFunc("PUT /api/models/{id}", modelsAPI.update)
	mux.HandleFunc("DELETE /api/models/{id}", modelsAPI.delete)
	mux.HandleFunc("POST /api/models/{id}/toggle", modelsAPI.toggle)

	mux.HandleFunc("GET /api/logs", logsAPI.info)
	mux.HandleFunc("GET /api/logs/settings", logsAPI.settings)
	mux.HandleFunc("POST /api/logs/settings", logsAPI.updateSettings)
	mux.HandleFunc("GET /api/logs/files", logsAPI.files)
	mux.HandleFunc("GET /api/logs/content", logsAPI.content)
	mux.HandleFunc("POST /api/logs/clear", logsAPI.clear)
	mux.HandleFunc("DELETE /api/logs/files/{index}", logsAPI.deleteBackup)

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.RequestTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
