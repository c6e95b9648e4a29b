// Package server exposes the REST API, server-sent event stream, and
// chat websocket for the web UI.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/deckbot-ai/deckbot/pkg/deck"
	"github.com/deckbot-ai/deckbot/pkg/llm"
	"github.com/deckbot-ai/deckbot/pkg/session"
)

// Server serves the presentation API.
type Server struct {
	manager   *deck.Manager
	sessions  *session.Registry
	toolSpecs []llm.ToolSpec
	srv       *http.Server
}

// New creates a Server.
func New(manager *deck.Manager, sessions *session.Registry, toolSpecs []llm.ToolSpec) *Server {
	return &Server{
		manager:   manager,
		sessions:  sessions,
		toolSpecs: toolSpecs,
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Handler builds the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Presentation routes
	mux.HandleFunc("GET /api/presentations", s.handleListPresentations)
	mux.HandleFunc("POST /api/presentations", s.handleCreatePresentation)
	mux.HandleFunc("GET /api/presentations/{name}", s.handleGetPresentation)
	mux.HandleFunc("DELETE /api/presentations/{name}", s.handleDeletePresentation)
	mux.HandleFunc("POST /api/presentations/{name}/duplicate", s.handleDuplicatePresentation)
	mux.HandleFunc("PUT /api/presentations/{name}/aspect-ratio", s.handleSetAspectRatio)
	mux.HandleFunc("PUT /api/presentations/{name}/image-style", s.handleSetImageStyle)

	// Conversation
	mux.HandleFunc("GET /api/presentations/{name}/history", s.handleGetHistory)
	mux.HandleFunc("POST /api/presentations/{name}/message", s.handleSendMessage)

	// Image selection
	mux.HandleFunc("POST /api/presentations/{name}/generate-images", s.handleGenerateImages)
	mux.HandleFunc("POST /api/presentations/{name}/select-image", s.handleSelectImage)

	// Event stream + chat socket
	mux.HandleFunc("GET /api/presentations/{name}/events", s.handleEvents)
	mux.HandleFunc("/api/presentations/{name}/chat", s.handleChatWebSocket)

	// Compiled deck and images for the preview pane
	mux.HandleFunc("GET /api/presentations/{name}/files/{path...}", s.handleFile)

	// Tools
	mux.HandleFunc("GET /api/tools", s.handleListTools)

	return s.corsMiddleware(mux)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
