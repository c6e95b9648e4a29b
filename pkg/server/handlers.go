package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/session"
)

// --- Presentations ---

func (s *Server) handleListPresentations(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.List()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	p, err := s.manager.Create(req.Name, req.Description)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, p)
}

func (s *Server) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.Get(r.PathValue("name"))
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleDeletePresentation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.manager.Delete(name); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.sessions.Drop(name)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDuplicatePresentation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName    string `json:"new_name"`
		CopyImages bool   `json:"copy_images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.NewName == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("new_name is required"))
		return
	}
	p, err := s.manager.Duplicate(r.PathValue("name"), req.NewName, req.CopyImages)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, p)
}

func (s *Server) handleSetAspectRatio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AspectRatio string `json:"aspect_ratio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.manager.SetAspectRatio(r.PathValue("name"), req.AspectRatio)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleSetImageStyle(w http.ResponseWriter, r *http.Request) {
	var style domain.ImageStyle
	if err := json.NewDecoder(r.Body).Decode(&style); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.manager.UpdateImageStyle(r.PathValue("name"), &style)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// --- Conversation ---

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	svc, err := s.session(r)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, svc.History())
}

// handleSendMessage accepts a user message and runs the agent turn in
// the background; clients follow progress on the event stream.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("content is required"))
		return
	}
	svc, err := s.session(r)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}

	go svc.SendMessage(context.Background(), req.Content)
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

// --- Images ---

func (s *Server) handleGenerateImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt      string `json:"prompt"`
		AspectRatio string `json:"aspect_ratio"`
		Resolution  string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Prompt == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("prompt is required"))
		return
	}
	svc, err := s.session(r)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}

	svc.GenerateImages(context.Background(), req.Prompt, req.AspectRatio, req.Resolution)
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "generating"})
}

func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index    int    `json:"index"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	svc, err := s.session(r)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}

	saved, err := svc.SelectImage(r.Context(), req.Index, req.Filename)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"path": saved})
}

// --- Files ---

// handleFile serves files from the presentation directory for the
// preview pane. Paths are confined to the presentation.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := s.manager.Get(name); err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	dir := s.manager.Dir(name)

	rel := filepath.Clean(r.PathValue("path"))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid path"))
		return
	}
	full := filepath.Join(dir, rel)
	if _, err := os.Stat(full); err != nil {
		s.errorResponse(w, http.StatusNotFound, fmt.Errorf("file not found: %s", rel))
		return
	}
	http.ServeFile(w, r, full)
}

// --- Tools ---

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.toolSpecs)
}

// session resolves the request's presentation to its live session,
// verifying the presentation exists first.
func (s *Server) session(r *http.Request) (*session.Service, error) {
	name := r.PathValue("name")
	if _, err := s.manager.Get(name); err != nil {
		return nil, fmt.Errorf("presentation %q not found", name)
	}
	return s.sessions.Get(name)
}
