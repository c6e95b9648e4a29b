package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/imagegen"
)

// Chatter is the conversational agent the service drives. *agent.Agent
// satisfies it; tests substitute stubs.
type Chatter interface {
	Chat(ctx context.Context, input string) (string, error)
	History() []domain.Turn
}

// Service ties one presentation's agent, image generator, and event
// broker together. It owns the single pending candidate batch and the
// image-selection state machine.
type Service struct {
	name        string
	broker      *Broker
	agent       Chatter
	generator   imagegen.Generator
	imagesDir   string
	stylePrompt func() string
	logger      *slog.Logger

	// UpdateDelay is the pause before presentation_updated fires after a
	// selection, giving the agent time to incorporate the image. Tests
	// set it to zero.
	UpdateDelay time.Duration

	mu      sync.Mutex
	pending *domain.Batch
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Name      string
	Broker    *Broker
	Agent     Chatter
	Generator imagegen.Generator
	// ImagesDir is where selected images are persisted, normally
	// <presentation>/images.
	ImagesDir string
	// StylePrompt supplies the presentation's brand image guidance,
	// re-read on every generation request. Nil means no guidance.
	StylePrompt func() string
	Logger      *slog.Logger
}

// NewService creates a session service for one presentation.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		name:        cfg.Name,
		broker:      cfg.Broker,
		agent:       cfg.Agent,
		generator:   cfg.Generator,
		imagesDir:   cfg.ImagesDir,
		stylePrompt: cfg.StylePrompt,
		logger:      logger,
		UpdateDelay: 2 * time.Second,
	}
}

// Broker returns the service's event broker.
func (s *Service) Broker() *Broker { return s.broker }

// History returns the conversation so far.
func (s *Service) History() []domain.Turn { return s.agent.History() }

// SendMessage runs one user message through the agent. thinking_start
// and thinking_end bracket the turn unconditionally; failures surface
// as error events carrying only the message text.
func (s *Service) SendMessage(ctx context.Context, content string) (string, error) {
	s.broker.Emit(domain.EventThinkingStart, nil)
	defer s.broker.Emit(domain.EventThinkingEnd, nil)

	reply, err := s.agent.Chat(ctx, content)
	if err != nil {
		s.logger.Error("chat turn failed", "presentation", s.name, "error", err)
		s.broker.Emit(domain.EventError, domain.ErrorPayload{Message: err.Error()})
		return "", err
	}

	if reply != "" {
		s.broker.Emit(domain.EventMessage, domain.MessagePayload{
			Role:    domain.RoleModel,
			Content: reply,
		})
	}
	return reply, nil
}

// GenerateImages starts candidate generation in the background and
// returns immediately. Progress and completion arrive as broker events;
// a completed batch replaces any batch still pending selection.
func (s *Service) GenerateImages(ctx context.Context, prompt, aspectRatio, resolution string) {
	s.broker.Emit(domain.EventGeneratingImagesStart, map[string]string{"prompt": prompt})

	go func() {
		req := imagegen.Request{
			Prompt:      prompt,
			AspectRatio: aspectRatio,
			Resolution:  resolution,
		}
		if s.stylePrompt != nil {
			req.StylePrompt = s.stylePrompt()
		}
		batch, err := s.generator.GenerateCandidates(ctx, req, func(current, total int, status string, candidates []string) {
			s.broker.Emit(domain.EventImageProgress, domain.ImageProgressPayload{
				Current:    current,
				Total:      total,
				Status:     status,
				Candidates: candidates,
			})
		})
		if err != nil {
			s.logger.Error("image generation failed", "presentation", s.name, "error", err)
			s.broker.Emit(domain.EventError, domain.ErrorPayload{
				Message: fmt.Sprintf("Image generation failed: %v", err),
			})
			return
		}

		s.mu.Lock()
		s.pending = batch
		s.mu.Unlock()

		s.broker.Emit(domain.EventImagesReady, domain.ImagesReadyPayload{
			Candidates: batch.Candidates,
			Prompt:     batch.Prompt,
			BatchSlug:  batch.Slug,
		})
	}()
}

// PendingBatch returns the batch awaiting selection, or nil.
func (s *Service) PendingBatch() *domain.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SelectImage persists the chosen candidate and notifies the agent. An
// empty filename derives one from the batch prompt. An out-of-range
// index or a missing batch returns an error without emitting events or
// changing state; a valid selection consumes the batch, so a second
// selection from the same batch fails.
func (s *Service) SelectImage(ctx context.Context, index int, filename string) (string, error) {
	s.mu.Lock()
	batch := s.pending
	if batch == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("no image batch pending selection")
	}
	if index < 0 || index >= len(batch.Candidates) {
		s.mu.Unlock()
		return "", fmt.Errorf("selection index %d out of range [0,%d)", index, len(batch.Candidates))
	}
	s.pending = nil
	s.mu.Unlock()

	if filename == "" {
		filename = s.selectionFilename(batch.Prompt)
	}
	saved, err := imagegen.SaveSelection(batch.Candidates, index, s.imagesDir, filename)
	if err != nil {
		// The batch is gone either way; the drafts stay on disk for
		// manual recovery.
		s.broker.Emit(domain.EventError, domain.ErrorPayload{
			Message: fmt.Sprintf("Saving selected image failed: %v", err),
		})
		return "", err
	}

	s.broker.Emit(domain.EventImageSelected, domain.ImageSelectedPayload{
		Path:     saved,
		Filename: filename,
	})

	go s.notifySelection(filename)
	return saved, nil
}

// notifySelection tells the agent about the selection through the normal
// chat path, then announces the refreshed presentation after a short
// grace period for the agent's edits.
func (s *Service) notifySelection(filename string) {
	msg := fmt.Sprintf("[SYSTEM] User selected an image. It has been saved to `images/%s`. Please incorporate this image into the presentation.", filename)
	if _, err := s.SendMessage(context.Background(), msg); err != nil {
		s.logger.Error("selection notification turn failed", "presentation", s.name, "error", err)
		return
	}
	if s.UpdateDelay > 0 {
		time.Sleep(s.UpdateDelay)
	}
	s.broker.Emit(domain.EventPresentationUpdated, map[string]string{"name": s.name})
}

var filenameClean = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// selectionFilename derives a stable image filename from the prompt and
// picks the first numeric suffix not already taken in the images dir.
func (s *Service) selectionFilename(prompt string) string {
	base := strings.Trim(filenameClean.ReplaceAllString(strings.ToLower(prompt), "_"), "_")
	if len(base) > 20 {
		base = strings.Trim(base[:20], "_")
	}
	if base == "" {
		base = "image"
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_%d.png", base, n)
		if _, err := os.Stat(filepath.Join(s.imagesDir, name)); os.IsNotExist(err) {
			return name
		}
	}
}
