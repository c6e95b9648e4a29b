package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

// DefaultImageModel is the Gemini image generation model.
const DefaultImageModel = "gemini-3-pro-image-preview"

// PlaceholderMarker is written into fallback candidates so downstream
// consumers can tell a failed generation from a real image.
const PlaceholderMarker = "deckbot-placeholder-image"

// aspectPhrases translates ratio identifiers into prompt instructions the
// image model follows reliably.
var aspectPhrases = map[string]string{
	"1:1":  "square image (1:1 aspect ratio)",
	"16:9": "wide landscape image (16:9 aspect ratio)",
	"9:16": "tall portrait image (9:16 aspect ratio)",
	"4:3":  "landscape image (4:3 aspect ratio)",
	"3:4":  "portrait image (3:4 aspect ratio)",
	"3:2":  "landscape image (3:2 aspect ratio)",
	"2:3":  "portrait image (2:3 aspect ratio)",
	"21:9": "ultra-wide image (21:9 aspect ratio)",
}

// GeminiGenerator implements Generator against the Gemini image model.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	draftsDir string

	// Pause between candidates to stay under provider rate limits.
	Interval time.Duration
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator writing batches under draftsDir.
// A nil client is allowed: every candidate becomes a placeholder, which
// keeps offline and test environments working end to end.
func NewGeminiGenerator(client *genai.Client, draftsDir string) *GeminiGenerator {
	return &GeminiGenerator{
		client:    client,
		model:     DefaultImageModel,
		draftsDir: draftsDir,
		Interval:  time.Second,
	}
}

// GenerateCandidates produces BatchSize candidates into a fresh batch
// folder, reporting progress after each.
func (g *GeminiGenerator) GenerateCandidates(ctx context.Context, req Request, progress ProgressFunc) (*domain.Batch, error) {
	now := time.Now()
	batch := &domain.Batch{
		Slug:        BatchSlug(req.Prompt, now),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		CreatedAt:   now.UTC(),
	}

	folder := filepath.Join(g.draftsDir, batch.Slug)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("creating batch folder: %w", err)
	}

	prompt := g.buildPrompt(req)

	for i := 1; i <= BatchSize; i++ {
		if progress != nil {
			progress(i, BatchSize, fmt.Sprintf("Generating image %d/%d...", i, BatchSize), batch.Candidates)
		}

		path, err := g.generateOne(ctx, prompt, folder, i)
		if err != nil {
			slog.Warn("Image candidate failed, using placeholder", "index", i, "error", err)
			path = writePlaceholder(folder, i)
		}
		batch.Candidates = append(batch.Candidates, path)

		if progress != nil {
			progress(i, BatchSize, fmt.Sprintf("Generated image %d/%d", i, BatchSize), batch.Candidates)
		}

		if i < BatchSize && g.Interval > 0 {
			select {
			case <-ctx.Done():
				return batch, ctx.Err()
			case <-time.After(g.Interval):
			}
		}
	}

	return batch, nil
}

func (g *GeminiGenerator) buildPrompt(req Request) string {
	prompt := req.Prompt
	if req.StylePrompt != "" {
		prompt = fmt.Sprintf("%s. Style instructions: %s", prompt, req.StylePrompt)
	}

	phrase, ok := aspectPhrases[req.AspectRatio]
	if !ok {
		phrase = fmt.Sprintf("image with %s aspect ratio", req.AspectRatio)
	}
	return fmt.Sprintf("Generate a %s. %s", phrase, prompt)
}

func (g *GeminiGenerator) generateOne(ctx context.Context, prompt, folder string, index int) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("no API key configured")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				path := filepath.Join(folder, fmt.Sprintf("candidate_%d.png", index))
				if err := os.WriteFile(path, part.InlineData.Data, 0644); err != nil {
					return "", fmt.Errorf("saving candidate: %w", err)
				}
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no image in response")
}

func writePlaceholder(folder string, index int) string {
	path := filepath.Join(folder, fmt.Sprintf("candidate_%d.png", index))
	if _, err := os.Stat(path); err != nil {
		os.WriteFile(path, []byte(PlaceholderMarker), 0644)
	}
	return path
}
