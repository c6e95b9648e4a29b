package imagegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

// BatchSize is the fixed number of candidates per generation request. A
// batch never shrinks: failed candidates are padded with placeholders.
const BatchSize = 4

// ProgressFunc is invoked after every completed candidate with the
// running candidate list. current counts from 1 to total.
type ProgressFunc func(current, total int, status string, candidates []string)

// Request carries one generation request's inputs.
type Request struct {
	Prompt      string
	AspectRatio string
	Resolution  string
	// StylePrompt is free-text brand guidance merged into the prompt.
	StylePrompt string
}

// Generator produces image candidate batches. Implementations write
// candidates under the presentation's drafts directory.
type Generator interface {
	// GenerateCandidates produces exactly BatchSize candidate files and
	// reports progress as each completes. Provider failures degrade to
	// placeholder candidates; the returned batch always has BatchSize
	// entries.
	GenerateCandidates(ctx context.Context, req Request, progress ProgressFunc) (*domain.Batch, error)
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// BatchSlug derives a filesystem-safe, time-unique slug from a prompt.
func BatchSlug(prompt string, now time.Time) string {
	safe := strings.Trim(nonAlnum.ReplaceAllString(truncate(prompt, 30), "_"), "_")
	if safe == "" {
		safe = "batch"
	}
	return now.Format("2006-01-02_15-04-05") + "_" + safe
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SaveSelection copies the candidate at index into imagesDir under
// filename and returns the saved path. Candidates are copied, not moved,
// so the draft batch stays intact on disk.
func SaveSelection(candidates []string, index int, imagesDir, filename string) (string, error) {
	if index < 0 || index >= len(candidates) {
		return "", fmt.Errorf("invalid selection index %d", index)
	}
	data, err := os.ReadFile(candidates[index])
	if err != nil {
		return "", fmt.Errorf("reading candidate: %w", err)
	}
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", err
	}
	final := filepath.Join(imagesDir, filename)
	if err := os.WriteFile(final, data, 0644); err != nil {
		return "", fmt.Errorf("saving selection: %w", err)
	}
	return final, nil
}
