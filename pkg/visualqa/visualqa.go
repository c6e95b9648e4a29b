// Package visualqa renders individual slides to PNG and asks a vision
// model whether the layout has problems worth reporting to the agent.
package visualqa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/deckbot-ai/deckbot/pkg/deck"
)

// DefaultVisionModel handles slide inspection.
const DefaultVisionModel = "gemini-2.0-flash-exp"

const inspectionPrompt = `You are a presentation design reviewer. Look at this rendered slide image.

First, describe what you see on one line starting with "DESCRIPTION:".
Then give a verdict on one line starting with "VERDICT:": either "OK" if the slide looks fine, or "ISSUES" followed by a short list of concrete visual problems (text overflowing the slide, overlapping elements, unreadable contrast, broken image, severely unbalanced layout).

Only report real problems a human presenter would want fixed. Minor stylistic taste is not an issue.`

// Inspector renders slides with the Marp CLI and reviews them with a
// Gemini vision model. Any failure in the pipeline degrades to a skipped
// inspection rather than an agent-visible error.
type Inspector struct {
	client *genai.Client
	model  string
	logger *slog.Logger

	// MinInterval throttles successive vision calls.
	MinInterval time.Duration
	// MaxRetries bounds retries of a failed vision call.
	MaxRetries int
	// InitialDelay seeds the retry backoff, doubling per attempt.
	InitialDelay time.Duration
	// RenderTimeout bounds one Marp render run.
	RenderTimeout time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// New creates an inspector. A nil client disables inspection entirely.
func New(client *genai.Client, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{
		client:        client,
		model:         DefaultVisionModel,
		logger:        logger,
		MinInterval:   2 * time.Second,
		MaxRetries:    3,
		InitialDelay:  time.Second,
		RenderTimeout: 60 * time.Second,
	}
}

// CheckSlide renders slideNumber from the presentation at dir and asks
// the vision model for a verdict. hasIssues is true only when the model
// names concrete problems; rendering or model failures return err and
// the caller treats the inspection as skipped.
func (i *Inspector) CheckSlide(ctx context.Context, dir string, slideNumber int) (bool, string, error) {
	if i.client == nil {
		return false, "", fmt.Errorf("visual inspection is not configured")
	}

	image, cleanup, err := i.renderSlide(ctx, dir, slideNumber)
	if err != nil {
		return false, "", fmt.Errorf("rendering slide %d: %w", slideNumber, err)
	}
	defer cleanup()

	report, err := i.review(ctx, image)
	if err != nil {
		return false, "", fmt.Errorf("reviewing slide %d: %w", slideNumber, err)
	}

	verdict, issues := parseVerdict(report)
	if !verdict {
		return false, "", fmt.Errorf("slide %d review had no verdict", slideNumber)
	}
	if issues == "" {
		return false, "", nil
	}
	return true, issues, nil
}

// renderSlide shells out to the Marp CLI in image mode, which writes one
// PNG per slide into the output directory, and returns the requested
// slide's file.
func (i *Inspector) renderSlide(ctx context.Context, dir string, slideNumber int) (string, func(), error) {
	outDir, err := os.MkdirTemp("", "deckbot-qa-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(outDir) }

	ctx, cancel := context.WithTimeout(ctx, i.RenderTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "npx", "@marp-team/marp-cli", deck.CanonicalFile,
		"--images", "png", "--allow-local-files",
		"-o", filepath.Join(outDir, "slide.png"))
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("marp images: %v: %s", err, strings.TrimSpace(string(out)))
	}

	// Marp names multi-slide output slide.001.png, slide.002.png, ...
	// and a single-slide deck just slide.png.
	candidates := []string{
		filepath.Join(outDir, fmt.Sprintf("slide.%03d.png", slideNumber)),
		filepath.Join(outDir, "slide.png"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, cleanup, nil
		}
	}
	cleanup()
	return "", nil, fmt.Errorf("slide %d was not rendered", slideNumber)
}

// review sends the slide image to the vision model, throttled and
// retried with exponential backoff.
func (i *Inspector) review(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: inspectionPrompt},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
		},
	}}

	delay := i.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= i.MaxRetries; attempt++ {
		if attempt > 0 {
			i.logger.Warn("retrying slide review", "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}
		i.throttle(ctx)

		resp, err := i.client.Models.GenerateContent(ctx, i.model, contents, nil)
		if err != nil {
			lastErr = err
			continue
		}
		text := responseText(resp)
		if text == "" {
			lastErr = fmt.Errorf("empty vision response")
			continue
		}
		return text, nil
	}
	return "", lastErr
}

func (i *Inspector) throttle(ctx context.Context) {
	i.mu.Lock()
	wait := i.MinInterval - time.Since(i.lastCall)
	i.lastCall = time.Now().Add(wait)
	i.mu.Unlock()
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// parseVerdict extracts the VERDICT line. ok reports whether a verdict
// line was found at all; issues is empty for an "OK" verdict.
func parseVerdict(report string) (ok bool, issues string) {
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		rest, found := strings.CutPrefix(line, "VERDICT:")
		if !found {
			continue
		}
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(strings.ToUpper(rest), "OK") {
			return true, ""
		}
		issues = strings.TrimSpace(strings.TrimPrefix(rest, "ISSUES"))
		issues = strings.TrimLeft(issues, ":- ")
		if issues == "" {
			issues = "The slide has visual issues."
		}
		return true, issues
	}
	return false, ""
}
