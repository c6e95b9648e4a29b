package deck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Compiler turns a presentation's Marp source into HTML. It is an
// interface so the sandbox and session tests can stub the external CLI.
type Compiler interface {
	// Compile builds deck.marp.md into deck.marp.html inside dir.
	// Compiler failures come back as errors; callers decide whether they
	// are fatal or merely warnings.
	Compile(ctx context.Context, dir string) error

	// ExportPDF builds the deck into the named PDF file inside dir.
	ExportPDF(ctx context.Context, dir, filename string) error
}

// MarpCompiler shells out to the Marp CLI.
type MarpCompiler struct {
	// Timeout bounds one compiler run. Zero means a 60s default.
	Timeout time.Duration
}

var _ Compiler = (*MarpCompiler)(nil)

func (c *MarpCompiler) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}

// Compile runs the Marp CLI and post-processes the HTML so each slide
// carries a stable id anchor.
func (c *MarpCompiler) Compile(ctx context.Context, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "npx", "@marp-team/marp-cli", CanonicalFile, "--allow-local-files")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("marp: %v: %s", err, strings.TrimSpace(string(out)))
	}

	htmlPath := filepath.Join(dir, "deck.marp.html")
	if err := AnchorSlides(htmlPath); err != nil {
		return fmt.Errorf("anchoring slides: %w", err)
	}
	return nil
}

// ExportPDF runs the Marp CLI in PDF mode. Requires Chrome/Chromium on
// the host.
func (c *MarpCompiler) ExportPDF(ctx context.Context, dir, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "npx", "@marp-team/marp-cli", CanonicalFile,
		"--pdf", "--allow-local-files", "-o", filename)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("marp pdf: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

var sectionPattern = regexp.MustCompile(`<section([^>]*?)>`)
var idAttrPattern = regexp.MustCompile(`\sid="[^"]*"`)

// AnchorSlides rewrites the compiled HTML so the Nth slide section has
// id="slide-N". Marp emits its own ids; they are replaced so navigation
// targets stay stable across recompiles.
func AnchorSlides(htmlPath string) error {
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}

	n := 0
	out := sectionPattern.ReplaceAllStringFunc(string(data), func(tag string) string {
		n++
		attrs := sectionPattern.FindStringSubmatch(tag)[1]
		attrs = idAttrPattern.ReplaceAllString(attrs, "")
		return fmt.Sprintf(`<section id="slide-%d"%s>`, n, attrs)
	})

	return os.WriteFile(htmlPath, []byte(out), 0644)
}
