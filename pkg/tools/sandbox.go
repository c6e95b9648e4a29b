package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/deckbot-ai/deckbot/pkg/deck"
	"github.com/deckbot-ai/deckbot/pkg/imagegen"
)

// Mode selects how generate_image behaves. The mode is fixed at
// construction time rather than inferred from which hooks happen to be
// registered.
type Mode int

const (
	// ModeSynchronous generates candidates inline and prompts for a
	// selection on the console before returning.
	ModeSynchronous Mode = iota
	// ModeInteractive registers the request with the session service and
	// returns immediately with a wait instruction for the model.
	ModeInteractive
)

// WaitSentinel is returned by generate_image in interactive mode. The
// model is instructed to hold off referencing the image until the
// selection notification arrives.
const WaitSentinel = "WAIT: Image generation started. The system is generating 4 candidates for the user to choose from. DO NOT proceed with incorporating the image yet. Wait for a [SYSTEM] message that tells you which image the user selected and its filename."

// GenerateRequestFunc receives interactive-mode image requests. It must
// not block; generation runs in the background and results arrive as
// broker events.
type GenerateRequestFunc func(prompt, aspectRatio, resolution string)

// SelectFunc prompts the user to pick a candidate index in synchronous
// mode. A negative index cancels.
type SelectFunc func(candidates []string) int

// SlideInspector is the optional visual QA collaborator.
type SlideInspector interface {
	// CheckSlide inspects a rendered slide. hasIssues=false with an empty
	// or informational report means the slide passed.
	CheckSlide(ctx context.Context, presentationDir string, slideNumber int) (hasIssues bool, report string, err error)
}

// Sandbox executes the tool catalog for exactly one presentation,
// confining every path inside that presentation's directory. Operations
// return human-readable strings; data-level failures come back as
// "Error: ..." strings, never as Go errors, because the model consumes
// tool results as conversational data it can react to.
type Sandbox struct {
	name     string
	dir      string
	mode     Mode
	manager  *deck.Manager
	compiler deck.Compiler

	generator imagegen.Generator
	inspector SlideInspector

	onGenerateRequest GenerateRequestFunc
	selectCandidate   SelectFunc
	onUpdated         func()
}

// SandboxConfig wires a Sandbox's collaborators.
type SandboxConfig struct {
	Presentation string
	Mode         Mode
	Manager      *deck.Manager
	Compiler     deck.Compiler
	Generator    imagegen.Generator
	Inspector    SlideInspector

	// OnGenerateRequest is required in ModeInteractive.
	OnGenerateRequest GenerateRequestFunc
	// SelectCandidate is required in ModeSynchronous.
	SelectCandidate SelectFunc
	// OnUpdated is invoked after every successful recompile.
	OnUpdated func()
}

// NewSandbox creates a sandbox rooted at the presentation's directory.
func NewSandbox(cfg SandboxConfig) *Sandbox {
	return &Sandbox{
		name:              cfg.Presentation,
		dir:               cfg.Manager.Dir(cfg.Presentation),
		mode:              cfg.Mode,
		manager:           cfg.Manager,
		compiler:          cfg.Compiler,
		generator:         cfg.Generator,
		inspector:         cfg.Inspector,
		onGenerateRequest: cfg.OnGenerateRequest,
		selectCandidate:   cfg.SelectCandidate,
		onUpdated:         cfg.OnUpdated,
	}
}

// Dir returns the presentation directory the sandbox is confined to.
func (s *Sandbox) Dir() string { return s.dir }

// resolve confines a relative path to the presentation directory.
func (s *Sandbox) resolve(rel string) (string, bool) {
	abs, err := filepath.Abs(filepath.Join(s.dir, rel))
	if err != nil {
		return "", false
	}
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return "", false
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// ListFiles lists entries under directory (default the presentation
// root), newest first.
func (s *Sandbox) ListFiles(directory string) string {
	path, ok := s.resolve(directory)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "Presentation directory does not exist."
		}
		return fmt.Sprintf("Error listing files: %v", err)
	}

	type entry struct {
		name    string
		modTime int64
	}
	var files []entry
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		files = append(files, entry{name, info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return strings.Join(names, "\n")
}

// ReadFile returns a file's full text.
func (s *Sandbox) ReadFile(filename string) string {
	path, ok := s.resolve(filename)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File '%s' not found.", filename)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}
	return string(data)
}

// WriteFile overwrites a file. Writes to the canonical deck file are
// validated first and rejected whole on failure; the prior content stays
// untouched.
func (s *Sandbox) WriteFile(ctx context.Context, filename, content string) string {
	path, ok := s.resolve(filename)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	if _, err := os.Stat(s.dir); err != nil {
		return "Presentation directory does not exist."
	}

	if filepath.Base(path) == deck.CanonicalFile {
		if result := deck.Validate(content); !result.Valid {
			return fmt.Sprintf("Error: Invalid deck structure. %s The file was NOT modified.", result.Error)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully wrote to %s", filename))
}

// ReplaceText performs an exact substring replacement in a file. The old
// text must be present; deck writes revalidate the result before it
// lands.
func (s *Sandbox) ReplaceText(ctx context.Context, filename, oldText, newText string) string {
	path, ok := s.resolve(filename)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File '%s' not found.", filename)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, oldText) {
		return fmt.Sprintf("Error: Text to replace not found in '%s'. No changes made.", filename)
	}
	updated := strings.ReplaceAll(content, oldText, newText)

	if filepath.Base(path) == deck.CanonicalFile {
		if result := deck.Validate(updated); !result.Valid {
			return fmt.Sprintf("Error: Invalid deck structure after replacement. %s The file was NOT modified.", result.Error)
		}
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully replaced text in %s", filename))
}

// CopyFile copies a file within the presentation directory.
func (s *Sandbox) CopyFile(ctx context.Context, source, destination string) string {
	src, ok := s.resolve(source)
	if !ok {
		return "Error: Source path outside presentation directory."
	}
	dst, ok := s.resolve(destination)
	if !ok {
		return "Error: Destination path outside presentation directory."
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: Source file '%s' not found.", source)
		}
		return fmt.Sprintf("Error copying file: %v", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Sprintf("Error copying file: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully copied '%s' to '%s'", source, destination))
}

// MoveFile moves or renames a file within the presentation directory.
func (s *Sandbox) MoveFile(ctx context.Context, source, destination string) string {
	src, ok := s.resolve(source)
	if !ok {
		return "Error: Source path outside presentation directory."
	}
	dst, ok := s.resolve(destination)
	if !ok {
		return "Error: Destination path outside presentation directory."
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Sprintf("Error: Source file '%s' not found.", source)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Sprintf("Error moving file: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully moved '%s' to '%s'", source, destination))
}

// DeleteFile removes a file or directory tree.
func (s *Sandbox) DeleteFile(ctx context.Context, filename string) string {
	path, ok := s.resolve(filename)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	if path == s.dir {
		return "Error: Cannot delete the presentation directory itself."
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Error: File '%s' not found.", filename)
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Sprintf("Error deleting file: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully deleted '%s'", filename))
}

// CreateDirectory creates a subdirectory within the presentation.
func (s *Sandbox) CreateDirectory(ctx context.Context, dirname string) string {
	path, ok := s.resolve(dirname)
	if !ok {
		return "Error: Path outside presentation directory."
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Sprintf("Error creating directory: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Successfully created directory '%s'", dirname))
}

// GenerateImage starts an image generation request. In interactive mode
// it registers the request and returns the wait sentinel without
// blocking; in synchronous mode it runs the full generate-select-save
// cycle inline.
func (s *Sandbox) GenerateImage(ctx context.Context, prompt, aspectRatio, resolution string) string {
	if aspectRatio == "" {
		aspectRatio = s.manager.AspectRatio(s.name)
	}
	if resolution == "" {
		resolution = "2K"
	}

	if s.mode == ModeInteractive {
		if s.onGenerateRequest == nil {
			return "Error: Image generation is not available in this session."
		}
		s.onGenerateRequest(prompt, aspectRatio, resolution)
		return WaitSentinel
	}

	if s.generator == nil {
		return "Error: Image generation is not available in this session."
	}

	req := imagegen.Request{
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		Resolution:  resolution,
		StylePrompt: s.stylePrompt(),
	}
	batch, err := s.generator.GenerateCandidates(ctx, req, nil)
	if err != nil {
		return fmt.Sprintf("Error generating images: %v", err)
	}

	if s.selectCandidate == nil {
		return "Error: No selection prompt available for synchronous image generation."
	}
	index := s.selectCandidate(batch.Candidates)
	if index < 0 {
		return "Image selection cancelled."
	}
	if index >= len(batch.Candidates) {
		return fmt.Sprintf("Error: Invalid selection index %d.", index)
	}

	filename := fmt.Sprintf("image_%d.png", index+1)
	saved, err := imagegen.SaveSelection(batch.Candidates, index, filepath.Join(s.dir, "images"), filename)
	if err != nil {
		return fmt.Sprintf("Error saving selection: %v", err)
	}
	rel, err := filepath.Rel(s.dir, saved)
	if err != nil {
		rel = saved
	}
	return fmt.Sprintf("Image generated and saved to %s. You can now reference it in the presentation.", rel)
}

// CompilePresentation builds the deck. Compiler failures come back as
// strings so the model can react to them in-context.
func (s *Sandbox) CompilePresentation(ctx context.Context, slideNumber int) string {
	if err := s.compiler.Compile(ctx, s.dir); err != nil {
		return fmt.Sprintf("Error compiling: %v", err)
	}
	if s.onUpdated != nil {
		s.onUpdated()
	}
	if slideNumber > 0 {
		return fmt.Sprintf("Compilation successful. Presentation opened at slide %d.", slideNumber)
	}
	return "Compilation successful."
}

// ExportPDF exports the deck to a PDF named after the presentation.
func (s *Sandbox) ExportPDF(ctx context.Context) string {
	safe := strings.Trim(nonFilename.ReplaceAllString(s.name, "_"), "_ ")
	if safe == "" {
		safe = "presentation"
	}
	filename := safe + ".pdf"
	if err := s.compiler.ExportPDF(ctx, s.dir, filename); err != nil {
		return fmt.Sprintf("Error exporting PDF: %v. Make sure Chrome/Chromium is installed.", err)
	}
	return fmt.Sprintf("PDF export successful. Saved to %s", filepath.Join(s.dir, filename))
}

// InspectSlide runs the optional visual inspection collaborator. A
// broken inspector never breaks editing: failures degrade to an empty
// report.
func (s *Sandbox) InspectSlide(ctx context.Context, slideNumber int) string {
	if s.inspector == nil {
		return ""
	}
	hasIssues, report, err := s.inspector.CheckSlide(ctx, s.dir, slideNumber)
	if err != nil {
		// Logged by the inspector; not surfaced to the model.
		return ""
	}
	if !hasIssues {
		return ""
	}
	return report
}

// GetPresentationSummary summarizes every markdown file's title, images,
// and first line of text so the model can orient without reading
// everything.
func (s *Sandbox) GetPresentationSummary() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "Presentation directory does not exist."
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "Presentation is empty."
	}

	var summary []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			summary = append(summary, fmt.Sprintf("File: %s (Error reading: %v)", name, err))
			continue
		}

		title := "Untitled Slide"
		var images []string
		preview := ""
		for _, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "# ") && title == "Untitled Slide":
				title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			case strings.HasPrefix(trimmed, "!["):
				images = append(images, trimmed)
			case trimmed != "" && !strings.HasPrefix(line, "#") && preview == "":
				if len(trimmed) > 50 {
					trimmed = trimmed[:50]
				}
				preview = trimmed + "..."
			}
		}

		summary = append(summary, "File: "+name, "  Title: "+title)
		if len(images) > 0 {
			summary = append(summary, "  Images: "+strings.Join(images, ", "))
		}
		if preview != "" {
			summary = append(summary, "  Content: "+preview)
		}
		summary = append(summary, "")
	}
	return strings.Join(summary, "\n")
}

// GetAspectRatio returns the presentation's configured aspect ratio.
func (s *Sandbox) GetAspectRatio() string {
	return s.manager.AspectRatio(s.name)
}

// SetAspectRatio updates the aspect ratio in metadata and the deck front
// matter, then recompiles.
func (s *Sandbox) SetAspectRatio(ctx context.Context, ratio string) string {
	if _, err := s.manager.SetAspectRatio(s.name, ratio); err != nil {
		return fmt.Sprintf("Error setting aspect ratio: %v", err)
	}
	return s.withRecompile(ctx, fmt.Sprintf("Aspect ratio set to %s", ratio))
}

// FullContext reads every markdown file into a single prompt section.
// Consumed by the agent's per-turn system prompt rebuild.
func (s *Sandbox) FullContext() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "Presentation directory empty."
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "No markdown files found in presentation."
	}

	var b strings.Builder
	b.WriteString("## Presentation Files\n\n")
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "### %s\n```markdown\n%s\n```\n\n", name, string(data))
	}
	return b.String()
}

// stylePrompt reads the presentation's image style guidance, if any.
func (s *Sandbox) stylePrompt() string {
	return s.manager.ImageStylePrompt(s.name)
}

// withRecompile triggers a best-effort recompilation after a successful
// mutation. Compile failures degrade to a warning on the success message;
// the mutation itself is never rolled back.
func (s *Sandbox) withRecompile(ctx context.Context, success string) string {
	if s.compiler == nil {
		return success
	}
	if err := s.compiler.Compile(ctx, s.dir); err != nil {
		return fmt.Sprintf("%s (Warning: compilation failed: %v)", success, err)
	}
	if s.onUpdated != nil {
		s.onUpdated()
	}
	return success
}

var nonFilename = regexp.MustCompile(`[^a-zA-Z0-9 _-]+`)
