package deck

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// CanonicalFile is the Marp source file every presentation compiles from.
const CanonicalFile = "deck.marp.md"

// ValidationResult reports whether deck content is structurally sound.
// Exactly one of Error or Summary is populated.
type ValidationResult struct {
	Valid   bool
	Error   string
	Summary string
}

var (
	h1Pattern      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	mdImagePattern = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	htmlImgPattern = regexp.MustCompile(`(?i)<img\s+[^>]*src=['"].*?['"]`)
)

// Validate checks deck content before it is written to the canonical file.
// A file that opens front matter must close it, and the front matter must
// be parseable YAML. Valid content gets a per-slide summary.
func Validate(content string) ValidationResult {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || content == "" {
		return ValidationResult{Valid: true, Summary: "Empty file"}
	}

	hasFrontMatter := strings.TrimSpace(lines[0]) == "---"
	frontMatterEnd := -1

	if hasFrontMatter {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				frontMatterEnd = i
				break
			}
		}
		if frontMatterEnd == -1 {
			return ValidationResult{
				Valid: false,
				Error: "Frontmatter not closed. The file starts with '---' but does not have a closing '---'. This will cause the configuration to be visible in the presentation.",
			}
		}

		fmText := strings.Join(lines[1:frontMatterEnd], "\n")
		var frontMatter map[string]any
		if err := yaml.Unmarshal([]byte(fmText), &frontMatter); err != nil {
			return ValidationResult{
				Valid: false,
				Error: fmt.Sprintf("Invalid YAML frontmatter: %v", err),
			}
		}
	}

	bodyStart := 0
	if hasFrontMatter {
		bodyStart = frontMatterEnd + 1
	}

	// '---' is both the front-matter delimiter and the slide separator;
	// slides begin after the front matter when one is present.
	var slides []string
	var current []string
	for _, line := range lines[bodyStart:] {
		if strings.TrimSpace(line) == "---" {
			slides = append(slides, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	slides = append(slides, strings.Join(current, "\n"))

	summary := []string{fmt.Sprintf("Total Slides: %d", len(slides))}
	for i, slide := range slides {
		title := "No Title"
		if m := h1Pattern.FindStringSubmatch(slide); m != nil {
			title = strings.TrimSpace(m[1])
		}
		images := len(mdImagePattern.FindAllString(slide, -1)) +
			len(htmlImgPattern.FindAllString(slide, -1))
		summary = append(summary, fmt.Sprintf("Slide %d: Title='%s', Images=%d", i+1, title, images))
	}

	return ValidationResult{
		Valid:   true,
		Summary: "Summary:\n" + strings.Join(summary, "\n"),
	}
}
