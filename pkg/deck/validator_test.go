package deck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateValidDeck(t *testing.T) {
	content := `---
marp: true
size: 4:3
---

# Intro

Welcome

---

# Details

![diagram](images/diagram.png)
`
	result := Validate(content)
	require.True(t, result.Valid)
	require.Empty(t, result.Error)
	require.Contains(t, result.Summary, "Total Slides: 2")
	require.Contains(t, result.Summary, "Slide 1: Title='Intro', Images=0")
	require.Contains(t, result.Summary, "Slide 2: Title='Details', Images=1")
}

func TestValidateUnclosedFrontMatter(t *testing.T) {
	content := "---\nmarp: true\n\n# Slide without closing delimiter\n"
	result := Validate(content)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "Frontmatter not closed")
}

func TestValidateBadYAML(t *testing.T) {
	content := "---\nmarp: [unclosed\n---\n\n# Slide\n"
	result := Validate(content)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "Invalid YAML frontmatter")
}

func TestValidateNoFrontMatter(t *testing.T) {
	result := Validate("# Just a slide\n\nSome text\n")
	require.True(t, result.Valid)
	require.Contains(t, result.Summary, "Total Slides: 1")
}

func TestValidateEmpty(t *testing.T) {
	result := Validate("")
	require.True(t, result.Valid)
	require.Equal(t, "Empty file", result.Summary)
}

func TestValidateCountsHTMLImages(t *testing.T) {
	content := `# Slide

<img src="images/a.png" width="300">
![b](images/b.png)
`
	result := Validate(content)
	require.True(t, result.Valid)
	require.Contains(t, result.Summary, "Images=2")
}

func TestValidateUntitledSlide(t *testing.T) {
	result := Validate("just text, no heading\n")
	require.True(t, result.Valid)
	require.True(t, strings.Contains(result.Summary, "Title='No Title'"))
}
