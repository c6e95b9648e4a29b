package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestCreateScaffoldsPresentation(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Create("launch-deck", "Q3 launch")
	require.NoError(t, err)
	require.Equal(t, "launch-deck", p.Name)
	require.Equal(t, DefaultAspectRatio, p.AspectRatio)

	dir := m.Dir("launch-deck")
	deckContent, err := os.ReadFile(filepath.Join(dir, CanonicalFile))
	require.NoError(t, err)
	require.Contains(t, string(deckContent), "marp: true")
	require.Contains(t, string(deckContent), "size: "+DefaultAspectRatio)
	require.Contains(t, string(deckContent), "# launch-deck")

	require.DirExists(t, filepath.Join(dir, "images"))
	require.FileExists(t, filepath.Join(dir, MetadataFile))
}

func TestCreateRejectsDuplicate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("deck", "")
	require.NoError(t, err)

	_, err = m.Create("deck", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestGetDirectoryNameWins(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("original", "")
	require.NoError(t, err)

	// Simulate an on-disk rename: metadata still says "original".
	require.NoError(t, os.Rename(m.Dir("original"), m.Dir("renamed")))

	p, err := m.Get("renamed")
	require.NoError(t, err)
	require.Equal(t, "renamed", p.Name)
}

func TestGetMissing(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Get("nope")
	require.Error(t, err)
}

func TestListSkipsBrokenDirs(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("a", "")
	require.NoError(t, err)
	_, err = m.Create("b", "")
	require.NoError(t, err)

	// A directory without metadata is not a presentation.
	require.NoError(t, os.MkdirAll(filepath.Join(m.RootDir(), "stray"), 0755))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("doomed", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete("doomed"))
	require.NoDirExists(t, m.Dir("doomed"))

	require.Error(t, m.Delete("doomed"))
}

func TestDuplicate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("src", "the source")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir("src"), "images", "hero.png"), []byte("png"), 0644))

	copy, err := m.Duplicate("src", "copy", true)
	require.NoError(t, err)
	require.Equal(t, "copy", copy.Name)
	require.FileExists(t, filepath.Join(m.Dir("copy"), "images", "hero.png"))

	bare, err := m.Duplicate("src", "bare", false)
	require.NoError(t, err)
	require.Equal(t, "bare", bare.Name)
	require.NoFileExists(t, filepath.Join(m.Dir("bare"), "images", "hero.png"))
}

func TestSetAspectRatioRewritesFrontMatter(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("deck", "")
	require.NoError(t, err)

	p, err := m.SetAspectRatio("deck", "16:9")
	require.NoError(t, err)
	require.Equal(t, "16:9", p.AspectRatio)

	content, err := os.ReadFile(filepath.Join(m.Dir("deck"), CanonicalFile))
	require.NoError(t, err)
	require.Contains(t, string(content), "size: 16:9")
	require.NotContains(t, string(content), "size: 4:3")

	require.Equal(t, "16:9", m.AspectRatio("deck"))
}

func TestSetAspectRatioInsertsWhenMissing(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("deck", "")
	require.NoError(t, err)

	deckPath := filepath.Join(m.Dir("deck"), CanonicalFile)
	require.NoError(t, os.WriteFile(deckPath, []byte("---\nmarp: true\n---\n\n# Slide\n"), 0644))

	_, err = m.SetAspectRatio("deck", "16:9")
	require.NoError(t, err)

	content, err := os.ReadFile(deckPath)
	require.NoError(t, err)
	require.Contains(t, string(content), "marp: true\nsize: 16:9")
}

func TestUpdateImageStyle(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("deck", "")
	require.NoError(t, err)

	_, err = m.UpdateImageStyle("deck", &domain.ImageStyle{Prompt: "flat pastel illustrations"})
	require.NoError(t, err)

	p, err := m.Get("deck")
	require.NoError(t, err)
	require.NotNil(t, p.ImageStyle)
	require.Equal(t, "flat pastel illustrations", p.ImageStyle.Prompt)
}

func TestImageStylePrompt(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("deck", "")
	require.NoError(t, err)

	require.Equal(t, "", m.ImageStylePrompt("deck"))
	require.Equal(t, "", m.ImageStylePrompt("ghost"))

	_, err = m.UpdateImageStyle("deck", &domain.ImageStyle{Prompt: "bold monochrome icons"})
	require.NoError(t, err)
	require.Equal(t, "bold monochrome icons", m.ImageStylePrompt("deck"))
}

func TestAspectRatioDefaultsWhenMissing(t *testing.T) {
	m := newTestManager(t)
	require.Equal(t, DefaultAspectRatio, m.AspectRatio("ghost"))
}
