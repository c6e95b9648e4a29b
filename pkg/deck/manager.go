package deck

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

// MetadataFile holds a presentation's identity and settings.
const MetadataFile = "metadata.json"

// DefaultAspectRatio applied to new presentations.
const DefaultAspectRatio = "4:3"

// Manager owns the presentations root directory and the lifecycle of
// presentation directories under it.
type Manager struct {
	rootDir string
}

// NewManager creates a Manager rooted at rootDir, creating the directory
// if needed.
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("creating root dir: %w", err)
	}
	return &Manager{rootDir: rootDir}, nil
}

// RootDir returns the presentations root directory.
func (m *Manager) RootDir() string { return m.rootDir }

// Dir returns the directory for a named presentation.
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.rootDir, name)
}

// Create scaffolds a new presentation directory with metadata and a
// default Marp deck.
func (m *Manager) Create(name, description string) (*domain.Presentation, error) {
	dir := m.Dir(name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("presentation %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating presentation dir: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Presentation{
		Name:        name,
		Description: description,
		AspectRatio: DefaultAspectRatio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.writeMetadata(dir, p); err != nil {
		return nil, err
	}

	deck := fmt.Sprintf(`---
marp: true
theme: default
size: %s
paginate: true
---

# %s

%s

---

# Slide 1

- Bullet 1
- Bullet 2
`, DefaultAspectRatio, name, description)
	if err := os.WriteFile(filepath.Join(dir, CanonicalFile), []byte(deck), 0644); err != nil {
		return nil, fmt.Errorf("writing default deck: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0755); err != nil {
		return nil, fmt.Errorf("creating images dir: %w", err)
	}

	return p, nil
}

// Get loads a presentation's metadata. Returns an error when the
// presentation does not exist.
func (m *Manager) Get(name string) (*domain.Presentation, error) {
	data, err := os.ReadFile(filepath.Join(m.Dir(name), MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("presentation not found: %s", name)
	}
	p := &domain.Presentation{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", name, err)
	}
	// The directory name wins over whatever the file claims, so renames
	// on disk do not orphan the presentation.
	p.Name = name
	return p, nil
}

// List returns all presentations sorted by creation time descending.
// Directories without metadata are skipped.
func (m *Manager) List() ([]domain.Presentation, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var presentations []domain.Presentation
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := m.Get(e.Name())
		if err != nil {
			continue
		}
		presentations = append(presentations, *p)
	}
	sort.Slice(presentations, func(i, j int) bool {
		return presentations[i].CreatedAt.After(presentations[j].CreatedAt)
	})
	return presentations, nil
}

// Delete removes a presentation directory and everything under it.
func (m *Manager) Delete(name string) error {
	dir := m.Dir(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("presentation not found: %s", name)
	}
	return os.RemoveAll(dir)
}

// Duplicate copies a presentation under a new name. Images are included
// unless copyImages is false.
func (m *Manager) Duplicate(source, newName string, copyImages bool) (*domain.Presentation, error) {
	srcDir := m.Dir(source)
	dstDir := m.Dir(newName)
	if _, err := os.Stat(srcDir); err != nil {
		return nil, fmt.Errorf("source presentation %q not found", source)
	}
	if _, err := os.Stat(dstDir); err == nil {
		return nil, fmt.Errorf("destination %q already exists", newName)
	}

	if err := copyTree(srcDir, dstDir, func(rel string) bool {
		return !copyImages && (rel == "images" || strings.HasPrefix(rel, "images"+string(filepath.Separator)))
	}); err != nil {
		return nil, err
	}

	p, err := m.Get(newName)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.Name = newName
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := m.writeMetadata(dstDir, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AspectRatio returns the presentation's aspect ratio, defaulting when
// metadata is missing.
func (m *Manager) AspectRatio(name string) string {
	p, err := m.Get(name)
	if err != nil || p.AspectRatio == "" {
		return DefaultAspectRatio
	}
	return p.AspectRatio
}

var sizeLinePattern = regexp.MustCompile(`(?m)^size:\s*.*$`)

// SetAspectRatio updates both the metadata and the deck front matter's
// size line.
func (m *Manager) SetAspectRatio(name, ratio string) (*domain.Presentation, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	p.AspectRatio = ratio
	p.UpdatedAt = time.Now().UTC()
	if err := m.writeMetadata(m.Dir(name), p); err != nil {
		return nil, err
	}

	deckPath := filepath.Join(m.Dir(name), CanonicalFile)
	data, err := os.ReadFile(deckPath)
	if err != nil {
		// No deck yet; metadata alone is fine.
		return p, nil
	}
	content := string(data)
	switch {
	case sizeLinePattern.MatchString(content):
		content = sizeLinePattern.ReplaceAllString(content, "size: "+ratio)
	case strings.Contains(content, "marp: true"):
		content = strings.Replace(content, "marp: true", "marp: true\nsize: "+ratio, 1)
	default:
		content = strings.Replace(content, "---\n", "---\nsize: "+ratio+"\n", 1)
	}
	if err := os.WriteFile(deckPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("updating deck size: %w", err)
	}
	return p, nil
}

// ImageStylePrompt returns the presentation's brand image guidance, or
// empty when none is set. Read fresh on every generation request so
// style updates apply mid-session.
func (m *Manager) ImageStylePrompt(name string) string {
	p, err := m.Get(name)
	if err != nil || p.ImageStyle == nil {
		return ""
	}
	return p.ImageStyle.Prompt
}

// UpdateImageStyle persists new image style guidance to metadata.
func (m *Manager) UpdateImageStyle(name string, style *domain.ImageStyle) (*domain.Presentation, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	p.ImageStyle = style
	p.UpdatedAt = time.Now().UTC()
	if err := m.writeMetadata(m.Dir(name), p); err != nil {
		return nil, err
	}
	return p, nil
}

// writeMetadata writes metadata.json atomically: readers never observe a
// partially written file.
func (m *Manager) writeMetadata(dir string, p *domain.Presentation) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("creating temp metadata: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, MetadataFile))
}

func copyTree(src, dst string, skip func(rel string) bool) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0755)
		}
		if skip != nil && skip(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
