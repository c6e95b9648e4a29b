package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RootDir resolves the presentations root directory. Priority order:
// the DECKBOT_ROOT environment variable, a local ./presentations folder,
// then ~/.deckbot.
func RootDir() string {
	if root := os.Getenv("DECKBOT_ROOT"); root != "" {
		return root
	}
	if local, err := filepath.Abs("presentations"); err == nil {
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deckbot"
	}
	return filepath.Join(home, ".deckbot")
}

// APIKey returns the Gemini API key from the environment. GOOGLE_API_KEY
// is preferred; GEMINI_API_KEY is accepted for backwards compatibility.
func APIKey() string {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}

// Preferences is the user preference store backed by a .deckbot.yaml
// dotfile. Preferences are configuration only; per-presentation state
// lives with each presentation.
type Preferences struct {
	v    *viper.Viper
	path string
}

// Defaults applied when the dotfile does not exist yet.
var prefDefaults = map[string]any{
	"theme":              "system",
	"default_model":      "",
	"image.aspect_ratio": "1:1",
	"image.resolution":   "2K",
}

// LoadPreferences reads (or creates) the preferences file at path. An
// empty path defaults to .deckbot.yaml in the working directory.
func LoadPreferences(path string) (*Preferences, error) {
	if path == "" {
		path = ".deckbot.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, val := range prefDefaults {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading preferences: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("creating preferences file: %w", err)
		}
	}

	return &Preferences{v: v, path: path}, nil
}

// Get returns a preference value, or def when unset.
func (p *Preferences) Get(key string, def string) string {
	if !p.v.IsSet(key) {
		return def
	}
	val := p.v.GetString(key)
	if val == "" {
		return def
	}
	return val
}

// Set updates a preference and persists the file.
func (p *Preferences) Set(key string, value any) error {
	p.v.Set(key, value)
	return p.v.WriteConfigAs(p.path)
}

// All returns every stored preference.
func (p *Preferences) All() map[string]any {
	return p.v.AllSettings()
}
