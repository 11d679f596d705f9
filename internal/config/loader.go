package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DevVersion marks builds that also read ./.captionkitrc.
const DevVersion = "dev"

// Loader locates and loads the configuration file.
type Loader struct {
	Version      string // build version; "dev" enables the working directory rc
	OverridePath string
	// Home overrides the user's home directory.
	Home string
}

// NewLoader creates a Loader.
func NewLoader(version string, overridePath string) *Loader {
	return &Loader{Version: version, OverridePath: overridePath}
}

func (l *Loader) home() string {
	if l.Home != "" {
		return l.Home
	}
	home, _ := os.UserHomeDir()
	return home
}

// Load reads the file found by ConfigPath, or returns the defaults when
// there is none.
func (l *Loader) Load() (*Config, error) {
	path := l.ConfigPath()
	if path == "" {
		return New(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ConfigPath returns the first existing candidate file, or "".
func (l *Loader) ConfigPath() string {
	for _, p := range l.candidates() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (l *Loader) candidates() []string {
	var out []string
	if l.OverridePath != "" {
		out = append(out, l.OverridePath)
	}
	if l.Version == DevVersion {
		if wd, err := os.Getwd(); err == nil {
			out = append(out, filepath.Join(wd, ".captionkitrc"))
		}
	}
	if home := l.home(); home != "" {
		dir := filepath.Join(home, ".config", "captionkit")
		out = append(out, filepath.Join(dir, "config.rc"), filepath.Join(dir, "captionkit.rc"))
	}
	return out
}

// SavePath is where Save writes: the override path when set, otherwise the
// per-user config file.
func (l *Loader) SavePath() string {
	if l.OverridePath != "" {
		return l.OverridePath
	}
	return filepath.Join(l.home(), ".config", "captionkit", "config.rc")
}

// Save writes cfg to SavePath and returns the path written.
func (l *Loader) Save(cfg *Config) (string, error) {
	path := l.SavePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(cfg.String()), 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
