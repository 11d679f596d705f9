// Package config reads and writes the captionkit rc file.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/render"
	"github.com/example/captionkit/internal/search"
	"github.com/example/captionkit/internal/theme"
)

// Search configures the photo search client.
type Search struct {
	Endpoint string
	APIKey   string
	PerPage  int
	Timeout  time.Duration
}

// Editor configures new annotation sessions.
type Editor struct {
	Color   string
	Caption string
	MinSize float64
}

// Export configures the flattened output and where it is published.
type Export struct {
	Filename   string
	PixelRatio float64
	S3Bucket   string
	S3Prefix   string
}

// Notify toggles notification events. Desktop additionally sends them to
// the host notification service.
type Notify struct {
	Add     bool
	Export  bool
	Load    bool
	Error   bool
	Select  bool
	Back    bool
	Desktop bool
}

// Server configures the HTTP API.
type Server struct {
	Listen     string
	SessionTTL time.Duration
	Origins    []string
}

// Config holds the application configuration.
type Config struct {
	Theme   string
	SaveDir string
	Search  Search
	Editor  Editor
	Export  Export
	Notify  Notify
	Server  Server
	Themes  map[string]*theme.Theme
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Search: Search{
			Endpoint: search.DefaultEndpoint,
			PerPage:  search.DefaultPerPage,
			Timeout:  search.DefaultTimeout,
		},
		Editor: Editor{
			Color:   editor.DefaultColor,
			Caption: editor.DefaultPlaceholder,
			MinSize: editor.DefaultMinSize,
		},
		Export: Export{
			Filename:   render.Filename,
			PixelRatio: render.DefaultOptions().PixelRatio,
		},
		Notify: Notify{Add: true, Export: true, Load: true, Error: true, Select: true, Back: true},
		Server: Server{
			Listen:     ":8080",
			SessionTTL: 30 * time.Minute,
		},
		Themes: make(map[string]*theme.Theme),
	}
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("PEXELS_API_KEY")); v != "" {
		c.Search.APIKey = v
	}
	if v := strings.TrimSpace(getenv("CAPTIONKIT_SAVE_DIR")); v != "" {
		c.SaveDir = v
	}
	if v := strings.TrimSpace(getenv("CAPTIONKIT_THEME")); v != "" {
		c.Theme = v
	}
}

// ResolveTheme returns the selected theme, preferring [theme.<name>]
// sections over the theme loader.
func (c *Config) ResolveTheme(l *theme.Loader) (*theme.Theme, error) {
	if c.Theme == "" {
		return theme.Default(), nil
	}
	if t, ok := c.Themes[c.Theme]; ok {
		return t, nil
	}
	if l == nil {
		l = theme.NewLoader()
	}
	return l.Load(c.Theme)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Search.APIKey != "" {
		out.Search.APIKey = "********"
	}
	return &out
}

// String returns the configuration in rc format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.Theme != "" {
		fmt.Fprintf(&sb, "theme = %s\n", c.Theme)
	}
	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	sb.WriteString("\n")

	sb.WriteString("[search]\n")
	fmt.Fprintf(&sb, "endpoint = %s\n", c.Search.Endpoint)
	if c.Search.APIKey != "" {
		fmt.Fprintf(&sb, "api_key = %s\n", c.Search.APIKey)
	}
	fmt.Fprintf(&sb, "per_page = %d\n", c.Search.PerPage)
	fmt.Fprintf(&sb, "timeout = %s\n", c.Search.Timeout)
	sb.WriteString("\n")

	sb.WriteString("[editor]\n")
	fmt.Fprintf(&sb, "color = %s\n", c.Editor.Color)
	fmt.Fprintf(&sb, "caption = %q\n", c.Editor.Caption)
	fmt.Fprintf(&sb, "min_size = %g\n", c.Editor.MinSize)
	sb.WriteString("\n")

	sb.WriteString("[export]\n")
	fmt.Fprintf(&sb, "filename = %s\n", c.Export.Filename)
	fmt.Fprintf(&sb, "pixel_ratio = %g\n", c.Export.PixelRatio)
	if c.Export.S3Bucket != "" {
		fmt.Fprintf(&sb, "s3_bucket = %s\n", c.Export.S3Bucket)
	}
	if c.Export.S3Prefix != "" {
		fmt.Fprintf(&sb, "s3_prefix = %s\n", c.Export.S3Prefix)
	}
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "add = %v\n", c.Notify.Add)
	fmt.Fprintf(&sb, "export = %v\n", c.Notify.Export)
	fmt.Fprintf(&sb, "load = %v\n", c.Notify.Load)
	fmt.Fprintf(&sb, "error = %v\n", c.Notify.Error)
	fmt.Fprintf(&sb, "select = %v\n", c.Notify.Select)
	fmt.Fprintf(&sb, "back = %v\n", c.Notify.Back)
	fmt.Fprintf(&sb, "desktop = %v\n", c.Notify.Desktop)
	sb.WriteString("\n")

	sb.WriteString("[server]\n")
	fmt.Fprintf(&sb, "listen = %s\n", c.Server.Listen)
	fmt.Fprintf(&sb, "session_ttl = %s\n", c.Server.SessionTTL)
	if len(c.Server.Origins) > 0 {
		fmt.Fprintf(&sb, "origins = %s\n", strings.Join(c.Server.Origins, ","))
	}
	sb.WriteString("\n")

	names := make([]string, 0, len(c.Themes))
	for name := range c.Themes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := c.Themes[name]
		fmt.Fprintf(&sb, "[theme.%s]\n", name)
		fmt.Fprintf(&sb, "Name: %s\n", t.Name)
		for _, field := range theme.Fields() {
			col, _ := theme.Get(t, field)
			fmt.Fprintf(&sb, "%s: %s\n", field, theme.Hex(col))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
