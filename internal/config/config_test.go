package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	input := `
theme = midnight
save_dir = /tmp/memes

[search]
api_key = "abc123"
per_page = 8
timeout = 5s

[editor]
color = #ff0000
caption: "Top text"
min_size = 32

[export]
pixel_ratio = 2
s3_bucket = memes
s3_prefix = exports/

[notify]
add = false
back = false
desktop = true

[server]
listen = 127.0.0.1:9000
session_ttl = 10m
origins = http://localhost:3000, https://example.com

[theme.midnight]
Banner = #000010
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Theme != "midnight" || cfg.SaveDir != "/tmp/memes" {
		t.Errorf("root fields: %q %q", cfg.Theme, cfg.SaveDir)
	}
	if cfg.Search.APIKey != "abc123" || cfg.Search.PerPage != 8 || cfg.Search.Timeout != 5*time.Second {
		t.Errorf("search: %+v", cfg.Search)
	}
	if cfg.Search.Endpoint == "" {
		t.Error("endpoint should keep its default")
	}
	if cfg.Editor.Color != "#ff0000" || cfg.Editor.Caption != "Top text" || cfg.Editor.MinSize != 32 {
		t.Errorf("editor: %+v", cfg.Editor)
	}
	if cfg.Export.PixelRatio != 2 || cfg.Export.S3Bucket != "memes" || cfg.Export.S3Prefix != "exports/" {
		t.Errorf("export: %+v", cfg.Export)
	}
	if cfg.Export.Filename != "image_with_elements.png" {
		t.Errorf("filename default lost: %q", cfg.Export.Filename)
	}
	if cfg.Notify.Add || !cfg.Notify.Export || !cfg.Notify.Desktop || cfg.Notify.Back || !cfg.Notify.Select {
		t.Errorf("notify: %+v", cfg.Notify)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" || cfg.Server.SessionTTL != 10*time.Minute {
		t.Errorf("server: %+v", cfg.Server)
	}
	if want := []string{"http://localhost:3000", "https://example.com"}; !reflect.DeepEqual(cfg.Server.Origins, want) {
		t.Errorf("origins %v", cfg.Server.Origins)
	}
	th, ok := cfg.Themes["midnight"]
	if !ok {
		t.Fatal("Expected theme 'midnight' to be loaded")
	}
	if th.Banner.B != 0x10 {
		t.Errorf("Unexpected Banner color: %+v", th.Banner)
	}
	resolved, err := cfg.ResolveTheme(nil)
	if err != nil || resolved != th {
		t.Errorf("ResolveTheme = %v, %v", resolved, err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"[search]\nper_page = many\n",
		"[search]\ntimeout = soon\n",
		"[export]\npixel_ratio = -1\n",
		"[notify]\nadd = maybe\n",
		"[server]\nsession_ttl = 3\n",
		"[theme.x]\nBanner = blue\n",
	}
	for _, in := range tests {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestCircular(t *testing.T) {
	input := `theme = dark
save_dir = /home/user/memes

[search]
api_key = k
per_page = 6

[editor]
caption = "Say \"cheese\""

[export]
s3_bucket = b

[notify]
error = false

[server]
origins = http://a

[theme.custom]
Name = custom
Banner = #000000
Caption = #FFFFFF80
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Initial parse failed: %v", err)
	}
	cfg2, err := Parse(strings.NewReader(cfg.String()))
	if err != nil {
		t.Fatalf("Circular parse failed: %v\n%s", err, cfg.String())
	}
	if !reflect.DeepEqual(cfg, cfg2) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", cfg, cfg2)
	}
	if cfg2.Editor.Caption != `Say "cheese"` {
		t.Errorf("caption %q", cfg2.Editor.Caption)
	}
}

func TestApplyEnvAndRedact(t *testing.T) {
	cfg := New()
	cfg.Search.APIKey = "from-file"
	cfg.ApplyEnv(func(k string) string {
		return map[string]string{"PEXELS_API_KEY": "from-env", "CAPTIONKIT_THEME": "dark"}[k]
	})
	if cfg.Search.APIKey != "from-env" || cfg.Theme != "dark" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if red := cfg.Redacted(); strings.Contains(red.String(), "from-env") {
		t.Fatal("redacted config leaks the api key")
	}
	if cfg.Search.APIKey != "from-env" {
		t.Fatal("Redacted modified the original")
	}
}

func TestLoaderPaths(t *testing.T) {
	home := t.TempDir()
	l := &Loader{Home: home}
	if p := l.ConfigPath(); p != "" {
		t.Fatalf("unexpected config path %q", p)
	}
	cfg, err := l.Load()
	if err != nil || cfg.Search.PerPage != 4 {
		t.Fatalf("defaults: %+v %v", cfg, err)
	}

	cfg.SaveDir = "/srv/out"
	path, err := l.Save(cfg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(home, ".config", "captionkit", "config.rc"); path != want {
		t.Fatalf("saved to %q, want %q", path, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode %v", info.Mode().Perm())
	}
	loaded, err := l.Load()
	if err != nil || loaded.SaveDir != "/srv/out" {
		t.Fatalf("reload: %+v %v", loaded, err)
	}

	override := filepath.Join(t.TempDir(), "other.rc")
	if err := os.WriteFile(override, []byte("save_dir = /override\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l.OverridePath = override
	if p := l.ConfigPath(); p != override {
		t.Fatalf("override ignored: %q", p)
	}
}

func TestLoaderReportsParseErrors(t *testing.T) {
	override := filepath.Join(t.TempDir(), "bad.rc")
	if err := os.WriteFile(override, []byte("[notify]\nadd = nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := (&Loader{OverridePath: override, Home: t.TempDir()}).Load()
	if err == nil || !strings.Contains(err.Error(), "bad.rc") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
