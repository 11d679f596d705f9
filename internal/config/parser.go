package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/captionkit/internal/theme"
)

// Parse reads configuration from r, starting from the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var section string
	var current *theme.Theme
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			current = nil
			if name, ok := strings.CutPrefix(section, "theme."); ok {
				current = theme.Default()
				current.Name = name
				cfg.Themes[name] = current
			}
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}

		var err error
		switch {
		case current != nil:
			err = theme.Set(current, key, value)
		case section == "":
			err = setRootField(cfg, key, value)
		case section == "search":
			err = setSearchField(&cfg.Search, key, value)
		case section == "editor":
			err = setEditorField(&cfg.Editor, key, value)
		case section == "export":
			err = setExportField(&cfg.Export, key, value)
		case section == "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		case section == "server":
			err = setServerField(&cfg.Server, key, value)
		}
		if err != nil {
			if section == "" {
				return nil, fmt.Errorf("line %d: error in root section: %w", lineNo, err)
			}
			return nil, fmt.Errorf("line %d: error in section [%s]: %w", lineNo, section, err)
		}
	}
	return cfg, scanner.Err()
}

// splitKeyValue accepts "key = value" and "key: value". Quoted values are
// unquoted.
func splitKeyValue(line string) (string, string, bool) {
	i := strings.IndexAny(line, "=:")
	if i < 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(line[:i]))
	value := strings.TrimSpace(line[i+1:])
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		if uq, err := strconv.Unquote(value); err == nil {
			value = uq
		} else {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}

func setRootField(cfg *Config, key, value string) error {
	switch key {
	case "theme":
		cfg.Theme = value
	case "save_dir":
		cfg.SaveDir = value
	}
	return nil
}

func setSearchField(s *Search, key, value string) error {
	switch key {
	case "endpoint":
		s.Endpoint = value
	case "api_key":
		s.APIKey = value
	case "per_page":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid per_page %q", value)
		}
		s.PerPage = n
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		s.Timeout = d
	}
	return nil
}

func setEditorField(e *Editor, key, value string) error {
	switch key {
	case "color":
		e.Color = value
	case "caption":
		e.Caption = value
	case "min_size":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid min_size %q", value)
		}
		e.MinSize = f
	}
	return nil
}

func setExportField(e *Export, key, value string) error {
	switch key {
	case "filename":
		e.Filename = value
	case "pixel_ratio":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid pixel_ratio %q", value)
		}
		e.PixelRatio = f
	case "s3_bucket":
		e.S3Bucket = value
	case "s3_prefix":
		e.S3Prefix = value
	}
	return nil
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	switch key {
	case "add":
		n.Add = b
	case "export":
		n.Export = b
	case "load":
		n.Load = b
	case "error":
		n.Error = b
	case "select":
		n.Select = b
	case "back":
		n.Back = b
	case "desktop":
		n.Desktop = b
	}
	return nil
}

func setServerField(s *Server, key, value string) error {
	switch key {
	case "listen":
		s.Listen = value
	case "session_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid session_ttl: %w", err)
		}
		s.SessionTTL = d
	case "origins":
		s.Origins = nil
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.Origins = append(s.Origins, o)
			}
		}
	}
	return nil
}
