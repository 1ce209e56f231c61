package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// setters maps the dotted keys accepted by Set to the field they change.
var setters = map[string]func(c *Config, v string) error{
	"log_level": func(c *Config, v string) error { c.LogLevel = v; return nil },
	"platform":  func(c *Config, v string) error { c.Platform = v; return nil },
	"server_port": func(c *Config, v string) error {
		return setInt(&c.ServerPort, v, 1, 65535)
	},
	"capture.window_capture_mode": func(c *Config, v string) error {
		switch v {
		case "auto", "compositor", "compositor_transparent", "gdi", "screen":
			c.Capture.WindowCaptureMode = v
			return nil
		}
		return fmt.Errorf("invalid window capture mode %q", v)
	},
	"capture.screen_capture_mode": func(c *Config, v string) error {
		switch v {
		case "auto", "fixed", "full":
			c.Capture.ScreenCaptureMode = v
			return nil
		}
		return fmt.Errorf("invalid screen capture mode %q", v)
	},
	"capture.screen_index": func(c *Config, v string) error {
		return setInt(&c.Capture.ScreenIndex, v, -1, 64)
	},
	"capture.capture_mouse_pointer": func(c *Config, v string) error {
		return setBool(&c.Capture.CaptureMousePointer, v)
	},
	"capture.remove_corners": func(c *Config, v string) error {
		return setBool(&c.Capture.RemoveCorners, v)
	},
	"capture.corner_cut_shape": func(c *Config, v string) error {
		var shape []int
		for _, part := range splitList(v) {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid corner cut width %q", part)
			}
			shape = append(shape, n)
		}
		c.Capture.CornerCutShape = shape
		return nil
	},
	"capture.compositor_background": func(c *Config, v string) error {
		if !hexColor.MatchString(v) {
			return fmt.Errorf("invalid color %q, want #rrggbb", v)
		}
		c.Capture.CompositorBackground = v
		return nil
	},
	"capture.no_gdi_processes": func(c *Config, v string) error {
		c.Capture.NoGDIProcesses = splitList(v)
		return nil
	},
	"output.directory":        func(c *Config, v string) error { c.Output.Directory = v; return nil },
	"output.filename_pattern": func(c *Config, v string) error { c.Output.FilenamePattern = v; return nil },
	"output.format": func(c *Config, v string) error {
		c.Output.Format = strings.ToLower(v)
		return nil
	},
	"output.jpeg_quality": func(c *Config, v string) error {
		return setInt(&c.Output.JPEGQuality, v, 1, 100)
	},
	"output.template": func(c *Config, v string) error { c.Output.Template = v; return nil },
	"active_title_fixes": func(c *Config, v string) error {
		c.ActiveTitleFixes = splitList(v)
		return nil
	},
	"destinations": func(c *Config, v string) error {
		c.Destinations = splitList(v)
		return nil
	},
	"overlay.enabled":  func(c *Config, v string) error { return setBool(&c.Overlay.Enabled, v) },
	"tracker.base_url": func(c *Config, v string) error { c.Tracker.BaseURL = strings.TrimRight(v, "/"); return nil },
	"tracker.token":    func(c *Config, v string) error { c.Tracker.Token = v; return nil },
	"tracker.project":  func(c *Config, v string) error { c.Tracker.Project = v; return nil },
	"notify":           func(c *Config, v string) error { return setBool(&c.Notify, v) },
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Keys lists the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set parses value into the setting named by key and saves the file.
func (m *Manager) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	m.mu.Lock()
	cfg := m.config.clone()
	if err := set(cfg, value); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", key, err)
	}
	m.config = cfg
	m.mu.Unlock()

	return m.Save()
}

// Value renders the setting named by key the way Set accepts it.
func (m *Manager) Value(key string) (string, error) {
	cfg := m.Get()
	switch key {
	case "log_level":
		return cfg.LogLevel, nil
	case "platform":
		return cfg.Platform, nil
	case "server_port":
		return strconv.Itoa(cfg.ServerPort), nil
	case "capture.window_capture_mode":
		return cfg.Capture.WindowCaptureMode, nil
	case "capture.screen_capture_mode":
		return cfg.Capture.ScreenCaptureMode, nil
	case "capture.screen_index":
		return strconv.Itoa(cfg.Capture.ScreenIndex), nil
	case "capture.capture_mouse_pointer":
		return strconv.FormatBool(cfg.Capture.CaptureMousePointer), nil
	case "capture.remove_corners":
		return strconv.FormatBool(cfg.Capture.RemoveCorners), nil
	case "capture.corner_cut_shape":
		parts := make([]string, len(cfg.Capture.CornerCutShape))
		for i, n := range cfg.Capture.CornerCutShape {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), nil
	case "capture.compositor_background":
		return cfg.Capture.CompositorBackground, nil
	case "capture.no_gdi_processes":
		return strings.Join(cfg.Capture.NoGDIProcesses, ","), nil
	case "output.directory":
		return cfg.Output.Directory, nil
	case "output.filename_pattern":
		return cfg.Output.FilenamePattern, nil
	case "output.format":
		return cfg.Output.Format, nil
	case "output.jpeg_quality":
		return strconv.Itoa(cfg.Output.JPEGQuality), nil
	case "output.template":
		return cfg.Output.Template, nil
	case "active_title_fixes":
		return strings.Join(cfg.ActiveTitleFixes, ","), nil
	case "destinations":
		return strings.Join(cfg.Destinations, ","), nil
	case "overlay.enabled":
		return strconv.FormatBool(cfg.Overlay.Enabled), nil
	case "tracker.base_url":
		return cfg.Tracker.BaseURL, nil
	case "tracker.token":
		if cfg.Tracker.Token == "" {
			return "", nil
		}
		return "********", nil
	case "tracker.project":
		return cfg.Tracker.Project, nil
	case "notify":
		return strconv.FormatBool(cfg.Notify), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

func setInt(dst *int, v string, lo, hi int) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid number %q", v)
	}
	if n < lo || n > hi {
		return fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
