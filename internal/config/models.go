package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryanchriswhite/snapflow/internal/logger"
	"gopkg.in/yaml.v3"
)

// TitleFix rewrites capture titles: every match of Match is replaced by
// Replace.
type TitleFix struct {
	Name    string `json:"name" yaml:"name"`
	Match   string `json:"match" yaml:"match"`
	Replace string `json:"replace" yaml:"replace"`
}

// Config represents the application configuration
type Config struct {
	LogLevel   string `json:"log_level" yaml:"log_level"`
	Platform   string `json:"platform" yaml:"platform"`
	ServerPort int    `json:"server_port" yaml:"server_port"`

	Capture CaptureConfig `json:"capture" yaml:"capture"`
	Output  OutputConfig  `json:"output" yaml:"output"`

	// TitleFixes is the catalog of known fixes; ActiveTitleFixes names the
	// ones applied, in order.
	TitleFixes       []TitleFix `json:"title_fixes" yaml:"title_fixes"`
	ActiveTitleFixes []string   `json:"active_title_fixes" yaml:"active_title_fixes"`

	Destinations []string      `json:"destinations" yaml:"destinations"`
	Overlay      OverlayConfig `json:"overlay" yaml:"overlay"`
	Tracker      TrackerConfig `json:"tracker" yaml:"tracker"`

	// Notify shows a desktop notification after each export.
	Notify bool `json:"notify" yaml:"notify"`
}

// CaptureConfig controls how pixels are obtained
type CaptureConfig struct {
	// WindowCaptureMode is auto, compositor, compositor_transparent, gdi or screen.
	WindowCaptureMode string `json:"window_capture_mode" yaml:"window_capture_mode"`
	// ScreenCaptureMode is auto, fixed or full.
	ScreenCaptureMode   string `json:"screen_capture_mode" yaml:"screen_capture_mode"`
	ScreenIndex         int    `json:"screen_index" yaml:"screen_index"`
	CaptureMousePointer bool   `json:"capture_mouse_pointer" yaml:"capture_mouse_pointer"`
	RemoveCorners       bool   `json:"remove_corners" yaml:"remove_corners"`
	CornerCutShape      []int  `json:"corner_cut_shape" yaml:"corner_cut_shape"`
	// CompositorBackground is the #rrggbb backdrop used outside auto mode.
	CompositorBackground string   `json:"compositor_background" yaml:"compositor_background"`
	NoGDIProcesses       []string `json:"no_gdi_processes" yaml:"no_gdi_processes"`
}

// OutputConfig controls how captures are named and encoded
type OutputConfig struct {
	Directory       string `json:"directory" yaml:"directory"`
	FilenamePattern string `json:"filename_pattern" yaml:"filename_pattern"`
	Format          string `json:"format" yaml:"format"`
	JPEGQuality     int    `json:"jpeg_quality" yaml:"jpeg_quality"`
	Template        string `json:"template" yaml:"template"`
}

// OverlayConfig represents overlay configuration
type OverlayConfig struct {
	Enabled bool                     `json:"enabled" yaml:"enabled"`
	Widgets []map[string]interface{} `json:"widgets" yaml:"widgets"`
}

// TrackerConfig points the tracker destination at a work item service
type TrackerConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
	Project string `json:"project" yaml:"project"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/snapflow/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "snapflow", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile
// selects DefaultPath. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("window_capture_mode", m.config.Capture.WindowCaptureMode).
		Int("title_fixes", len(m.config.ActiveTitleFixes)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	outputDir := os.TempDir()
	if home, err := os.UserHomeDir(); err == nil {
		outputDir = filepath.Join(home, "Pictures", "snapflow")
	}
	return &Config{
		LogLevel:   "info",
		Platform:   "auto",
		ServerPort: 8080,
		Capture: CaptureConfig{
			WindowCaptureMode:    "auto",
			ScreenCaptureMode:    "auto",
			ScreenIndex:          0,
			CaptureMousePointer:  true,
			RemoveCorners:        true,
			CornerCutShape:       []int{5, 3, 2, 1, 1},
			CompositorBackground: "#2c3e50",
			NoGDIProcesses:       []string{"scrivener", "iexplore"},
		},
		Output: OutputConfig{
			Directory:       outputDir,
			FilenamePattern: "${YYYY}-${MM}-${DD} ${hh}_${mm}_${ss}_${title}",
			Format:          "png",
			JPEGQuality:     80,
			Template:        "cropped",
		},
		TitleFixes: []TitleFix{
			{Name: "firefox", Match: ` - Mozilla Firefox.*`, Replace: ""},
			{Name: "chrome", Match: ` - Google Chrome.*`, Replace: ""},
		},
		ActiveTitleFixes: []string{"firefox", "chrome"},
		Destinations:     []string{"file"},
		Overlay: OverlayConfig{
			Enabled: false,
			Widgets: []map[string]interface{}{},
		},
	}
}

// load reads the configuration from disk and fills unset values from the
// defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Overlay.Widgets == nil {
		cfg.Overlay.Widgets = []map[string]interface{}{}
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	return m.config.clone()
}

func (c *Config) clone() *Config {
	cfg := *c
	cfg.Capture.CornerCutShape = append([]int(nil), c.Capture.CornerCutShape...)
	cfg.Capture.NoGDIProcesses = append([]string(nil), c.Capture.NoGDIProcesses...)
	cfg.TitleFixes = append([]TitleFix(nil), c.TitleFixes...)
	cfg.ActiveTitleFixes = append([]string(nil), c.ActiveTitleFixes...)
	cfg.Destinations = append([]string(nil), c.Destinations...)
	cfg.Overlay.Widgets = make([]map[string]interface{}, 0, len(c.Overlay.Widgets))
	for _, w := range c.Overlay.Widgets {
		cp := make(map[string]interface{}, len(w))
		for k, v := range w {
			cp[k] = v
		}
		cfg.Overlay.Widgets = append(cfg.Overlay.Widgets, cp)
	}
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The tracker token lives in this file.
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg.clone()
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort gets the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel gets the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
