package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"golang.org/x/image/draw"
)

// Manager holds the configured widgets and renders them in order, so later
// widgets draw over earlier ones.
type Manager struct {
	widgets []Widget
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates a new overlay manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// AddWidget appends a widget on top of the existing ones.
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.widgets {
		if w.ID() == widget.ID() {
			return fmt.Errorf("widget with ID %s already exists", widget.ID())
		}
	}

	m.widgets = append(m.widgets, widget)
	logger.WithComponent("overlay").Debug().
		Str("id", widget.ID()).
		Str("type", widget.Type()).
		Msg("Added widget")
	return nil
}

// RemoveWidget removes a widget from the overlay
func (m *Manager) RemoveWidget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.widgets {
		if w.ID() == id {
			m.widgets = append(m.widgets[:i:i], m.widgets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("widget with ID %s not found", id)
}

// Widgets returns the widgets in render order.
func (m *Manager) Widgets() []Widget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Widget(nil), m.widgets...)
}

// SetEnabled enables or disables the entire overlay
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled reports whether the overlay is enabled and has widgets to draw.
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled && len(m.widgets) > 0
}

// Render draws every enabled widget into area of dst. A failing widget is
// logged and skipped.
func (m *Manager) Render(dst draw.Image, area image.Rectangle, c *capture.Context) {
	if !m.IsEnabled() {
		return
	}
	log := logger.WithComponent("overlay")

	for _, widget := range m.Widgets() {
		if !widget.IsEnabled() {
			continue
		}
		if err := widget.Render(dst, area, c); err != nil {
			log.Warn().Err(err).Str("id", widget.ID()).Msg("Failed to render widget")
		}
	}
}

// CreateWidget creates a new widget instance from configuration
func CreateWidget(widgetType string, id string, config map[string]interface{}) (Widget, error) {
	var widget Widget
	var err error

	switch widgetType {
	case "text":
		widget, err = NewTextWidget(id, config)
	case "frame":
		widget, err = NewFrameWidget(id, config)
	default:
		return nil, fmt.Errorf("unknown widget type: %s", widgetType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s widget: %w", widgetType, err)
	}
	return widget, nil
}

// LoadFromConfig creates widgets from their configuration maps, in order.
// Broken entries are logged and skipped.
func (m *Manager) LoadFromConfig(configs []map[string]interface{}) {
	log := logger.WithComponent("overlay")

	for i, config := range configs {
		widgetType, ok := config["type"].(string)
		if !ok {
			log.Warn().Int("index", i).Msg("Skipping widget with missing type")
			continue
		}

		id, ok := config["id"].(string)
		if !ok {
			id = fmt.Sprintf("%s-%d", widgetType, i)
		}

		widget, err := CreateWidget(widgetType, id, config)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to create widget")
			continue
		}

		if err := m.AddWidget(widget); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to add widget")
		}
	}
}

// ExportConfig exports all widget configurations
func (m *Manager) ExportConfig() []map[string]interface{} {
	widgets := m.Widgets()
	configs := make([]map[string]interface{}, 0, len(widgets))
	for _, widget := range widgets {
		configs = append(configs, widget.Config())
	}
	return configs
}

// AvailableWidgetTypes describes the widget types CreateWidget accepts.
func AvailableWidgetTypes() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type":        "text",
			"name":        "Caption",
			"description": "Stamp text, with file name variables, onto the capture",
			"config_schema": map[string]interface{}{
				"text":       "string (required)",
				"x":          "int (negative: from the right edge)",
				"y":          "int (negative: from the bottom edge)",
				"opacity":    "float (0.0-1.0)",
				"enabled":    "bool",
				"color":      "object {r, g, b, a}",
				"background": "object {r, g, b, a} (optional)",
				"padding":    "int",
			},
		},
		{
			"type":        "frame",
			"name":        "Frame",
			"description": "Draw a border around the exported area",
			"config_schema": map[string]interface{}{
				"width":   "int (pixels)",
				"color":   "object {r, g, b, a}",
				"opacity": "float (0.0-1.0)",
				"enabled": "bool",
			},
		},
	}
}
