// Package processors provides the capture.Processor implementations that
// refine a capture context between import and export.
package processors

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/geometry"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
)

// ActiveWindowProcessor crops the capture to the active window.
type ActiveWindowProcessor struct {
	windows platform.Windows
}

// NewActiveWindowProcessor creates the processor.
func NewActiveWindowProcessor(windows platform.Windows) *ActiveWindowProcessor {
	return &ActiveWindowProcessor{windows: windows}
}

// Process implements capture.Processor. It reports false, leaving the crop
// alone, when the active window cannot be determined or lies outside the
// capture.
func (p *ActiveWindowProcessor) Process(ctx context.Context, c *capture.Context) (bool, error) {
	log := logger.WithComponent("active-window-processor")

	win, err := p.windows.ActiveWindow()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to query active window")
		return false, nil
	}
	rect := geometry.WindowBounds(win.Bounds, win.Maximized, win.BorderSize).Intersect(c.CaptureRect())
	if rect.Empty() {
		log.Warn().Str("title", win.Title).Msg("Active window is outside the capture")
		return false, nil
	}
	c.Crop(rect)
	if c.Title == "" || c.Title == "Desktop" {
		c.Title = win.Title
	}
	return true, nil
}

type titleFix struct {
	name    string
	re      *regexp.Regexp
	replace string
}

// TitleFixProcessor rewrites the capture title with the active title fixes.
type TitleFixProcessor struct {
	fixes []titleFix
}

// NewTitleFixProcessor compiles the fixes named by active, in order. Names
// with no entry in catalog and fixes whose pattern does not compile are
// dropped with a warning.
func NewTitleFixProcessor(catalog []config.TitleFix, active []string) *TitleFixProcessor {
	log := logger.WithComponent("title-fix-processor")

	byName := make(map[string]config.TitleFix, len(catalog))
	for _, f := range catalog {
		byName[f.Name] = f
	}

	p := &TitleFixProcessor{}
	for _, name := range active {
		f, ok := byName[name]
		if !ok {
			log.Warn().Str("fix", name).Msg("Title fix not found, disabling it")
			continue
		}
		if f.Match == "" {
			continue
		}
		re, err := regexp.Compile(f.Match)
		if err != nil {
			log.Warn().Err(err).Str("fix", name).Msg("Title fix does not compile, disabling it")
			continue
		}
		p.fixes = append(p.fixes, titleFix{name: name, re: re, replace: f.Replace})
	}
	return p
}

// Active returns the names of the fixes in use.
func (p *TitleFixProcessor) Active() []string {
	names := make([]string, len(p.fixes))
	for i, f := range p.fixes {
		names[i] = f.name
	}
	return names
}

// Process implements capture.Processor.
func (p *TitleFixProcessor) Process(ctx context.Context, c *capture.Context) (bool, error) {
	if c.Title == "" {
		return true, nil
	}
	title := strings.TrimSpace(c.Title)
	for _, f := range p.fixes {
		title = f.re.ReplaceAllString(title, f.replace)
	}
	c.Title = title
	return true, nil
}

// ScreenMode selects what ScreenModeProcessor crops a full desktop capture to.
type ScreenMode string

const (
	// ScreenAuto crops to the surface under the mouse pointer.
	ScreenAuto ScreenMode = "auto"
	// ScreenFixed crops to a configured surface.
	ScreenFixed ScreenMode = "fixed"
	// ScreenFull keeps the whole desktop.
	ScreenFull ScreenMode = "full"
)

// ParseScreenMode maps a config value to a mode; empty means auto.
func ParseScreenMode(s string) (ScreenMode, error) {
	switch m := ScreenMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ScreenAuto, ScreenFixed, ScreenFull:
		return m, nil
	case "":
		return ScreenAuto, nil
	}
	return "", fmt.Errorf("unknown screen capture mode %q", s)
}

// ScreenModeProcessor narrows a desktop capture to one surface and remembers
// the last region it produced.
type ScreenModeProcessor struct {
	resolver *geometry.Resolver
	cursor   platform.Cursor
	mode     ScreenMode
	index    int

	mu   sync.Mutex
	last image.Rectangle
}

// NewScreenModeProcessor creates the processor. index is only used in fixed
// mode; an index with no surface selects the whole desktop.
func NewScreenModeProcessor(resolver *geometry.Resolver, cursor platform.Cursor, mode ScreenMode, index int) *ScreenModeProcessor {
	return &ScreenModeProcessor{resolver: resolver, cursor: cursor, mode: mode, index: index}
}

// Process implements capture.Processor. The resulting crop is recorded in the
// last_region metadata.
func (p *ScreenModeProcessor) Process(ctx context.Context, c *capture.Context) (bool, error) {
	log := logger.WithComponent("screen-mode-processor")

	switch p.mode {
	case ScreenAuto:
		if p.cursor == nil {
			break
		}
		pos, err := p.cursor.CursorPosition()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read pointer position, keeping full capture")
			break
		}
		s, ok, err := p.resolver.SurfaceAt(pos)
		if err != nil {
			return false, fmt.Errorf("failed to enumerate surfaces: %w", err)
		}
		if ok {
			c.Crop(s.Bounds)
		}
	case ScreenFixed:
		rect, err := p.resolver.Surface(p.index)
		if err != nil {
			return false, fmt.Errorf("failed to resolve surface %d: %w", p.index, err)
		}
		c.Crop(rect)
	case ScreenFull:
	}

	p.mu.Lock()
	p.last = c.CropRect
	p.mu.Unlock()
	c.AddMetadata("last_region", formatRect(c.CropRect))

	log.Debug().Str("mode", string(p.mode)).Str("region", c.CropRect.String()).Msg("Screen region selected")
	return true, nil
}

// LastRegion returns the crop chosen by the most recent Process call.
func (p *ScreenModeProcessor) LastRegion() image.Rectangle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func formatRect(r image.Rectangle) string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}
