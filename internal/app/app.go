// Package app wires the configuration, the native platform and the capture
// stages into the registries the CLI and the API run captures with.
package app

import (
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/destinations"
	"github.com/bryanchriswhite/snapflow/internal/engine"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/notify"
	"github.com/bryanchriswhite/snapflow/internal/output"
	"github.com/bryanchriswhite/snapflow/internal/overlay"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/bryanchriswhite/snapflow/internal/processors"
	"github.com/bryanchriswhite/snapflow/internal/render"
	"github.com/bryanchriswhite/snapflow/internal/sources"
)

// App holds everything a capture needs.
type App struct {
	Config   *config.Manager
	Platform *platform.Platform
	Capturer *engine.Capturer
	Stream   *output.MJPEGOutput
	Events   *Events

	Sources      *capture.Registry[capture.Source]
	Processors   *capture.Registry[capture.Processor]
	Destinations *capture.Registry[capture.Destination]

	trackerMu  sync.Mutex
	tracker    *destinations.TrackerDestination
	trackerKey string

	latestMu sync.RWMutex
	latest   *Result

	// Notifier is connected on the first export with notify enabled.
	Notifier   notify.Notifier
	notifyOnce sync.Once
}

// New builds the app around an open platform.
func New(cfg *config.Manager, p *platform.Platform) (*App, error) {
	a := &App{
		Config:       cfg,
		Platform:     p,
		Capturer:     engine.NewCapturer(p),
		Stream:       output.NewMJPEGOutput(output.Config{Quality: cfg.Get().Output.JPEGQuality}),
		Events:       NewEvents(),
		Sources:      capture.NewRegistry[capture.Source]("source"),
		Processors:   capture.NewRegistry[capture.Processor]("processor"),
		Destinations: capture.NewRegistry[capture.Destination]("destination"),
	}
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

// Open reads the config file and connects to the configured platform. An
// empty platformName uses the config value.
func Open(configFile, platformName string) (*App, error) {
	cfg, err := config.NewManager(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if platformName == "" {
		platformName = cfg.Get().Platform
	}
	p, err := platform.Open(platformName)
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, p)
	if err != nil {
		p.Close()
		return nil, err
	}
	logger.WithComponent("app").Info().
		Str("platform", p.Name).
		Str("config", cfg.GetConfigPath()).
		Msg("Ready")
	return a, nil
}

// Close stops the stream and releases the platform.
func (a *App) Close() error {
	a.Stream.Stop()
	if n, ok := a.Notifier.(*notify.DBus); ok {
		n.Close()
	}
	return a.Platform.Close()
}

// notifyExport tells the user where res went. Notification failures are
// logged only.
func (a *App) notifyExport(res *Result) {
	if !res.Exported || !a.Config.Get().Notify {
		return
	}
	log := logger.WithComponent("app")
	a.notifyOnce.Do(func() {
		if a.Notifier != nil {
			return
		}
		n, err := notify.NewDBus()
		if err != nil {
			log.Warn().Err(err).Msg("Desktop notifications unavailable")
			return
		}
		a.Notifier = n
	})
	if a.Notifier == nil {
		return
	}
	summary, body := notify.Message(res.Title, res.Metadata)
	if err := a.Notifier.Notify(summary, body); err != nil {
		log.Warn().Err(err).Msg("Failed to show notification")
	}
}

func (a *App) register() error {
	sourceFactories := map[string]capture.Factory[capture.Source]{
		"screen": func() (capture.Source, error) {
			return sources.NewScreenSource(a.Capturer), nil
		},
		"window": func() (capture.Source, error) {
			opts, err := a.WindowOptions()
			if err != nil {
				return nil, err
			}
			return sources.NewWindowSource(a.Capturer, a.Platform.Windows, opts), nil
		},
		"mouse": func() (capture.Source, error) {
			return sources.NewMouseSource(a.Platform.Cursor, a.Config.Get().Capture.CaptureMousePointer), nil
		},
	}
	for name, f := range sourceFactories {
		if err := a.Sources.Register(name, f); err != nil {
			return err
		}
	}

	processorFactories := map[string]capture.Factory[capture.Processor]{
		"active_window": func() (capture.Processor, error) {
			return processors.NewActiveWindowProcessor(a.Platform.Windows), nil
		},
		"title_fix": func() (capture.Processor, error) {
			cfg := a.Config.Get()
			return processors.NewTitleFixProcessor(cfg.TitleFixes, cfg.ActiveTitleFixes), nil
		},
		"screen_mode": func() (capture.Processor, error) {
			cfg := a.Config.Get()
			mode, err := processors.ParseScreenMode(cfg.Capture.ScreenCaptureMode)
			if err != nil {
				return nil, err
			}
			return processors.NewScreenModeProcessor(a.Capturer.Resolver, a.Platform.Cursor, mode, cfg.Capture.ScreenIndex), nil
		},
		"overlay": func() (capture.Processor, error) {
			cfg := a.Config.Get()
			m := overlay.NewManager()
			m.LoadFromConfig(cfg.Overlay.Widgets)
			m.SetEnabled(cfg.Overlay.Enabled)
			return processors.NewOverlayProcessor(m), nil
		},
	}
	for name, f := range processorFactories {
		if err := a.Processors.Register(name, f); err != nil {
			return err
		}
	}

	destinationFactories := map[string]capture.Factory[capture.Destination]{
		"file": func() (capture.Destination, error) {
			out := a.Config.Get().Output
			enc, err := render.NewEncoder(out.Format, out.JPEGQuality)
			if err != nil {
				return nil, err
			}
			return destinations.NewFileDestination(out.Directory, enc), nil
		},
		"stream": func() (capture.Destination, error) {
			return destinations.NewStreamDestination(a.Stream), nil
		},
		"tracker": func() (capture.Destination, error) {
			t, err := a.Tracker()
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
	for name, f := range destinationFactories {
		if err := a.Destinations.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

// Tracker returns the work item destination family. It is kept across calls
// so the fetched items stay cached until the tracker settings change.
func (a *App) Tracker() (*destinations.TrackerDestination, error) {
	t := a.Config.Get().Tracker
	if t.BaseURL == "" {
		return nil, fmt.Errorf("tracker.base_url is not set")
	}
	key := t.BaseURL + "|" + t.Project + "|" + t.Token

	a.trackerMu.Lock()
	defer a.trackerMu.Unlock()
	if a.tracker == nil || a.trackerKey != key {
		a.tracker = destinations.NewTrackerDestination(destinations.NewTrackerClient(t.BaseURL, t.Token, t.Project))
		a.trackerKey = key
	}
	return a.tracker, nil
}

// WindowOptions converts the capture settings for window captures.
func (a *App) WindowOptions() (engine.WindowCaptureOptions, error) {
	c := a.Config.Get().Capture
	mode, err := engine.ParseWindowMode(c.WindowCaptureMode)
	if err != nil {
		return engine.WindowCaptureOptions{}, err
	}
	bg, err := ParseHexColor(c.CompositorBackground)
	if err != nil {
		return engine.WindowCaptureOptions{}, err
	}
	return engine.WindowCaptureOptions{
		Mode:           mode,
		Background:     bg,
		RemoveCorners:  c.RemoveCorners,
		CornerCutShape: c.CornerCutShape,
		NoGDIProcesses: c.NoGDIProcesses,
	}, nil
}

// ParseHexColor parses #rrggbb. An empty string is white.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, nil
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q, want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// DestinationInfo describes a registered destination for listings.
type DestinationInfo struct {
	Designation string            `json:"designation"`
	Description string            `json:"description,omitempty"`
	Members     []DestinationInfo `json:"members,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ListDestinations describes every registered destination. Dynamic families
// are expanded; refresh refetches them first.
func (a *App) ListDestinations(ctx context.Context, refresh bool) []DestinationInfo {
	var infos []DestinationInfo
	for _, name := range a.Destinations.Designations() {
		info := DestinationInfo{Designation: name}
		dest, err := a.Destinations.New(name)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		info.Description = describe(dest)
		if dyn, ok := dest.(capture.DynamicDestination); ok {
			if refresh {
				dyn.Invalidate()
			}
			members, err := dyn.Destinations(ctx)
			if err != nil {
				info.Error = err.Error()
			}
			for i, m := range members {
				info.Members = append(info.Members, DestinationInfo{
					Designation: memberDesignation(name, i, m),
					Description: describe(m),
				})
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// memberDesignation names member i of the family name. Work items are
// named by their ID, other members by position.
func memberDesignation(name string, i int, m capture.Destination) string {
	if w, ok := m.(*destinations.WorkItemDestination); ok {
		return name + "/" + w.Item().ID
	}
	return fmt.Sprintf("%s/%d", name, i)
}

func describe(v any) string {
	if d, ok := v.(capture.Describer); ok {
		return d.Description()
	}
	return ""
}
