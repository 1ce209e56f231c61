package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/destinations"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/bryanchriswhite/snapflow/internal/render"
	"github.com/bryanchriswhite/snapflow/internal/sources"
)

// Rect is a desktop rectangle as it appears in requests and results.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RectOf converts an image.Rectangle.
func RectOf(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Request describes one capture.
type Request struct {
	// Source is screen, region or window.
	Source string `json:"source"`
	// Region is required for the region source.
	Region *Rect `json:"region,omitempty"`
	// Window selects a window by handle instead of the active one.
	Window uint64 `json:"window,omitempty"`
	// Processors overrides the default processors for the source.
	Processors []string `json:"processors,omitempty"`
	// Destinations overrides the configured destinations. tracker/<id>
	// attaches to a single work item.
	Destinations    []string          `json:"destinations,omitempty"`
	Template        string            `json:"template,omitempty"`
	FilenamePattern string            `json:"filename_pattern,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Result reports the outcome of a capture.
type Result struct {
	Source     string            `json:"source"`
	Exported   bool              `json:"exported"`
	Title      string            `json:"title"`
	Filename   string            `json:"filename"`
	Capture    Rect              `json:"capture"`
	Crop       Rect              `json:"crop"`
	CapturedAt time.Time         `json:"captured_at"`
	Metadata   map[string]string `json:"metadata"`

	// Image is the rendered capture.
	Image image.Image `json:"-"`
}

// DefaultProcessors returns the processors a source runs when a request
// names none.
func DefaultProcessors(source string) []string {
	switch source {
	case "screen":
		return []string{"screen_mode", "title_fix", "overlay"}
	default:
		return []string{"title_fix", "overlay"}
	}
}

// Capture runs one capture flow. It returns the result even when nothing
// was exported; the error reports a failing stage.
func (a *App) Capture(ctx context.Context, req Request) (*Result, error) {
	log := logger.WithComponent("app")

	res, err := a.capture(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("source", req.Source).Msg("Capture failed")
		a.Events.Publish(Event{Type: EventFailed, Time: time.Now(), Error: err.Error()})
		return nil, err
	}
	if res.Image != nil {
		a.latestMu.Lock()
		a.latest = res
		a.latestMu.Unlock()
	}
	a.Events.Publish(Event{Type: EventCaptured, Time: res.CapturedAt, Capture: res})
	a.notifyExport(res)
	return res, nil
}

// Latest returns the most recent capture that produced an image, or nil.
func (a *App) Latest() *Result {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()
	return a.latest
}

func (a *App) capture(ctx context.Context, req Request) (*Result, error) {
	if req.Source == "" {
		req.Source = "screen"
	}
	cfg := a.Config.Get()

	c := capture.NewContext(capture.DefaultsFromEnv(cfg.Output.FilenamePattern, cfg.Output.Template), time.Now())
	if req.Template != "" {
		if _, err := render.ByName(req.Template); err != nil {
			return nil, err
		}
		c.Template = req.Template
	}
	if req.FilenamePattern != "" {
		c.SetFilenamePattern(req.FilenamePattern)
	}
	for k, v := range req.Metadata {
		c.AddMetadata(k, v)
	}

	source, err := a.buildSource(req)
	if err != nil {
		return nil, err
	}
	names := req.Processors
	if names == nil {
		names = DefaultProcessors(req.Source)
	}
	processor, err := a.buildProcessors(names)
	if err != nil {
		return nil, err
	}
	designations := req.Destinations
	if len(designations) == 0 {
		designations = cfg.Destinations
	}
	destination, err := a.buildDestination(ctx, designations)
	if err != nil {
		return nil, err
	}

	action := &capture.FlowAction{
		Context:     c,
		Source:      source,
		Processor:   processor,
		Destination: destination,
	}
	exported, err := action.Execute(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Source:     req.Source,
		Exported:   exported,
		Title:      c.Title,
		CapturedAt: c.CapturedAt,
		Capture:    RectOf(c.CaptureRect()),
		Crop:       RectOf(c.CropRect),
		Metadata:   c.Metadata(),
	}
	if c.Capture != nil {
		res.Filename = c.Filename()
		if tmpl, err := render.ByName(c.Template); err == nil {
			if img, err := tmpl.Render(c); err == nil {
				res.Image = img
			}
		}
	}
	logger.WithComponent("app").Info().
		Str("source", req.Source).
		Str("title", res.Title).
		Bool("exported", exported).
		Msg("Capture finished")
	return res, nil
}

func (a *App) buildSource(req Request) (capture.Source, error) {
	var main capture.Source
	switch req.Source {
	case "region":
		if req.Region == nil {
			return nil, errors.New("region source needs a region")
		}
		main = sources.NewRegionSource(a.Capturer, req.Region.Image())
	case "window":
		s, err := a.Sources.New("window")
		if err != nil {
			return nil, err
		}
		if req.Window != 0 {
			ws, ok := s.(*sources.WindowSource)
			if !ok {
				return nil, fmt.Errorf("window source %T cannot select a window", s)
			}
			s = ws.ForWindow(platform.Handle(req.Window))
		}
		main = s
	default:
		s, err := a.Sources.New(req.Source)
		if err != nil {
			return nil, err
		}
		main = s
	}
	mouse, err := a.Sources.New("mouse")
	if err != nil {
		return nil, err
	}
	return capture.StackSource{main, mouse}, nil
}

func (a *App) buildProcessors(names []string) (capture.Processor, error) {
	if len(names) == 0 {
		return nil, nil
	}
	stack := make(capture.StackProcessor, 0, len(names))
	for _, name := range names {
		p, err := a.Processors.New(name)
		if err != nil {
			return nil, err
		}
		stack = append(stack, p)
	}
	return stack, nil
}

// buildDestination resolves designations. name/member picks one member of
// a dynamic family. A single destination is used as is; several are
// exported to through a Picker.
func (a *App) buildDestination(ctx context.Context, designations []string) (capture.Destination, error) {
	var members []destinations.Named
	for _, d := range designations {
		name, _, hasMember := strings.Cut(d, "/")
		dest, err := a.Destinations.New(name)
		if err != nil {
			return nil, err
		}
		if hasMember {
			dest, err = familyMember(ctx, name, d, dest)
			if err != nil {
				return nil, err
			}
		}
		members = append(members, destinations.Named{Designation: d, Destination: dest})
	}
	switch len(members) {
	case 0:
		return nil, errors.New("no destination configured")
	case 1:
		return members[0].Destination, nil
	}
	return destinations.NewPicker(members...), nil
}

// familyMember finds the member of dest designated by designation.
func familyMember(ctx context.Context, name, designation string, dest capture.Destination) (capture.Destination, error) {
	dyn, ok := dest.(capture.DynamicDestination)
	if !ok {
		return nil, fmt.Errorf("destination %q has no members", name)
	}
	members, err := dyn.Destinations(ctx)
	if err != nil {
		return nil, err
	}
	for i, m := range members {
		if memberDesignation(name, i, m) == designation {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", capture.ErrUnknownDesignation, designation)
}
