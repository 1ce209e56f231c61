// Package capture holds the data that flows through a capture and the
// Source, Processor and Destination stages that act on it.
package capture

import (
	"image"
	"os"
	"os/user"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/geometry"
)

// DefaultFilenamePattern names captures when no pattern is configured.
const DefaultFilenamePattern = "${YYYY}-${MM}-${DD} ${hh}_${mm}_${ss}_${title}"

// DefaultTemplate renders the capture cropped to CropRect.
const DefaultTemplate = "cropped"

// Defaults are the configured values a new Context starts with.
type Defaults struct {
	FilenamePattern string
	Template        string
	Hostname        string
	User            string
}

// DefaultsFromEnv fills the host and user name from the running process.
func DefaultsFromEnv(pattern, template string) Defaults {
	d := Defaults{FilenamePattern: pattern, Template: template}
	if h, err := os.Hostname(); err == nil {
		d.Hostname = h
	}
	if u, err := user.Current(); err == nil {
		d.User = u.Username
	}
	return d
}

// Context accumulates everything known about one capture, from the moment
// pixels are taken until the export finishes. Stages run one at a time and
// mutate it in place; it is not safe for concurrent use.
type Context struct {
	// Capture is the primary captured image.
	Capture *Element
	// MouseCursor is the pointer image, with Bounds in desktop coordinates.
	MouseCursor *Element
	// Origin is the desktop position of the capture's (0,0).
	Origin image.Point
	// CropRect is the part of the capture to keep, in desktop coordinates.
	CropRect image.Rectangle
	// ClipArea restricts the visible pixels to a non-rectangular area, in
	// desktop coordinates. An empty region clips nothing.
	ClipArea geometry.Region

	Title      string
	Template   string
	CapturedAt time.Time

	filename        *string
	filenamePattern *string
	defaults        Defaults
	metadata        map[string]string
}

// NewContext creates a context taken at now. Empty defaults fall back to
// DefaultFilenamePattern and DefaultTemplate.
func NewContext(defaults Defaults, now time.Time) *Context {
	if defaults.FilenamePattern == "" {
		defaults.FilenamePattern = DefaultFilenamePattern
	}
	if defaults.Template == "" {
		defaults.Template = DefaultTemplate
	}
	return &Context{
		Template:   defaults.Template,
		CapturedAt: now,
		defaults:   defaults,
		metadata:   make(map[string]string),
	}
}

// FilenamePattern returns the explicitly set pattern or the default.
func (c *Context) FilenamePattern() string {
	if c.filenamePattern != nil {
		return *c.filenamePattern
	}
	return c.defaults.FilenamePattern
}

// SetFilenamePattern overrides the pattern used by Filename.
func (c *Context) SetFilenamePattern(pattern string) {
	c.filenamePattern = &pattern
}

// Filename returns the explicitly set name or expands the pattern. It has no
// extension.
func (c *Context) Filename() string {
	if c.filename != nil {
		return *c.filename
	}
	return ExpandPattern(c.FilenamePattern(), c)
}

// SetFilename fixes the file name, bypassing the pattern.
func (c *Context) SetFilename(name string) {
	c.filename = &name
}

// AddMetadata stores value under key. A later write to the same key wins.
func (c *Context) AddMetadata(key, value string) {
	if c.metadata == nil {
		c.metadata = make(map[string]string)
	}
	c.metadata[key] = value
}

// MetadataValue looks up a single metadata entry.
func (c *Context) MetadataValue(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Metadata returns a copy of all metadata.
func (c *Context) Metadata() map[string]string {
	out := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// CaptureRect is the desktop rectangle covered by Capture.
func (c *Context) CaptureRect() image.Rectangle {
	if c.Capture == nil {
		return image.Rectangle{}
	}
	return image.Rectangle{Min: c.Origin, Max: c.Origin.Add(c.Capture.Size())}
}

// SetCapture stores el as the primary capture taken at origin, and resets
// the crop and clip to the whole capture.
func (c *Context) SetCapture(el *Element, origin image.Point) {
	c.Capture = el
	c.Origin = origin
	c.CropRect = c.CaptureRect()
	c.ClipArea = geometry.NewRegion(c.CropRect)
}

// Crop restricts the crop and clip to rect.
func (c *Context) Crop(rect image.Rectangle) {
	c.CropRect = rect
	c.ClipArea = geometry.NewRegion(rect)
}
