// Package destinations provides the capture.Destination implementations
// that turn a capture context into files, stream frames and uploads.
package destinations

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/render"
)

// FileDestination writes the rendered capture into a directory.
type FileDestination struct {
	dir     string
	encoder render.Encoder
}

// NewFileDestination creates a destination writing into dir with enc.
func NewFileDestination(dir string, enc render.Encoder) *FileDestination {
	return &FileDestination{dir: dir, encoder: enc}
}

// Export implements capture.Destination. The file is named after the
// context's Filename; an existing file is never overwritten, a numeric suffix
// is added instead. The written path is stored as file_path metadata.
func (d *FileDestination) Export(ctx context.Context, c *capture.Context) (bool, error) {
	log := logger.WithComponent("file-destination")

	img, err := renderContext(c)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := c.Filename()
	if name == "" {
		name = "capture"
	}
	f, path, err := createUnique(d.dir, name, d.encoder.Extension())
	if err != nil {
		return false, err
	}

	if err := d.encoder.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return false, fmt.Errorf("failed to encode %s: %w", d.encoder.Extension(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	c.AddMetadata("file_path", path)
	log.Info().Str("path", path).Msg("Wrote capture")
	return true, nil
}

// Description implements capture.Describer.
func (d *FileDestination) Description() string {
	return fmt.Sprintf("Save as %s in %s", d.encoder.Extension(), d.dir)
}

func createUnique(dir, name, ext string) (*os.File, string, error) {
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", name, i)
		}
		path := filepath.Join(dir, candidate+"."+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %q in %s", name, dir)
}

// renderContext renders c with the template it names.
func renderContext(c *capture.Context) (image.Image, error) {
	tmpl, err := render.ByName(c.Template)
	if err != nil {
		return nil, err
	}
	return tmpl.Render(c)
}
