package destinations

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/output"
)

// StreamDestination publishes the rendered capture to a live output.
type StreamDestination struct {
	out output.Output
}

// NewStreamDestination creates the destination.
func NewStreamDestination(out output.Output) *StreamDestination {
	return &StreamDestination{out: out}
}

// Export implements capture.Destination. It reports false when the output is
// not running.
func (d *StreamDestination) Export(ctx context.Context, c *capture.Context) (bool, error) {
	if !d.out.IsRunning() {
		logger.WithComponent("stream-destination").Warn().
			Str("output", d.out.Name()).
			Msg("Output not running, capture not streamed")
		return false, nil
	}
	img, err := renderContext(c)
	if err != nil {
		return false, err
	}
	if err := d.out.WriteFrame(img); err != nil {
		return false, fmt.Errorf("failed to publish frame: %w", err)
	}
	return true, nil
}

// Description implements capture.Describer.
func (d *StreamDestination) Description() string {
	return "Publish to " + d.out.Name()
}
