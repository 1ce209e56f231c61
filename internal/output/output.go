package output

import (
	"image"
)

// Output is a live sink for rendered captures, such as an HTTP stream that
// always shows the most recent capture.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame publishes a rendered capture.
	WriteFrame(frame image.Image) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	// Quality is the JPEG quality frames are encoded with.
	Quality int
	// ClientBuffer is how many frames a slow client may lag behind before
	// frames are dropped for it.
	ClientBuffer int
}
