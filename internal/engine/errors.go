package engine

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrDegenerateSource means the compositor reported an empty source size
	// for the window; another capture path should be tried.
	ErrDegenerateSource = errors.New("compositor reports an empty window source")

	// ErrFallbackRequested means the compositor path declined the window
	// because a cheaper block copy gives the same result.
	ErrFallbackRequested = errors.New("window does not fit the desktop, block copy requested")
)

// NativeResourceError is a failed native allocation or copy.
type NativeResourceError struct {
	Op   string
	Rect image.Rectangle
	Err  error
}

func (e *NativeResourceError) Error() string {
	return fmt.Sprintf("native %s failed for %dx%d at %v: %v",
		e.Op, e.Rect.Dx(), e.Rect.Dy(), e.Rect.Min, e.Err)
}

func (e *NativeResourceError) Unwrap() error { return e.Err }

// TransientDecodeError is a decode fault that persisted through every retry.
type TransientDecodeError struct {
	Attempts int
	Err      error
}

func (e *TransientDecodeError) Error() string {
	return fmt.Sprintf("decode failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientDecodeError) Unwrap() error { return e.Err }

// CompositorAPIError is a failing thumbnail or host window call.
type CompositorAPIError struct {
	Op  string
	Err error
}

func (e *CompositorAPIError) Error() string {
	return fmt.Sprintf("compositor %s: %v", e.Op, e.Err)
}

func (e *CompositorAPIError) Unwrap() error { return e.Err }

// TransientCaptureError is a failure inside the two-pass transparent
// capture. The compositor path recovers from it with a single opaque pass.
type TransientCaptureError struct {
	Pass string
	Err  error
}

func (e *TransientCaptureError) Error() string {
	return fmt.Sprintf("transparent capture (%s pass): %v", e.Pass, e.Err)
}

func (e *TransientCaptureError) Unwrap() error { return e.Err }

// ShouldFallback reports whether err from the compositor path means the
// caller should retry the window with a block copy.
func ShouldFallback(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDegenerateSource) || errors.Is(err, ErrFallbackRequested) {
		return true
	}
	var apiErr *CompositorAPIError
	return errors.As(err, &apiErr)
}
