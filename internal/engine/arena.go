// Package engine talks to the native graphics layer to obtain pixels: block
// copies of display memory and compositor thumbnail captures of single
// windows, including two-pass transparency recovery.
package engine

import (
	"errors"
	"fmt"
)

type release struct {
	name string
	fn   func() error
	done bool
}

// Arena collects the releases of native allocations made during one capture
// and runs them in reverse order of acquisition.
type Arena struct {
	releases []*release
}

// Defer registers fn to release an allocation named name. The returned func
// runs the release early; it is a no-op once the arena or the func already
// ran it.
func (a *Arena) Defer(name string, fn func() error) func() error {
	r := &release{name: name, fn: fn}
	a.releases = append(a.releases, r)
	return func() error { return r.run() }
}

func (r *release) run() error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.fn(); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	return nil
}

// Close runs every pending release, newest first, and joins their errors.
// A failing release does not stop the remaining ones.
func (a *Arena) Close() error {
	var errs []error
	for i := len(a.releases) - 1; i >= 0; i-- {
		if err := a.releases[i].run(); err != nil {
			errs = append(errs, err)
		}
	}
	a.releases = nil
	return errors.Join(errs...)
}

// Len returns the number of registered releases still pending.
func (a *Arena) Len() int {
	n := 0
	for _, r := range a.releases {
		if !r.done {
			n++
		}
	}
	return n
}
