package destinations

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/logger"
)

// Named pairs a destination with the designation it was built from.
type Named struct {
	Designation string
	Destination capture.Destination
}

// Picker exports a capture to several destinations, in order. It stands in
// for an interactive destination menu: every member gets the capture.
type Picker struct {
	members []Named
}

// NewPicker creates a picker over members.
func NewPicker(members ...Named) *Picker {
	return &Picker{members: members}
}

// Export implements capture.Destination. It reports whether any member made
// an export. Member errors are logged and only returned when no member
// succeeded.
func (p *Picker) Export(ctx context.Context, c *capture.Context) (bool, error) {
	log := logger.WithComponent("destination-picker")

	exported := false
	var errs []error
	for _, m := range p.members {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		ok, err := m.Destination.Export(ctx, c)
		if err != nil {
			log.Error().Err(err).Str("destination", m.Designation).Msg("Export failed")
			errs = append(errs, fmt.Errorf("%s: %w", m.Designation, err))
			continue
		}
		log.Debug().Str("destination", m.Designation).Bool("exported", ok).Msg("Export finished")
		exported = exported || ok
	}
	if !exported && len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return exported, nil
}

// Designations returns the member designations in export order.
func (p *Picker) Designations() []string {
	names := make([]string, len(p.members))
	for i, m := range p.members {
		names[i] = m.Designation
	}
	return names
}
