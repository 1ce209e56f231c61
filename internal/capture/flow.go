package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/snapflow/internal/logger"
)

// ErrMissingStage is wrapped by MissingStageError.
var ErrMissingStage = errors.New("missing pipeline stage")

// MissingStageError means a FlowAction was executed without a required
// field. It is a programming error, not a pipeline failure.
type MissingStageError struct {
	Stage string
}

func (e *MissingStageError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingStage, e.Stage)
}

func (e *MissingStageError) Unwrap() error { return ErrMissingStage }

// FlowAction runs the basic capture flow: import, process, export.
type FlowAction struct {
	Context     *Context
	Source      Source
	Processor   Processor // optional
	Destination Destination
}

// Execute runs the stages strictly in order. It returns false without error
// when the source had nothing to import. The processor's verdict is logged
// but does not stop the export; the result is the destination's. Stage
// errors are returned as they are, without retries.
func (a *FlowAction) Execute(ctx context.Context) (bool, error) {
	switch {
	case a.Context == nil:
		return false, &MissingStageError{Stage: "Context"}
	case a.Source == nil:
		return false, &MissingStageError{Stage: "Source"}
	case a.Destination == nil:
		return false, &MissingStageError{Stage: "Destination"}
	}
	log := logger.WithComponent("capture-flow")

	ok, err := a.Source.Import(ctx, a.Context)
	if err != nil {
		return false, fmt.Errorf("import: %w", err)
	}
	if !ok {
		log.Debug().Msg("Source had nothing to import")
		return false, nil
	}

	if a.Processor != nil {
		ok, err := a.Processor.Process(ctx, a.Context)
		if err != nil {
			return false, fmt.Errorf("process: %w", err)
		}
		if !ok {
			log.Warn().Msg("Processing reported a failure, exporting anyway")
		}
	}

	exported, err := a.Destination.Export(ctx, a.Context)
	if err != nil {
		return false, fmt.Errorf("export: %w", err)
	}
	log.Debug().Bool("exported", exported).Str("title", a.Context.Title).Msg("Capture flow finished")
	return exported, nil
}
