package orchestrator

import (
	"errors"
	"fmt"

	"github.com/socworks/argus/pkg/models"
)

var (
	// ErrUnknownStage indicates the router was asked about a stage it does not
	// know. This is an orchestrator bug, not an analysis failure.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNotProcessable indicates Process was handed a workflow that already
	// reached a terminal status.
	ErrNotProcessable = errors.New("workflow is not processable")
)

// StageError wraps a stage executor failure with the stage that produced it.
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
