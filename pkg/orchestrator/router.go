package orchestrator

import (
	"fmt"

	"github.com/socworks/argus/pkg/models"
)

// ShouldInvestigate is the single conditional edge in the pipeline. It
// returns the investigate stage if and only if triage produced a result, the
// workflow has not failed, and triage asked for an investigation; otherwise
// the workflow proceeds straight to the decision stage. Pure function of the
// state it is given.
func ShouldInvestigate(state *models.WorkflowState) models.Stage {
	if state.Status == models.StatusFailed {
		return models.StageDecide
	}

	if state.TriageResult != nil && state.TriageResult.RequiresInvestigation {
		return models.StageInvestigate
	}

	return models.StageDecide
}

// NextStage returns the stage to run after current. All transitions except
// the one out of triage are unconditional.
func NextStage(current models.Stage, state *models.WorkflowState) (models.Stage, error) {
	switch current {
	case models.StageTriage:
		return ShouldInvestigate(state), nil
	case models.StageInvestigate:
		return models.StageDecide, nil
	case models.StageDecide:
		return models.StageRespond, nil
	case models.StageRespond:
		return models.StageDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, current)
	}
}
