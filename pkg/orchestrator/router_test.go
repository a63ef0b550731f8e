package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socworks/argus/pkg/models"
)

func TestShouldInvestigate(t *testing.T) {
	t.Run("investigates when triage asks for it", func(t *testing.T) {
		state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})
		state.TriageResult = &models.TriageResult{RequiresInvestigation: true}

		assert.Equal(t, models.StageInvestigate, ShouldInvestigate(state))
	})

	t.Run("skips investigation when triage declines", func(t *testing.T) {
		state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})
		state.TriageResult = &models.TriageResult{RequiresInvestigation: false}

		assert.Equal(t, models.StageDecide, ShouldInvestigate(state))
	})

	t.Run("skips investigation without a triage result", func(t *testing.T) {
		state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

		assert.Equal(t, models.StageDecide, ShouldInvestigate(state))
	})

	t.Run("skips investigation on a failed workflow", func(t *testing.T) {
		state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})
		state.Status = models.StatusFailed
		state.TriageResult = &models.TriageResult{RequiresInvestigation: true}

		assert.Equal(t, models.StageDecide, ShouldInvestigate(state))
	})
}

func TestNextStage(t *testing.T) {
	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})
	state.TriageResult = &models.TriageResult{RequiresInvestigation: true}

	next, err := NextStage(models.StageTriage, state)
	require.NoError(t, err)
	assert.Equal(t, models.StageInvestigate, next)

	next, err = NextStage(models.StageInvestigate, state)
	require.NoError(t, err)
	assert.Equal(t, models.StageDecide, next)

	next, err = NextStage(models.StageDecide, state)
	require.NoError(t, err)
	assert.Equal(t, models.StageRespond, next)

	next, err = NextStage(models.StageRespond, state)
	require.NoError(t, err)
	assert.Equal(t, models.StageDone, next)

	_, err = NextStage(models.StageDone, state)
	assert.ErrorIs(t, err, ErrUnknownStage)
}
