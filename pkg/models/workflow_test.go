package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert() Alert {
	return Alert{
		AlertID:     "ALERT-001",
		RuleID:      "RULE-42",
		Severity:    "high",
		Description: "Suspicious login burst",
		Mitre: MitreInfo{
			Tactics:    []string{"Credential Access"},
			Techniques: []string{"T1110"},
		},
		RawData: map[string]any{"failed_attempts": 15},
	}
}

func TestNewWorkflowState(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())

	assert.Equal(t, "wf-1", state.WorkflowID)
	assert.Equal(t, StatusPending, state.Status)
	assert.Empty(t, state.CurrentStage)
	assert.False(t, state.Terminal())
	assert.Nil(t, state.ProcessingTime())
	assert.Nil(t, state.Verdict())
	assert.Nil(t, state.Priority())
}

func TestAlertStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusTriaging.Terminal())
	assert.False(t, StatusInvestigating.Terminal())
	assert.False(t, StatusDeciding.Terminal())
	assert.False(t, StatusResponding.Terminal())
}

func TestRunningStatus(t *testing.T) {
	cases := map[Stage]AlertStatus{
		StageTriage:      StatusTriaging,
		StageInvestigate: StatusInvestigating,
		StageDecide:      StatusDeciding,
		StageRespond:     StatusResponding,
	}

	for stage, want := range cases {
		got, err := RunningStatus(stage)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := RunningStatus(StageDone)
	assert.Error(t, err)
}

func TestSetResult_RejectsWrongType(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())

	err := state.SetResult(StageTriage, &DecisionResult{})
	assert.Error(t, err)
	assert.Nil(t, state.TriageResult)

	require.NoError(t, state.SetResult(StageTriage, &TriageResult{Verdict: VerdictSuspicious}))
	assert.Equal(t, VerdictSuspicious, state.TriageResult.Verdict)
}

func TestWorkflowState_VerdictAndPriority(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())
	require.NoError(t, state.SetResult(StageDecide, &DecisionResult{
		FinalVerdict: VerdictTruePositive,
		Priority:     PriorityCritical,
	}))

	require.NotNil(t, state.Verdict())
	assert.Equal(t, VerdictTruePositive, *state.Verdict())
	require.NotNil(t, state.Priority())
	assert.Equal(t, PriorityCritical, *state.Priority())
}

func TestClone_IsolatesMutations(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())
	state.AppendError("Triage error: boom")
	require.NoError(t, state.SetResult(StageTriage, &TriageResult{
		Verdict:       VerdictSuspicious,
		KeyIndicators: []string{"unusual login time"},
	}))

	clone := state.Clone()

	state.Errors[0] = "mutated"
	state.TriageResult.KeyIndicators[0] = "mutated"
	state.Alert.RawData["failed_attempts"] = 0
	state.Status = StatusFailed

	assert.Equal(t, "Triage error: boom", clone.Errors[0])
	assert.Equal(t, "unusual login time", clone.TriageResult.KeyIndicators[0])
	assert.Equal(t, 15, clone.Alert.RawData["failed_attempts"])
	assert.Equal(t, StatusPending, clone.Status)
}

func TestProcessingTime(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())
	state.StartedAt = time.Now().UTC().Add(-2 * time.Second)

	done := time.Now().UTC()
	state.CompletedAt = &done

	seconds := state.ProcessingTime()
	require.NotNil(t, seconds)
	assert.InDelta(t, 2.0, *seconds, 0.5)
}

func TestSummary_Projection(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())
	state.Status = StatusDeciding
	state.CurrentStage = StageDecide
	state.AppendError("Investigation error: timeout")

	summary := state.Summary()

	assert.Equal(t, "wf-1", summary.WorkflowID)
	assert.Equal(t, "ALERT-001", summary.AlertID)
	assert.Equal(t, StatusDeciding, summary.Status)
	assert.Equal(t, StageDecide, summary.CurrentStage)
	assert.Equal(t, []string{"Investigation error: timeout"}, summary.Errors)

	// The summary owns its error slice.
	state.Errors[0] = "mutated"
	assert.Equal(t, "Investigation error: timeout", summary.Errors[0])
}

func TestDetails_Projection(t *testing.T) {
	state := NewWorkflowState("wf-1", testAlert())
	require.NoError(t, state.SetResult(StageTriage, &TriageResult{Verdict: VerdictBenign}))

	details := state.Details()

	require.NotNil(t, details.Triage)
	assert.Equal(t, VerdictBenign, details.Triage.Verdict)
	assert.Nil(t, details.Investigation)
	assert.Nil(t, details.Decision)
	assert.Nil(t, details.Response)
	assert.Equal(t, "ALERT-001", details.Alert.AlertID)
}

func TestVerdictAndPriorityValidation(t *testing.T) {
	assert.True(t, VerdictTruePositive.Valid())
	assert.True(t, VerdictUnknown.Valid())
	assert.False(t, Verdict("malicious").Valid())

	assert.True(t, PriorityInformational.Valid())
	assert.False(t, Priority("urgent").Valid())
}
