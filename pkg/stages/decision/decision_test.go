package decision

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socworks/argus/pkg/llm"
	"github.com/socworks/argus/pkg/models"
)

type stubProvider struct {
	content string
	lastReq llm.Request
}

func (s *stubProvider) Name() string {
	return "stub"
}

func (s *stubProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	s.lastReq = req

	return s.content, nil
}

func decidedState() *models.WorkflowState {
	state := models.NewWorkflowState("wf-1", models.Alert{
		AlertID:     "ALERT-1",
		RuleID:      "RULE-1",
		Severity:    "critical",
		Description: "Encoded PowerShell execution",
	})
	state.TriageResult = &models.TriageResult{
		Verdict:               models.VerdictSuspicious,
		RequiresInvestigation: true,
	}
	state.InvestigationResult = &models.InvestigationResult{
		Summary: "Lateral movement confirmed",
		IOCs:    []string{"192.168.100.55"},
	}

	return state
}

func TestExecutor_Stage(t *testing.T) {
	e := NewExecutor(&stubProvider{}, slog.Default())
	assert.Equal(t, models.StageDecide, e.Stage())
}

func TestExecutor_ParsesDecision(t *testing.T) {
	provider := &stubProvider{content: `{
		"final_verdict": "true_positive",
		"priority": "critical",
		"confidence": 0.93,
		"recommended_actions": ["Isolate affected systems"],
		"escalation_required": true,
		"estimated_impact": "Account compromise",
		"reasoning": "Corroborated by investigation."
	}`}

	e := NewExecutor(provider, slog.Default())

	result, err := e.Execute(context.Background(), decidedState())
	require.NoError(t, err)

	decision, ok := result.(*models.DecisionResult)
	require.True(t, ok)

	assert.Equal(t, models.VerdictTruePositive, decision.FinalVerdict)
	assert.Equal(t, models.PriorityCritical, decision.Priority)
	assert.True(t, decision.EscalationRequired)
	assert.False(t, decision.Timestamp.IsZero())

	// Earlier stage results feed the prompt.
	assert.Contains(t, provider.lastReq.Prompt, "Lateral movement confirmed")
	assert.Contains(t, provider.lastReq.Prompt, "192.168.100.55")
}

func TestExecutor_InvalidEnumsFallBack(t *testing.T) {
	provider := &stubProvider{content: `{
		"final_verdict": "definitely_bad",
		"priority": "urgent",
		"confidence": 0.5,
		"escalation_required": false,
		"reasoning": "x"
	}`}

	e := NewExecutor(provider, slog.Default())

	result, err := e.Execute(context.Background(), decidedState())
	require.NoError(t, err)

	decision := result.(*models.DecisionResult)
	assert.Equal(t, models.VerdictUnknown, decision.FinalVerdict)
	assert.Equal(t, models.PriorityMedium, decision.Priority)
}

func TestExecutor_WithoutInvestigation(t *testing.T) {
	provider := &stubProvider{content: `{
		"final_verdict": "false_positive",
		"priority": "low",
		"confidence": 0.8,
		"escalation_required": false,
		"reasoning": "Routine maintenance window."
	}`}

	state := decidedState()
	state.InvestigationResult = nil

	e := NewExecutor(provider, slog.Default())

	result, err := e.Execute(context.Background(), state)
	require.NoError(t, err)

	decision := result.(*models.DecisionResult)
	assert.Equal(t, models.VerdictFalsePositive, decision.FinalVerdict)
	assert.Contains(t, provider.lastReq.Prompt, "Not available")
}
