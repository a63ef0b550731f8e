// Package decision implements the stage that weighs triage and investigation
// output into a final verdict, priority, and handling plan.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/socworks/argus/pkg/llm"
	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/stages"
)

const temperature = 0.1

const systemPrompt = `You are a senior SOC analyst making the final call on an alert.
Weigh the triage assessment and any investigation findings into a final
verdict, assign a handling priority, and recommend concrete actions. Be
decisive; escalate only when the evidence warrants it. Always respond with
valid JSON and nothing else.`

type Executor struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewExecutor(provider llm.Provider, logger *slog.Logger) *Executor {
	return &Executor{
		provider: provider,
		logger:   logger.With("module", "stages.decision"),
	}
}

func (e *Executor) Stage() models.Stage {
	return models.StageDecide
}

type response struct {
	FinalVerdict       string   `json:"final_verdict"`
	Priority           string   `json:"priority"`
	Confidence         float64  `json:"confidence"`
	RecommendedActions []string `json:"recommended_actions"`
	EscalationRequired bool     `json:"escalation_required"`
	EstimatedImpact    string   `json:"estimated_impact"`
	Reasoning          string   `json:"reasoning"`
}

func (e *Executor) Execute(ctx context.Context, state *models.WorkflowState) (any, error) {
	e.logger.InfoContext(ctx, "Running decision", "alert_id", state.Alert.AlertID)

	content, err := e.provider.Complete(ctx, llm.Request{
		Stage:       models.StageDecide,
		System:      systemPrompt,
		Prompt:      buildPrompt(state),
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("completing decision prompt: %w", err)
	}

	var parsed response
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing decision response: %w", err)
	}

	verdict := models.Verdict(parsed.FinalVerdict)
	if !verdict.Valid() {
		e.logger.WarnContext(ctx, "Unrecognized final verdict, marking unknown", "verdict", parsed.FinalVerdict)
		verdict = models.VerdictUnknown
	}

	priority := models.Priority(parsed.Priority)
	if !priority.Valid() {
		e.logger.WarnContext(ctx, "Unrecognized priority, defaulting to medium", "priority", parsed.Priority)
		priority = models.PriorityMedium
	}

	return &models.DecisionResult{
		FinalVerdict:       verdict,
		Priority:           priority,
		Confidence:         parsed.Confidence,
		RecommendedActions: parsed.RecommendedActions,
		EscalationRequired: parsed.EscalationRequired,
		EstimatedImpact:    parsed.EstimatedImpact,
		Reasoning:          parsed.Reasoning,
		Timestamp:          time.Now().UTC(),
	}, nil
}

func buildPrompt(state *models.WorkflowState) string {
	return fmt.Sprintf(`Make the final determination for the following alert:

%s

TRIAGE ASSESSMENT:
%s

INVESTIGATION FINDINGS:
%s

Provide your decision in the following JSON format:
{
    "final_verdict": "true_positive|false_positive|benign|suspicious|unknown",
    "priority": "critical|high|medium|low|informational",
    "confidence": 0.0-1.0,
    "recommended_actions": ["action1", "action2"],
    "escalation_required": true|false,
    "estimated_impact": "Expected impact if the threat is real",
    "reasoning": "Your 2-3 sentence explanation"
}`, stages.FormatAlert(state.Alert), stages.FormatResult(state.TriageResult), stages.FormatResult(state.InvestigationResult))
}
