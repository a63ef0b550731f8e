// Package triage implements the first analysis stage: a fast noise filter
// that classifies the alert and decides whether a deeper investigation is
// worth running.
package triage

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

const systemPrompt = `You are a Level 1 SOC analyst performing initial alert triage.
Your job is to quickly assess incoming alerts, filter out noise, and flag
alerts that need deeper investigation. Base your assessment strictly on the
alert data provided. Always respond with valid JSON and nothing else.`

type Executor struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewExecutor(provider llm.Provider, logger *slog.Logger) *Executor {
	return &Executor{
		provider: provider,
		logger:   logger.With("module", "stages.triage"),
	}
}

func (e *Executor) Stage() models.Stage {
	return models.StageTriage
}

type response struct {
	Verdict               string   `json:"verdict"`
	Confidence            float64  `json:"confidence"`
	NoiseScore            float64  `json:"noise_score"`
	RequiresInvestigation bool     `json:"requires_investigation"`
	KeyIndicators         []string `json:"key_indicators"`
	Reasoning             string   `json:"reasoning"`
}

func (e *Executor) Execute(ctx context.Context, state *models.WorkflowState) (any, error) {
	e.logger.InfoContext(ctx, "Running triage", "alert_id", state.Alert.AlertID)

	content, err := e.provider.Complete(ctx, llm.Request{
		Stage:       models.StageTriage,
		System:      systemPrompt,
		Prompt:      buildPrompt(state.Alert),
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("completing triage prompt: %w", err)
	}

	var parsed response
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing triage response: %w", err)
	}

	verdict := models.Verdict(parsed.Verdict)
	if !verdict.Valid() {
		e.logger.WarnContext(ctx, "Unrecognized triage verdict, marking unknown", "verdict", parsed.Verdict)
		verdict = models.VerdictUnknown
	}

	return &models.TriageResult{
		Verdict:               verdict,
		Confidence:            parsed.Confidence,
		NoiseScore:            parsed.NoiseScore,
		RequiresInvestigation: parsed.RequiresInvestigation,
		KeyIndicators:         parsed.KeyIndicators,
		Reasoning:             parsed.Reasoning,
		Timestamp:             time.Now().UTC(),
	}, nil
}

func buildPrompt(alert models.Alert) string {
	return fmt.Sprintf(`Analyze the following alert and provide triage assessment:

%s

Provide your triage assessment in the following JSON format:
{
    "verdict": "true_positive|false_positive|benign|suspicious|unknown",
    "confidence": 0.0-1.0,
    "noise_score": 0.0-1.0,
    "requires_investigation": true|false,
    "key_indicators": ["indicator1", "indicator2"],
    "reasoning": "Your 2-3 sentence explanation"
}`, stages.FormatAlert(alert))
}
