// Package investigation implements the optional deep-dive stage that runs
// when triage flags an alert for further analysis.
package investigation

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

const temperature = 0.3

const systemPrompt = `You are a Level 2 SOC analyst performing deep-dive investigation.
Correlate the alert with likely related events, extract indicators of
compromise, reconstruct the attack chain, and attribute the activity where
the evidence supports it. Always respond with valid JSON and nothing else.`

type Executor struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewExecutor(provider llm.Provider, logger *slog.Logger) *Executor {
	return &Executor{
		provider: provider,
		logger:   logger.With("module", "stages.investigation"),
	}
}

func (e *Executor) Stage() models.Stage {
	return models.StageInvestigate
}

type response struct {
	Summary       string   `json:"summary"`
	RelatedEvents []string `json:"related_events"`
	IOCs          []string `json:"iocs"`
	AttackChain   []string `json:"attack_chain"`
	ThreatIntel   string   `json:"threat_intel"`
	Confidence    float64  `json:"confidence"`
}

func (e *Executor) Execute(ctx context.Context, state *models.WorkflowState) (any, error) {
	e.logger.InfoContext(ctx, "Running investigation", "alert_id", state.Alert.AlertID)

	content, err := e.provider.Complete(ctx, llm.Request{
		Stage:       models.StageInvestigate,
		System:      systemPrompt,
		Prompt:      buildPrompt(state),
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("completing investigation prompt: %w", err)
	}

	var parsed response
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing investigation response: %w", err)
	}

	return &models.InvestigationResult{
		Summary:       parsed.Summary,
		RelatedEvents: parsed.RelatedEvents,
		IOCs:          parsed.IOCs,
		AttackChain:   parsed.AttackChain,
		ThreatIntel:   parsed.ThreatIntel,
		Confidence:    parsed.Confidence,
		Timestamp:     time.Now().UTC(),
	}, nil
}

func buildPrompt(state *models.WorkflowState) string {
	return fmt.Sprintf(`Investigate the following alert using the triage assessment as a starting point:

%s

TRIAGE ASSESSMENT:
%s

Provide your investigation findings in the following JSON format:
{
    "summary": "2-3 sentence summary of what happened",
    "related_events": ["event1", "event2"],
    "iocs": ["ioc1", "ioc2"],
    "attack_chain": ["stage1", "stage2"],
    "threat_intel": "Attribution and threat intelligence context",
    "confidence": 0.0-1.0
}`, stages.FormatAlert(state.Alert), stages.FormatResult(state.TriageResult))
}
