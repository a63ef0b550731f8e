// Package response implements the closing stage that turns the decision into
// concrete response actions, a tracking ticket, and stakeholder notifications.
package response

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

const temperature = 0.2

const systemPrompt = `You are a SOC incident responder executing the handling plan for an alert.
Translate the decision into concrete response actions, create a tracking
ticket, and notify the right stakeholders for the assigned priority. Always
respond with valid JSON and nothing else.`

type Executor struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewExecutor(provider llm.Provider, logger *slog.Logger) *Executor {
	return &Executor{
		provider: provider,
		logger:   logger.With("module", "stages.response"),
	}
}

func (e *Executor) Stage() models.Stage {
	return models.StageRespond
}

type parsedResponse struct {
	ActionsTaken      []string `json:"actions_taken"`
	TicketID          string   `json:"ticket_id"`
	NotificationsSent []string `json:"notifications_sent"`
	Summary           string   `json:"summary"`
}

func (e *Executor) Execute(ctx context.Context, state *models.WorkflowState) (any, error) {
	e.logger.InfoContext(ctx, "Running response", "alert_id", state.Alert.AlertID)

	content, err := e.provider.Complete(ctx, llm.Request{
		Stage:       models.StageRespond,
		System:      systemPrompt,
		Prompt:      buildPrompt(state),
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("completing response prompt: %w", err)
	}

	var parsed parsedResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing response stage output: %w", err)
	}

	if parsed.TicketID == "" {
		suffix := state.WorkflowID
		if len(suffix) > 4 {
			suffix = suffix[:4]
		}
		parsed.TicketID = fmt.Sprintf("INC-%s-%s", time.Now().UTC().Format("20060102"), suffix)
	}

	return &models.ResponseResult{
		ActionsTaken:      parsed.ActionsTaken,
		TicketID:          parsed.TicketID,
		NotificationsSent: parsed.NotificationsSent,
		Summary:           parsed.Summary,
		Timestamp:         time.Now().UTC(),
	}, nil
}

func buildPrompt(state *models.WorkflowState) string {
	return fmt.Sprintf(`Execute the response plan for the following alert:

%s

DECISION:
%s

Provide the response record in the following JSON format:
{
    "actions_taken": ["action1", "action2"],
    "ticket_id": "INC-YYYYMMDD-NNNN",
    "notifications_sent": ["recipient1", "recipient2"],
    "summary": "1-2 sentence summary of the response"
}`, stages.FormatAlert(state.Alert), stages.FormatResult(state.DecisionResult))
}
