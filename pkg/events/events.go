// Package events defines the lifecycle events emitted while a workflow moves
// through the analysis pipeline.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/socworks/argus/pkg/models"
)

type EventType string

// Topic is the bus topic carrying all workflow lifecycle events.
const Topic = "argus.workflow.events"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Per-stage lifecycle events.
	StageStartedEvent   EventType = "stage.started"
	StageCompletedEvent EventType = "stage.completed"
	StageFailedEvent    EventType = "stage.failed"

	// WorkflowFinalEvent closes a workflow's event stream.
	WorkflowFinalEvent EventType = "workflow.final"

	// WorkflowStatusEvent is the synthetic snapshot sent to an observer that
	// subscribes after events were already published. Never emitted by the
	// orchestrator itself.
	WorkflowStatusEvent EventType = "workflow.status"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// GetWorkflowID identifies the workflow an event belongs to.
func (b BaseEvent) GetWorkflowID() string {
	return b.WorkflowID
}

type StageStarted struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
}

func (e StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageCompleted struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
	// Result is a snapshot of the stage's result as it was stored.
	Result any `json:"result,omitempty"`
}

func (e StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

type StageFailed struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
	Error string       `json:"error"`
	Fatal bool         `json:"fatal"`
}

func (e StageFailed) GetType() EventType {
	return StageFailedEvent
}

type WorkflowFinal struct {
	BaseEvent

	Status     models.AlertStatus `json:"status"`
	Verdict    *models.Verdict    `json:"verdict,omitempty"`
	Priority   *models.Priority   `json:"priority,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
	DurationMs int64              `json:"duration_ms"`
}

func (e WorkflowFinal) GetType() EventType {
	return WorkflowFinalEvent
}

type WorkflowStatus struct {
	BaseEvent

	Status       models.AlertStatus `json:"status"`
	CurrentStage models.Stage       `json:"current_stage,omitempty"`
	Verdict      *models.Verdict    `json:"verdict,omitempty"`
	Priority     *models.Priority   `json:"priority,omitempty"`
	Errors       []string           `json:"errors,omitempty"`
}

func (e WorkflowStatus) GetType() EventType {
	return WorkflowStatusEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// NewWorkflowStatus builds the synthetic snapshot event for a late subscriber
// from the workflow's last checkpointed summary.
func NewWorkflowStatus(summary models.Summary) WorkflowStatus {
	return WorkflowStatus{
		BaseEvent:    NewBaseEvent(WorkflowStatusEvent, summary.WorkflowID),
		Status:       summary.Status,
		CurrentStage: summary.CurrentStage,
		Verdict:      summary.Verdict,
		Priority:     summary.Priority,
		Errors:       summary.Errors,
	}
}
