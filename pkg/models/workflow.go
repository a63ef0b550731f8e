package models

import (
	"fmt"
	"time"
)

// Stage names one step of the analysis pipeline.
type Stage string

const (
	StageTriage      Stage = "triage"
	StageInvestigate Stage = "investigate"
	StageDecide      Stage = "decide"
	StageRespond     Stage = "respond"

	// StageDone is the router's terminal marker, never executed.
	StageDone Stage = "done"
)

// Stages lists the executable stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageTriage, StageInvestigate, StageDecide, StageRespond}
}

// AlertStatus is the lifecycle status of a workflow. Exactly one status holds
// at any instant; completed and failed are terminal.
type AlertStatus string

const (
	StatusPending       AlertStatus = "pending"
	StatusTriaging      AlertStatus = "triaging"
	StatusInvestigating AlertStatus = "investigating"
	StatusDeciding      AlertStatus = "deciding"
	StatusResponding    AlertStatus = "responding"
	StatusCompleted     AlertStatus = "completed"
	StatusFailed        AlertStatus = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s AlertStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunningStatus maps a stage to the status that holds while it executes.
func RunningStatus(stage Stage) (AlertStatus, error) {
	switch stage {
	case StageTriage:
		return StatusTriaging, nil
	case StageInvestigate:
		return StatusInvestigating, nil
	case StageDecide:
		return StatusDeciding, nil
	case StageRespond:
		return StatusResponding, nil
	default:
		return "", fmt.Errorf("no running status for stage %q", stage)
	}
}

// WorkflowState is the mutable record threaded through all stages of one
// workflow. It is written exclusively by the workflow's background runner,
// one stage at a time; everyone else reads checkpointed snapshots from the
// registry.
type WorkflowState struct {
	WorkflowID   string      `json:"workflow_id"`
	Alert        Alert       `json:"alert"`
	Status       AlertStatus `json:"status"`
	CurrentStage Stage       `json:"current_stage,omitempty"`

	TriageResult        *TriageResult        `json:"triage_result,omitempty"`
	InvestigationResult *InvestigationResult `json:"investigation_result,omitempty"`
	DecisionResult      *DecisionResult      `json:"decision_result,omitempty"`
	ResponseResult      *ResponseResult      `json:"response_result,omitempty"`

	// Errors grows monotonically, one entry per failed stage. Never cleared.
	Errors []string `json:"errors,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowState creates a pending workflow for the given alert.
func NewWorkflowState(workflowID string, alert Alert) *WorkflowState {
	return &WorkflowState{
		WorkflowID: workflowID,
		Alert:      alert,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the workflow reached completed or failed.
func (w *WorkflowState) Terminal() bool {
	return w.Status.Terminal()
}

// ProcessingTime returns completed_at - started_at in seconds, or nil while
// the workflow is still running.
func (w *WorkflowState) ProcessingTime() *float64 {
	if w.CompletedAt == nil {
		return nil
	}

	seconds := w.CompletedAt.Sub(w.StartedAt).Seconds()

	return &seconds
}

// AppendError records a stage failure description.
func (w *WorkflowState) AppendError(format string, args ...any) {
	w.Errors = append(w.Errors, fmt.Sprintf(format, args...))
}

// SetResult stores a stage executor's result in the slot matching the stage.
func (w *WorkflowState) SetResult(stage Stage, result any) error {
	switch stage {
	case StageTriage:
		r, ok := result.(*TriageResult)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *TriageResult", stage, result)
		}

		w.TriageResult = r
	case StageInvestigate:
		r, ok := result.(*InvestigationResult)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *InvestigationResult", stage, result)
		}

		w.InvestigationResult = r
	case StageDecide:
		r, ok := result.(*DecisionResult)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *DecisionResult", stage, result)
		}

		w.DecisionResult = r
	case StageRespond:
		r, ok := result.(*ResponseResult)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *ResponseResult", stage, result)
		}

		w.ResponseResult = r
	default:
		return fmt.Errorf("no result slot for stage %q", stage)
	}

	return nil
}

// Verdict returns the final verdict once the decision stage produced one.
func (w *WorkflowState) Verdict() *Verdict {
	if w.DecisionResult == nil {
		return nil
	}

	v := w.DecisionResult.FinalVerdict

	return &v
}

// Priority returns the decided priority once the decision stage produced one.
func (w *WorkflowState) Priority() *Priority {
	if w.DecisionResult == nil {
		return nil
	}

	p := w.DecisionResult.Priority

	return &p
}

// Clone returns a deep copy safe to hand to readers while the runner keeps
// mutating the original.
func (w *WorkflowState) Clone() *WorkflowState {
	clone := *w

	clone.Alert.Mitre.Tactics = copyStrings(w.Alert.Mitre.Tactics)
	clone.Alert.Mitre.Techniques = copyStrings(w.Alert.Mitre.Techniques)
	clone.Alert.RawData = copyMap(w.Alert.RawData)
	clone.Errors = copyStrings(w.Errors)

	if w.TriageResult != nil {
		r := *w.TriageResult
		r.KeyIndicators = copyStrings(w.TriageResult.KeyIndicators)
		clone.TriageResult = &r
	}

	if w.InvestigationResult != nil {
		r := *w.InvestigationResult
		r.RelatedEvents = copyStrings(w.InvestigationResult.RelatedEvents)
		r.IOCs = copyStrings(w.InvestigationResult.IOCs)
		r.AttackChain = copyStrings(w.InvestigationResult.AttackChain)
		clone.InvestigationResult = &r
	}

	if w.DecisionResult != nil {
		r := *w.DecisionResult
		r.RecommendedActions = copyStrings(w.DecisionResult.RecommendedActions)
		clone.DecisionResult = &r
	}

	if w.ResponseResult != nil {
		r := *w.ResponseResult
		r.ActionsTaken = copyStrings(w.ResponseResult.ActionsTaken)
		r.NotificationsSent = copyStrings(w.ResponseResult.NotificationsSent)
		clone.ResponseResult = &r
	}

	if w.CompletedAt != nil {
		t := *w.CompletedAt
		clone.CompletedAt = &t
	}

	return &clone
}

// Summary is the read-only projection served by status and list queries.
// It never exposes raw per-stage result payloads.
type Summary struct {
	WorkflowID            string      `json:"workflow_id"`
	AlertID               string      `json:"alert_id"`
	Status                AlertStatus `json:"status"`
	CurrentStage          Stage       `json:"current_stage,omitempty"`
	Verdict               *Verdict    `json:"verdict,omitempty"`
	Priority              *Priority   `json:"priority,omitempty"`
	StartedAt             time.Time   `json:"started_at"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	ProcessingTimeSeconds *float64    `json:"processing_time_seconds,omitempty"`
	Errors                []string    `json:"errors,omitempty"`
}

// Summary projects the workflow into its read-only summary form.
func (w *WorkflowState) Summary() Summary {
	return Summary{
		WorkflowID:            w.WorkflowID,
		AlertID:               w.Alert.AlertID,
		Status:                w.Status,
		CurrentStage:          w.CurrentStage,
		Verdict:               w.Verdict(),
		Priority:              w.Priority(),
		StartedAt:             w.StartedAt,
		CompletedAt:           w.CompletedAt,
		ProcessingTimeSeconds: w.ProcessingTime(),
		Errors:                copyStrings(w.Errors),
	}
}

// Details carries the full per-stage payloads, returned only on explicit
// request.
type Details struct {
	Alert         Alert                `json:"alert"`
	Triage        *TriageResult        `json:"triage,omitempty"`
	Investigation *InvestigationResult `json:"investigation,omitempty"`
	Decision      *DecisionResult      `json:"decision,omitempty"`
	Response      *ResponseResult      `json:"response,omitempty"`
}

// Details projects the workflow's full stage payloads.
func (w *WorkflowState) Details() Details {
	clone := w.Clone()

	return Details{
		Alert:         clone.Alert,
		Triage:        clone.TriageResult,
		Investigation: clone.InvestigationResult,
		Decision:      clone.DecisionResult,
		Response:      clone.ResponseResult,
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}

	out := make([]string, len(in))
	copy(out, in)

	return out
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
