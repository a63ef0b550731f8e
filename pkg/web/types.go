// Package web provides the HTTP surface over the alert processing pipeline.
package web

import "github.com/socworks/argus/pkg/models"

// BatchRequest is the request body for submitting several alerts at once.
type BatchRequest struct {
	Alerts []models.Alert `json:"alerts" validate:"required,min=1,dive"`
}

// SubmitResponse acknowledges an accepted alert. The workflow runs in the
// background; poll the status endpoint or attach to the event stream.
type SubmitResponse struct {
	WorkflowID string             `json:"workflow_id"`
	AlertID    string             `json:"alert_id"`
	Status     models.AlertStatus `json:"status"`
	Message    string             `json:"message"`
}

// BatchResponse acknowledges an accepted batch.
type BatchResponse struct {
	Submitted int              `json:"submitted"`
	Workflows []SubmitResponse `json:"workflows"`
}

// StatusResponse is the workflow summary, with the full per-stage payloads
// attached only when explicitly requested.
type StatusResponse struct {
	models.Summary

	Details *models.Details `json:"details,omitempty"`
}

// ListResponse wraps a filtered workflow listing.
type ListResponse struct {
	Workflows  []models.Summary `json:"workflows"`
	TotalCount int              `json:"total_count"`
}

// ClearResponse reports how many workflows a clear removed.
type ClearResponse struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}

func newSubmitResponse(summary models.Summary) SubmitResponse {
	return SubmitResponse{
		WorkflowID: summary.WorkflowID,
		AlertID:    summary.AlertID,
		Status:     summary.Status,
		Message:    "Alert accepted for processing",
	}
}
