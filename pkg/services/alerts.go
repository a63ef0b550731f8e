package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/socworks/argus/pkg/metrics"
	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/registry"
)

// Processor runs a workflow to a terminal status.
type Processor interface {
	Process(ctx context.Context, state *models.WorkflowState) (*models.WorkflowState, error)
}

// AlertService accepts alert submissions, spawns their background runners,
// and serves read queries over the registry and the metrics collector.
type AlertService struct {
	registry  *registry.Registry
	processor Processor
	collector *metrics.Collector
	validate  *validator.Validate
	sem       chan struct{}
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewAlertService(
	reg *registry.Registry,
	processor Processor,
	collector *metrics.Collector,
	maxConcurrent int,
	logger *slog.Logger,
) *AlertService {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	return &AlertService{
		registry:  reg,
		processor: processor,
		collector: collector,
		validate:  validator.New(),
		sem:       make(chan struct{}, maxConcurrent),
		logger:    logger.With("module", "services.alerts"),
	}
}

// Submit validates the alert, registers a pending workflow, and starts its
// background runner. It returns as soon as the workflow is registered; the
// summary reflects the pending state, not the eventual outcome.
func (s *AlertService) Submit(ctx context.Context, alert models.Alert) (models.Summary, error) {
	if err := s.validate.Struct(alert); err != nil {
		return models.Summary{}, NewValidationError("submit", err.Error(), ErrInvalidAlert)
	}

	workflowID := uuid.New().String()
	state := models.NewWorkflowState(workflowID, alert)

	if err := s.registry.Create(state); err != nil {
		return models.Summary{}, fmt.Errorf("registering workflow: %w", err)
	}

	s.logger.Info("Alert accepted", "workflow_id", workflowID, "alert_id", alert.AlertID)

	s.wg.Add(1)

	// The runner outlives the submission request, so it detaches from the
	// request's cancellation while keeping its values for tracing.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer s.wg.Done()

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		if _, err := s.processor.Process(runCtx, state); err != nil {
			s.logger.Error("Workflow processing rejected",
				"workflow_id", workflowID, "error", err)
		}
	}()

	return state.Summary(), nil
}

// SubmitBatch validates every alert up front and submits them all; one bad
// alert rejects the whole batch before any workflow starts.
func (s *AlertService) SubmitBatch(ctx context.Context, alerts []models.Alert) ([]models.Summary, error) {
	if len(alerts) == 0 {
		return nil, NewValidationError("submit_batch", "empty batch", ErrEmptyBatch)
	}

	for i, alert := range alerts {
		if err := s.validate.Struct(alert); err != nil {
			return nil, NewValidationError("submit_batch",
				fmt.Sprintf("alert %d: %v", i, err), ErrInvalidAlert)
		}
	}

	summaries := make([]models.Summary, 0, len(alerts))

	for _, alert := range alerts {
		summary, err := s.Submit(ctx, alert)
		if err != nil {
			return summaries, err
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Status returns the summary projection of one workflow.
func (s *AlertService) Status(workflowID string) (models.Summary, error) {
	return s.registry.Summary(workflowID)
}

// Details returns the full per-stage payloads of one workflow.
func (s *AlertService) Details(workflowID string) (models.Details, error) {
	state, err := s.registry.Get(workflowID)
	if err != nil {
		return models.Details{}, err
	}

	return state.Details(), nil
}

// List returns workflow summaries matching the filter.
func (s *AlertService) List(filter registry.Filter) []models.Summary {
	return s.registry.List(filter)
}

// ParseFilter builds a registry filter from raw query values. Empty strings
// match everything.
func ParseFilter(status, verdict, priority string, limit int) (registry.Filter, error) {
	filter := registry.Filter{Limit: limit}

	if status != "" {
		st := models.AlertStatus(status)
		switch st {
		case models.StatusPending, models.StatusTriaging, models.StatusInvestigating,
			models.StatusDeciding, models.StatusResponding,
			models.StatusCompleted, models.StatusFailed:
			filter.Status = &st
		default:
			return registry.Filter{}, NewValidationError("list",
				fmt.Sprintf("unknown status %q", status), ErrInvalidStatus)
		}
	}

	if verdict != "" {
		v := models.Verdict(verdict)
		if !v.Valid() {
			return registry.Filter{}, NewValidationError("list",
				fmt.Sprintf("unknown verdict %q", verdict), ErrInvalidVerdict)
		}

		filter.Verdict = &v
	}

	if priority != "" {
		p := models.Priority(priority)
		if !p.Valid() {
			return registry.Filter{}, NewValidationError("list",
				fmt.Sprintf("unknown priority %q", priority), ErrInvalidPriority)
		}

		filter.Priority = &p
	}

	return filter, nil
}

// Metrics returns the current counters with the in-progress gauge filled from
// the registry.
func (s *AlertService) Metrics() metrics.Snapshot {
	snapshot := s.collector.Snapshot()
	snapshot.AlertsInProgress = int64(s.registry.InProgress())

	return snapshot
}

// Clear wipes the registry and resets the metrics counters. Running workflows
// keep executing but their checkpoints after the wipe fail and are dropped.
func (s *AlertService) Clear() int {
	cleared := s.registry.Count()
	s.registry.ClearAll()
	s.collector.Reset()

	s.logger.Info("Cleared workflows and metrics", "workflows", cleared)

	return cleared
}

// Wait blocks until every background runner spawned so far has finished.
func (s *AlertService) Wait() {
	s.wg.Wait()
}
