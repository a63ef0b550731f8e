// Package orchestrator drives a workflow through the staged analysis
// pipeline: triage, optional investigation, decision, response. It owns the
// state machine, the per-stage fatality rules, and the lifecycle events
// emitted along the way.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/events"
	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/otelhelper"
)

// StageExecutor performs the analysis for one stage. Implementations read
// the state they are given and return their stage's result; they never touch
// another stage's slot.
type StageExecutor interface {
	Stage() models.Stage
	Execute(ctx context.Context, state *models.WorkflowState) (any, error)
}

// Store receives the workflow state checkpoint after every stage.
type Store interface {
	Update(workflowID string, state *models.WorkflowState) error
}

// stageFatal is the per-stage fatality table. Triage and decide failures end
// the workflow: nothing downstream can produce a meaningful result without
// them. An investigation failure is recoverable; the decision stage proceeds
// on partial evidence with the error recorded. A response failure ends the
// workflow failed but leaves all upstream results queryable.
var stageFatal = map[models.Stage]bool{
	models.StageTriage:      true,
	models.StageInvestigate: false,
	models.StageDecide:      true,
	models.StageRespond:     true,
}

type Orchestrator struct {
	executors map[models.Stage]StageExecutor
	publisher eventbus.EventPublisher
	store     Store
	logger    *slog.Logger
	tracer    trace.Tracer
	timeout   time.Duration
}

type Option func(*Orchestrator)

// WithTimeout bounds each Process call. When the deadline passes, the
// workflow fails with a timeout error the same way any fatal stage failure
// does.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = timeout
	}
}

// WithTracer enables per-stage spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func NewOrchestrator(
	executors []StageExecutor,
	publisher eventbus.EventPublisher,
	store Store,
	logger *slog.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	byStage := make(map[models.Stage]StageExecutor, len(executors))

	for _, executor := range executors {
		if _, dup := byStage[executor.Stage()]; dup {
			return nil, fmt.Errorf("duplicate executor for stage %q", executor.Stage())
		}

		byStage[executor.Stage()] = executor
	}

	for _, stage := range models.Stages() {
		if _, ok := byStage[stage]; !ok {
			return nil, fmt.Errorf("missing executor for stage %q", stage)
		}
	}

	o := &Orchestrator{
		executors: byStage,
		publisher: publisher,
		store:     store,
		logger:    logger.With("module", "orchestrator"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// resumeStage maps a running status back to the stage to attempt.
func resumeStage(status models.AlertStatus) (models.Stage, bool) {
	switch status {
	case models.StatusPending:
		return models.StageTriage, true
	case models.StatusTriaging:
		return models.StageTriage, true
	case models.StatusInvestigating:
		return models.StageInvestigate, true
	case models.StatusDeciding:
		return models.StageDecide, true
	case models.StatusResponding:
		return models.StageRespond, true
	default:
		return "", false
	}
}

// Process drives the workflow from its current status to a terminal one.
// Stage failures never surface as a returned error; the terminal state plus
// the populated errors list is the signal. The only error return is a
// workflow that is not in a processable status.
func (o *Orchestrator) Process(ctx context.Context, state *models.WorkflowState) (*models.WorkflowState, error) {
	stage, ok := resumeStage(state.Status)
	if !ok {
		return state, fmt.Errorf("%w: workflow %s has status %s", ErrNotProcessable, state.WorkflowID, state.Status)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	logger := o.logger.With("workflow_id", state.WorkflowID, "alert_id", state.Alert.AlertID)
	logger.Info("Starting workflow processing")

	finalized := false

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic during workflow processing", "panic", r)
			state.AppendError("workflow error: %v", r)
			o.finalize(ctx, state, models.StatusFailed, &finalized)
		}
	}()

	for {
		fatalFailure, err := o.runStage(ctx, logger, state, stage)
		if err != nil && fatalFailure {
			o.finalize(ctx, state, models.StatusFailed, &finalized)

			return state, nil
		}

		next, routeErr := NextStage(stage, state)
		if routeErr != nil {
			// A routing failure is an orchestrator bug. Record it and fail the
			// workflow instead of crashing the background runner.
			logger.Error("Router returned an error", "stage", stage, "error", routeErr)
			state.AppendError("workflow error: %v", routeErr)
			o.finalize(ctx, state, models.StatusFailed, &finalized)

			return state, nil
		}

		if next == models.StageDone {
			o.finalize(ctx, state, models.StatusCompleted, &finalized)

			return state, nil
		}

		stage = next
	}
}

// runStage executes one stage transition. The returned bool reports whether
// a failure must terminate the workflow.
func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, state *models.WorkflowState, stage models.Stage) (bool, error) {
	executor, ok := o.executors[stage]
	if !ok {
		err := fmt.Errorf("%w: no executor for %q", ErrUnknownStage, stage)
		state.AppendError("workflow error: %v", err)

		return true, err
	}

	status, err := models.RunningStatus(stage)
	if err != nil {
		state.AppendError("workflow error: %v", err)

		return true, err
	}

	state.CurrentStage = stage
	state.Status = status
	o.checkpoint(state)

	logger.Info("Executing stage", "stage", stage)
	o.publish(ctx, events.StageStarted{
		BaseEvent: events.NewBaseEvent(events.StageStartedEvent, state.WorkflowID),
		Stage:     stage,
	})

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "stage."+string(stage), trace.WithAttributes(
			attribute.String(otelhelper.WorkflowIDKey, state.WorkflowID),
			attribute.String(otelhelper.AlertIDKey, state.Alert.AlertID),
			attribute.String(otelhelper.StageKey, string(stage)),
		))
		defer span.End()
	}

	result, execErr := executor.Execute(ctx, state)

	if execErr == nil && ctx.Err() != nil {
		execErr = ctx.Err()
	}

	if execErr != nil {
		fatal := stageFatal[stage]

		if errors.Is(execErr, context.DeadlineExceeded) {
			// A blown per-alert deadline ends the workflow regardless of the
			// stage's own fatality rule.
			fatal = true
			execErr = fmt.Errorf("alert processing timed out: %w", execErr)
		}

		logger.Error("Stage failed", "stage", stage, "fatal", fatal, "error", execErr)

		if span != nil {
			otelhelper.SetError(span, execErr)
		}

		state.AppendError("%s error: %v", stageLabel(stage), execErr)
		o.checkpoint(state)

		o.publish(ctx, events.StageFailed{
			BaseEvent: events.NewBaseEvent(events.StageFailedEvent, state.WorkflowID),
			Stage:     stage,
			Error:     execErr.Error(),
			Fatal:     fatal,
		})

		return fatal, &StageError{Stage: stage, Err: execErr}
	}

	if err := state.SetResult(stage, result); err != nil {
		// An executor returning the wrong result type is a wiring bug.
		logger.Error("Stage produced an unexpected result", "stage", stage, "error", err)
		state.AppendError("%s error: %v", stageLabel(stage), err)
		o.checkpoint(state)

		return true, &StageError{Stage: stage, Err: err}
	}

	o.checkpoint(state)

	logger.Info("Stage completed", "stage", stage)
	o.publish(ctx, events.StageCompleted{
		BaseEvent: events.NewBaseEvent(events.StageCompletedEvent, state.WorkflowID),
		Stage:     stage,
		Result:    result,
	})

	return false, nil
}

// finalize applies the terminal transition exactly once and emits the
// workflow-level final event.
func (o *Orchestrator) finalize(ctx context.Context, state *models.WorkflowState, status models.AlertStatus, finalized *bool) {
	if *finalized {
		return
	}

	*finalized = true

	now := time.Now().UTC()
	state.Status = status
	state.CurrentStage = ""
	state.CompletedAt = &now
	o.checkpoint(state)

	o.logger.Info("Workflow finished",
		"workflow_id", state.WorkflowID,
		"status", status,
		"errors", len(state.Errors),
		"duration_ms", now.Sub(state.StartedAt).Milliseconds(),
	)

	o.publish(ctx, events.WorkflowFinal{
		BaseEvent:  events.NewBaseEvent(events.WorkflowFinalEvent, state.WorkflowID),
		Status:     status,
		Verdict:    state.Verdict(),
		Priority:   state.Priority(),
		Errors:     append([]string(nil), state.Errors...),
		DurationMs: now.Sub(state.StartedAt).Milliseconds(),
	})
}

// checkpoint publishes the state snapshot to the registry. Checkpoints are
// the only points readers may observe, never a mid-stage mutation.
func (o *Orchestrator) checkpoint(state *models.WorkflowState) {
	if o.store == nil {
		return
	}

	if err := o.store.Update(state.WorkflowID, state); err != nil {
		o.logger.Warn("Failed to checkpoint workflow state",
			"workflow_id", state.WorkflowID, "error", err)
	}
}

// publish emits a lifecycle event. Delivery problems are swallowed; observers
// are best-effort and must never stall the pipeline.
func (o *Orchestrator) publish(ctx context.Context, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, event.GetWorkflowID(), event); err != nil {
		o.logger.Warn("Failed to publish workflow event",
			"workflow_id", event.GetWorkflowID(), "event_type", event.GetType(), "error", err)
	}
}

func stageLabel(stage models.Stage) string {
	switch stage {
	case models.StageTriage:
		return "Triage"
	case models.StageInvestigate:
		return "Investigation"
	case models.StageDecide:
		return "Decision"
	case models.StageRespond:
		return "Response"
	default:
		return string(stage)
	}
}
