package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/events"
	"github.com/socworks/argus/pkg/models"
)

type stubExecutor struct {
	stage models.Stage
	fn    func(ctx context.Context, state *models.WorkflowState) (any, error)

	mu    sync.Mutex
	calls int
}

func (s *stubExecutor) Stage() models.Stage {
	return s.stage
}

func (s *stubExecutor) Execute(ctx context.Context, state *models.WorkflowState) (any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	return s.fn(ctx, state)
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.GetType())
	}

	return out
}

type recordingStore struct {
	mu       sync.Mutex
	statuses []models.AlertStatus
}

func (s *recordingStore) Update(_ string, state *models.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses = append(s.statuses, state.Status)

	return nil
}

func succeed(stage models.Stage) *stubExecutor {
	return &stubExecutor{stage: stage, fn: func(_ context.Context, _ *models.WorkflowState) (any, error) {
		switch stage {
		case models.StageTriage:
			return &models.TriageResult{Verdict: models.VerdictSuspicious, RequiresInvestigation: true}, nil
		case models.StageInvestigate:
			return &models.InvestigationResult{Summary: "lateral movement"}, nil
		case models.StageDecide:
			return &models.DecisionResult{FinalVerdict: models.VerdictTruePositive, Priority: models.PriorityHigh}, nil
		case models.StageRespond:
			return &models.ResponseResult{TicketID: "INC-20240318-0001"}, nil
		default:
			return nil, errors.New("unexpected stage")
		}
	}}
}

func fail(stage models.Stage, err error) *stubExecutor {
	return &stubExecutor{stage: stage, fn: func(_ context.Context, _ *models.WorkflowState) (any, error) {
		return nil, err
	}}
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func newTestOrchestrator(t *testing.T, publisher eventbus.EventPublisher, store Store, execs ...*stubExecutor) *Orchestrator {
	t.Helper()

	executors := make([]StageExecutor, 0, len(execs))
	for _, e := range execs {
		executors = append(executors, e)
	}

	o, err := NewOrchestrator(executors, publisher, store, testLogger())
	require.NoError(t, err)

	return o
}

func TestNewOrchestrator_RequiresAllStages(t *testing.T) {
	_, err := NewOrchestrator(
		[]StageExecutor{succeed(models.StageTriage)},
		nil, nil, testLogger(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing executor")
}

func TestNewOrchestrator_RejectsDuplicates(t *testing.T) {
	_, err := NewOrchestrator(
		[]StageExecutor{
			succeed(models.StageTriage),
			succeed(models.StageTriage),
			succeed(models.StageInvestigate),
			succeed(models.StageDecide),
			succeed(models.StageRespond),
		},
		nil, nil, testLogger(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate executor")
}

func TestProcess_FullPipelineWithInvestigation(t *testing.T) {
	publisher := &capturePublisher{}
	store := &recordingStore{}
	investigate := succeed(models.StageInvestigate)

	o := newTestOrchestrator(t, publisher, store,
		succeed(models.StageTriage), investigate,
		succeed(models.StageDecide), succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Empty(t, final.CurrentStage)
	assert.NotNil(t, final.CompletedAt)
	assert.Empty(t, final.Errors)
	assert.Equal(t, 1, investigate.callCount())

	require.NotNil(t, final.TriageResult)
	require.NotNil(t, final.InvestigationResult)
	require.NotNil(t, final.DecisionResult)
	require.NotNil(t, final.ResponseResult)

	assert.Equal(t, []events.EventType{
		events.StageStartedEvent, events.StageCompletedEvent,
		events.StageStartedEvent, events.StageCompletedEvent,
		events.StageStartedEvent, events.StageCompletedEvent,
		events.StageStartedEvent, events.StageCompletedEvent,
		events.WorkflowFinalEvent,
	}, publisher.types())

	// Every stage transition was checkpointed, ending in the terminal status.
	require.NotEmpty(t, store.statuses)
	assert.Equal(t, models.StatusCompleted, store.statuses[len(store.statuses)-1])
}

func TestProcess_SkipsInvestigationWhenNotRequired(t *testing.T) {
	publisher := &capturePublisher{}
	investigate := succeed(models.StageInvestigate)

	triage := &stubExecutor{stage: models.StageTriage, fn: func(_ context.Context, _ *models.WorkflowState) (any, error) {
		return &models.TriageResult{Verdict: models.VerdictBenign, RequiresInvestigation: false}, nil
	}}

	o := newTestOrchestrator(t, publisher, nil,
		triage, investigate,
		succeed(models.StageDecide), succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 0, investigate.callCount())
	assert.Nil(t, final.InvestigationResult)
	require.NotNil(t, final.DecisionResult)
}

func TestProcess_InvestigationFailureIsRecoverable(t *testing.T) {
	publisher := &capturePublisher{}
	decide := succeed(models.StageDecide)

	o := newTestOrchestrator(t, publisher, nil,
		succeed(models.StageTriage),
		fail(models.StageInvestigate, errors.New("correlation backend down")),
		decide, succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 1, decide.callCount())
	assert.Nil(t, final.InvestigationResult)
	require.NotNil(t, final.DecisionResult)
	require.NotNil(t, final.ResponseResult)

	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "Investigation error:")
	assert.Contains(t, final.Errors[0], "correlation backend down")

	// The failure event carries the non-fatal marker.
	var failed *events.StageFailed

	for _, ev := range publisher.events {
		if f, ok := ev.(events.StageFailed); ok {
			failed = &f
		}
	}

	require.NotNil(t, failed)
	assert.False(t, failed.Fatal)
	assert.Equal(t, models.StageInvestigate, failed.Stage)
}

func TestProcess_TriageFailureEndsWorkflow(t *testing.T) {
	publisher := &capturePublisher{}
	decide := succeed(models.StageDecide)
	respond := succeed(models.StageRespond)

	o := newTestOrchestrator(t, publisher, nil,
		fail(models.StageTriage, errors.New("provider unavailable")),
		succeed(models.StageInvestigate), decide, respond)

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, 0, decide.callCount())
	assert.Equal(t, 0, respond.callCount())
	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "Triage error:")

	types := publisher.types()
	assert.Equal(t, []events.EventType{
		events.StageStartedEvent,
		events.StageFailedEvent,
		events.WorkflowFinalEvent,
	}, types)
}

func TestProcess_ResponseFailureKeepsDecision(t *testing.T) {
	o := newTestOrchestrator(t, &capturePublisher{}, nil,
		succeed(models.StageTriage), succeed(models.StageInvestigate),
		succeed(models.StageDecide),
		fail(models.StageRespond, errors.New("ticketing system rejected the request")))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotNil(t, final.DecisionResult)
	assert.Nil(t, final.ResponseResult)
	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "Response error:")
}

func TestProcess_TimeoutFailsWorkflow(t *testing.T) {
	slow := &stubExecutor{stage: models.StageTriage, fn: func(ctx context.Context, _ *models.WorkflowState) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &models.TriageResult{}, nil
		}
	}}

	executors := []StageExecutor{
		slow,
		succeed(models.StageInvestigate),
		succeed(models.StageDecide),
		succeed(models.StageRespond),
	}

	o, err := NewOrchestrator(executors, &capturePublisher{}, nil, testLogger(),
		WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotEmpty(t, final.Errors)
	assert.Contains(t, final.Errors[0], "alert processing timed out")
}

func TestProcess_RejectsTerminalWorkflow(t *testing.T) {
	o := newTestOrchestrator(t, &capturePublisher{}, nil,
		succeed(models.StageTriage), succeed(models.StageInvestigate),
		succeed(models.StageDecide), succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})
	state.Status = models.StatusCompleted

	_, err := o.Process(context.Background(), state)
	assert.ErrorIs(t, err, ErrNotProcessable)
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	panicky := &stubExecutor{stage: models.StageTriage, fn: func(_ context.Context, _ *models.WorkflowState) (any, error) {
		panic("executor blew up")
	}}

	publisher := &capturePublisher{}

	o := newTestOrchestrator(t, publisher, nil,
		panicky, succeed(models.StageInvestigate),
		succeed(models.StageDecide), succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	require.NotPanics(t, func() {
		_, err := o.Process(context.Background(), state)
		require.NoError(t, err)
	})

	assert.Equal(t, models.StatusFailed, state.Status)
	require.NotEmpty(t, state.Errors)
	assert.Contains(t, state.Errors[0], "executor blew up")

	types := publisher.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.WorkflowFinalEvent, types[len(types)-1])
}

func TestProcess_WrongResultTypeFailsWorkflow(t *testing.T) {
	confused := &stubExecutor{stage: models.StageTriage, fn: func(_ context.Context, _ *models.WorkflowState) (any, error) {
		return &models.DecisionResult{}, nil
	}}

	o := newTestOrchestrator(t, &capturePublisher{}, nil,
		confused, succeed(models.StageInvestigate),
		succeed(models.StageDecide), succeed(models.StageRespond))

	state := models.NewWorkflowState("wf-1", models.Alert{AlertID: "a"})

	final, err := o.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Nil(t, final.TriageResult)
}
