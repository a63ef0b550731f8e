package broadcaster

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/events"
	"github.com/socworks/argus/pkg/models"
)

func stageStarted(workflowID string, stage models.Stage) events.StageStarted {
	return events.StageStarted{
		BaseEvent: events.NewBaseEvent(events.StageStartedEvent, workflowID),
		Stage:     stage,
	}
}

func workflowFinal(workflowID string) events.WorkflowFinal {
	return events.WorkflowFinal{
		BaseEvent: events.NewBaseEvent(events.WorkflowFinalEvent, workflowID),
		Status:    models.StatusCompleted,
	}
}

func receive(t *testing.T, sub *Subscription) eventbus.Event {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")

		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")

		return nil
	}
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := NewHub(nil, slog.Default())

	sub := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(sub)

	hub.Publish("wf-1", stageStarted("wf-1", models.StageTriage))
	hub.Publish("wf-1", stageStarted("wf-1", models.StageDecide))

	first := receive(t, sub)
	second := receive(t, sub)

	assert.Equal(t, models.StageTriage, first.(events.StageStarted).Stage)
	assert.Equal(t, models.StageDecide, second.(events.StageStarted).Stage)
}

func TestHub_IsolatesWorkflows(t *testing.T) {
	hub := NewHub(nil, slog.Default())

	sub1 := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(sub1)

	sub2 := hub.Subscribe("wf-2")
	defer hub.Unsubscribe(sub2)

	hub.Publish("wf-1", stageStarted("wf-1", models.StageTriage))

	ev := receive(t, sub1)
	assert.Equal(t, "wf-1", ev.GetWorkflowID())

	select {
	case ev := <-sub2.Events():
		t.Fatalf("observer of wf-2 received foreign event %v", ev.GetType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_LateSubscriberGetsSnapshot(t *testing.T) {
	summary := models.Summary{
		WorkflowID:   "wf-1",
		AlertID:      "ALERT-1",
		Status:       models.StatusInvestigating,
		CurrentStage: models.StageInvestigate,
	}

	hub := NewHub(func(workflowID string) (models.Summary, bool) {
		if workflowID == "wf-1" {
			return summary, true
		}

		return models.Summary{}, false
	}, slog.Default())

	sub := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(sub)

	ev := receive(t, sub)
	status, ok := ev.(events.WorkflowStatus)
	require.True(t, ok)
	assert.Equal(t, models.StatusInvestigating, status.Status)
	assert.Equal(t, models.StageInvestigate, status.CurrentStage)

	// Unknown workflows produce no snapshot.
	other := hub.Subscribe("wf-unknown")
	defer hub.Unsubscribe(other)

	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected snapshot for unknown workflow: %v", ev.GetType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_TerminalSnapshotClosesSubscription(t *testing.T) {
	hub := NewHub(func(workflowID string) (models.Summary, bool) {
		return models.Summary{
			WorkflowID: workflowID,
			AlertID:    "ALERT-1",
			Status:     models.StatusCompleted,
		}, true
	}, slog.Default())

	sub := hub.Subscribe("wf-done")

	ev := receive(t, sub)
	status, ok := ev.(events.WorkflowStatus)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, status.Status)

	// A finished workflow publishes nothing further; the channel must close
	// right after the snapshot instead of leaving the observer waiting.
	select {
	case _, open := <-sub.Events():
		assert.False(t, open, "channel should be closed after a terminal snapshot")
	case <-time.After(time.Second):
		t.Fatal("channel left open after a terminal snapshot")
	}

	assert.Equal(t, 0, hub.Observers("wf-done"))

	// Unsubscribing after the implicit close stays safe.
	hub.Unsubscribe(sub)
}

func TestHub_SlowObserverDoesNotStallSibling(t *testing.T) {
	hub := NewHub(nil, slog.Default(), WithBufferSize(1))

	stuck := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(stuck)

	healthy := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(healthy)

	stages := []models.Stage{
		models.StageTriage,
		models.StageInvestigate,
		models.StageDecide,
		models.StageRespond,
	}

	// The stuck observer never reads, so its buffer fills after one event;
	// the draining sibling still sees every event in publish order.
	for _, stage := range stages {
		hub.Publish("wf-1", stageStarted("wf-1", stage))

		ev := receive(t, healthy)
		assert.Equal(t, stage, ev.(events.StageStarted).Stage)
	}

	assert.Len(t, stuck.Events(), 1)
}

func TestHub_DropsWhenObserverIsFull(t *testing.T) {
	hub := NewHub(nil, slog.Default(), WithBufferSize(2))

	sub := hub.Subscribe("wf-1")
	defer hub.Unsubscribe(sub)

	for range 5 {
		hub.Publish("wf-1", stageStarted("wf-1", models.StageTriage))
	}

	// Only the buffered events survive; the rest were dropped, not blocked on.
	assert.Len(t, sub.Events(), 2)
}

func TestHub_FinalEventClosesObservers(t *testing.T) {
	hub := NewHub(nil, slog.Default())

	sub := hub.Subscribe("wf-1")

	hub.Publish("wf-1", workflowFinal("wf-1"))

	ev := receive(t, sub)
	assert.Equal(t, events.WorkflowFinalEvent, ev.GetType())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel should be closed after the final event")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after the final event")
	}

	assert.Equal(t, 0, hub.Observers("wf-1"))
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(nil, slog.Default())

	sub := hub.Subscribe("wf-1")
	assert.Equal(t, 1, hub.Observers("wf-1"))

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	assert.Equal(t, 0, hub.Observers("wf-1"))

	// Publishing to a workflow with no observers is a no-op.
	hub.Publish("wf-1", stageStarted("wf-1", models.StageTriage))
}

func TestHub_PublishToUnknownWorkflow(t *testing.T) {
	hub := NewHub(nil, slog.Default())

	// No observers at all; must not panic or create topics.
	hub.Publish("wf-ghost", stageStarted("wf-ghost", models.StageTriage))
	assert.Equal(t, 0, hub.Observers("wf-ghost"))
}
