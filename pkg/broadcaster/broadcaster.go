// Package broadcaster fans workflow lifecycle events out to live observers.
// Delivery is best-effort: a slow or vanished observer is dropped past, never
// waited on, and never affects its siblings.
package broadcaster

import (
	"context"
	"log/slog"
	"sync"

	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/events"
	"github.com/socworks/argus/pkg/models"
)

const defaultBufferSize = 32

// SnapshotFunc resolves the last known summary of a workflow, used to send a
// late subscriber one synthetic status event on connect.
type SnapshotFunc func(workflowID string) (models.Summary, bool)

// Subscription is one observer's attachment to a workflow's event stream.
// The channel is closed when the observer unsubscribes, after the workflow's
// final event is delivered, or right after the status snapshot when the
// workflow was already finished at subscribe time.
type Subscription struct {
	workflowID string
	ch         chan eventbus.Event
	closeOnce  sync.Once
}

// Events returns the observer's event channel. Events arrive in the exact
// order they were published for the workflow, minus any the observer was too
// slow to take.
func (s *Subscription) Events() <-chan eventbus.Event {
	return s.ch
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

type topic struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Hub maps workflow identifiers to their live observer sets. Operations on
// the same workflow serialize on that workflow's topic lock; different
// workflows only share the map lookup lock.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	snapshot   SnapshotFunc
	bufferSize int
	logger     *slog.Logger
}

type Option func(*Hub)

// WithBufferSize overrides the per-observer channel buffer.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

func NewHub(snapshot SnapshotFunc, logger *slog.Logger, opts ...Option) *Hub {
	hub := &Hub{
		topics:     make(map[string]*topic),
		snapshot:   snapshot,
		bufferSize: defaultBufferSize,
		logger:     logger.With("module", "broadcaster"),
	}

	for _, opt := range opts {
		opt(hub)
	}

	return hub
}

// Subscribe attaches a new observer to the workflow's event stream. If the
// workflow already has a known status, one synthetic status event is placed
// on the observer's channel before anything else. When that status is
// terminal the workflow will never publish again, so the observer is not
// registered: it gets the snapshot and an already-closed channel.
func (h *Hub) Subscribe(workflowID string) *Subscription {
	sub := &Subscription{
		workflowID: workflowID,
		ch:         make(chan eventbus.Event, h.bufferSize),
	}

	h.mu.Lock()

	t, exists := h.topics[workflowID]
	if !exists {
		t = &topic{subs: make(map[*Subscription]struct{})}
		h.topics[workflowID] = t
	}

	t.mu.Lock()
	h.mu.Unlock()

	var terminal bool

	if h.snapshot != nil {
		if summary, known := h.snapshot(workflowID); known {
			// Buffer is empty here, the send cannot fail.
			sub.ch <- events.NewWorkflowStatus(summary)
			terminal = summary.Status.Terminal()
		}
	}

	if !terminal {
		t.subs[sub] = struct{}{}
	}

	empty := len(t.subs) == 0
	t.mu.Unlock()

	if !terminal {
		return sub
	}

	if empty {
		h.mu.Lock()

		if current, exists := h.topics[workflowID]; exists && current == t {
			delete(h.topics, workflowID)
		}

		h.mu.Unlock()
	}

	sub.close()

	return sub
}

// Unsubscribe detaches the observer and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()

	if t, exists := h.topics[sub.workflowID]; exists {
		t.mu.Lock()
		delete(t.subs, sub)
		empty := len(t.subs) == 0
		t.mu.Unlock()

		if empty {
			delete(h.topics, sub.workflowID)
		}
	}

	h.mu.Unlock()

	sub.close()
}

// Publish delivers the event to every observer currently subscribed to the
// workflow. Observers whose buffers are full are skipped. After the final
// workflow event all observers are closed and the topic is dropped.
func (h *Hub) Publish(workflowID string, event eventbus.Event) {
	h.mu.RLock()
	t := h.topics[workflowID]
	h.mu.RUnlock()

	if t == nil {
		return
	}

	t.mu.Lock()

	for sub := range t.subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Debug("Dropped event for slow observer",
				"workflow_id", workflowID, "event_type", event.GetType())
		}
	}

	terminal := event.GetType() == events.WorkflowFinalEvent

	var closing []*Subscription

	if terminal {
		closing = make([]*Subscription, 0, len(t.subs))
		for sub := range t.subs {
			closing = append(closing, sub)
		}

		t.subs = make(map[*Subscription]struct{})
	}

	t.mu.Unlock()

	if !terminal {
		return
	}

	h.mu.Lock()

	if current, exists := h.topics[workflowID]; exists && current == t {
		delete(h.topics, workflowID)
	}

	h.mu.Unlock()

	for _, sub := range closing {
		sub.close()
	}
}

// Observers reports how many observers are attached to the workflow.
func (h *Hub) Observers(workflowID string) int {
	h.mu.RLock()
	t := h.topics[workflowID]
	h.mu.RUnlock()

	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.subs)
}

// Attach registers the hub as a consumer of workflow lifecycle events on the
// bus, routing each event to the observers of its workflow.
func (h *Hub) Attach(bus eventbus.EventSubscriber) error {
	route := func(_ context.Context, event any) error {
		if ev, ok := event.(eventbus.Event); ok {
			h.Publish(ev.GetWorkflowID(), ev)
		}

		return nil
	}

	for _, eventType := range []events.EventType{
		events.StageStartedEvent,
		events.StageCompletedEvent,
		events.StageFailedEvent,
		events.WorkflowFinalEvent,
	} {
		if err := bus.Handle(eventType, route); err != nil {
			return err
		}
	}

	return nil
}
