// Package metrics aggregates workflow outcomes into the counters exposed by
// the metrics endpoint. The collector consumes lifecycle events off the bus,
// so it sees exactly what any other observer sees.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/events"
	"github.com/socworks/argus/pkg/models"
)

// StageSnapshot is the per-stage slice of a metrics snapshot.
type StageSnapshot struct {
	Processed     int64      `json:"processed"`
	Succeeded     int64      `json:"succeeded"`
	Failed        int64      `json:"failed"`
	LastExecution *time.Time `json:"last_execution,omitempty"`
}

// Snapshot is a point-in-time copy of the collected metrics.
// AlertsInProgress is filled in by the caller from the registry.
type Snapshot struct {
	TotalAlertsProcessed  int64                          `json:"total_alerts_processed"`
	TruePositives         int64                          `json:"true_positives"`
	FalsePositives        int64                          `json:"false_positives"`
	Benign                int64                          `json:"benign"`
	Failed                int64                          `json:"failed"`
	AlertsInProgress      int64                          `json:"alerts_in_progress"`
	AverageProcessingTime float64                        `json:"average_processing_time"`
	Stages                map[models.Stage]StageSnapshot `json:"stages"`
}

type stageCounters struct {
	processed     int64
	succeeded     int64
	failed        int64
	lastExecution time.Time
}

// Collector accumulates counters from workflow lifecycle events.
type Collector struct {
	mu sync.Mutex

	totalProcessed int64
	truePositives  int64
	falsePositives int64
	benign         int64
	failed         int64
	avgProcessing  float64
	stages         map[models.Stage]*stageCounters

	logger *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		stages: make(map[models.Stage]*stageCounters),
		logger: logger.With("module", "metrics"),
	}
}

// Attach registers the collector on the bus for the events it aggregates.
func (c *Collector) Attach(bus eventbus.EventBus) error {
	for _, eventType := range []events.EventType{
		events.StageCompletedEvent,
		events.StageFailedEvent,
		events.WorkflowFinalEvent,
	} {
		if err := bus.Handle(eventType, c.handle); err != nil {
			return fmt.Errorf("registering metrics handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (c *Collector) handle(_ context.Context, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := event.(type) {
	case *events.StageCompleted:
		s := c.stage(ev.Stage)
		s.processed++
		s.succeeded++
		s.lastExecution = ev.Timestamp
	case *events.StageFailed:
		s := c.stage(ev.Stage)
		s.processed++
		s.failed++
		s.lastExecution = ev.Timestamp
	case *events.WorkflowFinal:
		c.recordFinal(ev)
	default:
		c.logger.Warn("Ignoring unexpected event type", "event", fmt.Sprintf("%T", event))
	}

	return nil
}

func (c *Collector) recordFinal(ev *events.WorkflowFinal) {
	c.totalProcessed++

	if ev.Status == models.StatusFailed {
		c.failed++
	}

	if ev.Verdict != nil {
		switch *ev.Verdict {
		case models.VerdictTruePositive:
			c.truePositives++
		case models.VerdictFalsePositive:
			c.falsePositives++
		case models.VerdictBenign:
			c.benign++
		}
	}

	// Incremental mean keeps the endpoint O(1) regardless of history size.
	total := c.avgProcessing * float64(c.totalProcessed-1)
	c.avgProcessing = (total + float64(ev.DurationMs)/1000.0) / float64(c.totalProcessed)
}

func (c *Collector) stage(stage models.Stage) *stageCounters {
	s, ok := c.stages[stage]
	if !ok {
		s = &stageCounters{}
		c.stages[stage] = s
	}

	return s
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	stages := make(map[models.Stage]StageSnapshot, len(c.stages))
	for stage, s := range c.stages {
		snap := StageSnapshot{
			Processed: s.processed,
			Succeeded: s.succeeded,
			Failed:    s.failed,
		}
		if !s.lastExecution.IsZero() {
			last := s.lastExecution
			snap.LastExecution = &last
		}
		stages[stage] = snap
	}

	return Snapshot{
		TotalAlertsProcessed:  c.totalProcessed,
		TruePositives:         c.truePositives,
		FalsePositives:        c.falsePositives,
		Benign:                c.benign,
		Failed:                c.failed,
		AverageProcessingTime: c.avgProcessing,
		Stages:                stages,
	}
}

// Reset clears all counters. Used by the clear endpoint alongside the
// registry wipe.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalProcessed = 0
	c.truePositives = 0
	c.falsePositives = 0
	c.benign = 0
	c.failed = 0
	c.avgProcessing = 0
	c.stages = make(map[models.Stage]*stageCounters)
}
