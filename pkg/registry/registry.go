// Package registry keeps the process-wide map of workflow identifiers to
// their latest checkpointed state. State is volatile by design; history does
// not survive a restart.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/socworks/argus/pkg/models"
)

// Registry stores one WorkflowState snapshot per workflow identifier. Each
// workflow's entry is written only by that workflow's background runner, so
// updates are last-writer-wins without cross-writer races; reads may happen
// concurrently at any time and always observe a complete checkpoint.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*models.WorkflowState
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		workflows: make(map[string]*models.WorkflowState),
		logger:    logger.With("module", "registry"),
	}
}

// Create registers a new workflow. The stored value is a snapshot; the caller
// keeps ownership of state.
func (r *Registry) Create(state *models.WorkflowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[state.WorkflowID]; exists {
		return &WorkflowError{Op: "create", WorkflowID: state.WorkflowID, Err: ErrWorkflowAlreadyExists}
	}

	r.workflows[state.WorkflowID] = state.Clone()

	return nil
}

// Get returns a snapshot of the workflow's latest checkpointed state.
func (r *Registry) Get(workflowID string) (*models.WorkflowState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.workflows[workflowID]
	if !exists {
		return nil, &WorkflowError{Op: "get", WorkflowID: workflowID, Err: ErrWorkflowNotFound}
	}

	return state.Clone(), nil
}

// Update replaces the stored state for the workflow with a snapshot of state.
func (r *Registry) Update(workflowID string, state *models.WorkflowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[workflowID]; !exists {
		return &WorkflowError{Op: "update", WorkflowID: workflowID, Err: ErrWorkflowNotFound}
	}

	r.workflows[workflowID] = state.Clone()

	return nil
}

// Filter narrows List results. All set fields are AND-combined equality
// checks; nil fields match everything.
type Filter struct {
	Status   *models.AlertStatus
	Verdict  *models.Verdict
	Priority *models.Priority
	Limit    int
}

// List returns summaries of the workflows matching the filter, capped at
// filter.Limit when positive. Results are ordered by start time (then id) so
// repeated calls over unchanged state return the same set.
func (r *Registry) List(filter Filter) []models.Summary {
	r.mu.RLock()

	matched := make([]*models.WorkflowState, 0, len(r.workflows))

	for _, state := range r.workflows {
		if filter.Status != nil && state.Status != *filter.Status {
			continue
		}

		if filter.Verdict != nil && (state.DecisionResult == nil || state.DecisionResult.FinalVerdict != *filter.Verdict) {
			continue
		}

		if filter.Priority != nil && (state.DecisionResult == nil || state.DecisionResult.Priority != *filter.Priority) {
			continue
		}

		matched = append(matched, state)
	}

	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.Before(matched[j].StartedAt)
		}

		return matched[i].WorkflowID < matched[j].WorkflowID
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	summaries := make([]models.Summary, 0, len(matched))
	for _, state := range matched {
		summaries = append(summaries, state.Summary())
	}

	return summaries
}

// Summary returns the summary projection for one workflow.
func (r *Registry) Summary(workflowID string) (models.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.workflows[workflowID]
	if !exists {
		return models.Summary{}, &WorkflowError{Op: "summary", WorkflowID: workflowID, Err: ErrWorkflowNotFound}
	}

	return state.Summary(), nil
}

// InProgress counts workflows that have not reached a terminal status.
func (r *Registry) InProgress() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0

	for _, state := range r.workflows {
		if !state.Terminal() {
			count++
		}
	}

	return count
}

// Count returns the number of registered workflows.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.workflows)
}

// ClearAll removes every workflow. This is the only destruction path;
// individual entries never expire.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := len(r.workflows)
	r.workflows = make(map[string]*models.WorkflowState)

	r.logger.Info("Cleared workflow registry", "workflows", cleared)
}
