package repositories

import (
	"context"
	"sync"
	"time"

	"studio-project/microservices/tasks-service/models"
)

// In-memory implementations of the repository interfaces, used by unit tests
// and local development without a MongoDB instance. Semantics mirror the
// Mongo implementations, including the not-found and duplicate-key cases.

type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: map[string]models.Task{}}
}

func (r *MemoryTaskRepository) GetByID(_ context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "task", ID: id}
	}
	copied := cloneTask(task)
	return &copied, nil
}

func (r *MemoryTaskRepository) Insert(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.ID]; exists {
		return &models.ConflictError{Reason: "task already exists"}
	}
	r.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return &models.NotFoundError{Kind: "task", ID: id}
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryTaskRepository) SetStatus(_ context.Context, id string, status models.TaskStatus) error {
	return r.mutate(id, func(t *models.Task) {
		t.Status = status
	})
}

func (r *MemoryTaskRepository) AppendComment(_ context.Context, id string, comment models.Comment) error {
	return r.mutate(id, func(t *models.Task) {
		t.Comments = append(t.Comments, comment)
	})
}

func (r *MemoryTaskRepository) AddCompletedBy(_ context.Context, id, actorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return false, &models.NotFoundError{Kind: "task", ID: id}
	}
	if task.HasCompleted(actorID) {
		return false, nil
	}
	task.CompletedBy = append(task.CompletedBy, actorID)
	r.tasks[id] = task
	return true, nil
}

func (r *MemoryTaskRepository) AddAssignee(_ context.Context, id string, assignee models.Assignee) error {
	return r.mutate(id, func(t *models.Task) {
		if !t.HasAssignee(assignee.ID) {
			t.Assignees = append(t.Assignees, assignee)
		}
		t.IsShared = true
	})
}

func (r *MemoryTaskRepository) ApplyPatch(_ context.Context, id string, patch TaskPatch) error {
	return r.mutate(id, func(t *models.Task) {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.ClearDueDate {
			t.DueDate = nil
		} else if patch.DueDate != nil {
			due := *patch.DueDate
			t.DueDate = &due
		}
	})
}

func (r *MemoryTaskRepository) ListByAssignee(_ context.Context, identity string) ([]*models.Task, error) {
	return r.list(func(t models.Task) bool { return t.HasAssignee(identity) }), nil
}

func (r *MemoryTaskRepository) ListByEvent(_ context.Context, eventID string) ([]*models.Task, error) {
	return r.list(func(t models.Task) bool { return t.EventID == eventID }), nil
}

func (r *MemoryTaskRepository) ListAutomaticByRule(_ context.Context, ruleName string) ([]*models.Task, error) {
	return r.list(func(t models.Task) bool { return t.IsAutomatic && t.RuleName == ruleName }), nil
}

// Count reports the number of stored tasks.
func (r *MemoryTaskRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func (r *MemoryTaskRepository) mutate(id string, fn func(*models.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return &models.NotFoundError{Kind: "task", ID: id}
	}
	fn(&task)
	r.tasks[id] = task
	return nil
}

func (r *MemoryTaskRepository) list(match func(models.Task) bool) []*models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Task
	for _, task := range r.tasks {
		if match(task) {
			copied := cloneTask(task)
			out = append(out, &copied)
		}
	}
	return out
}

func cloneTask(t models.Task) models.Task {
	t.Assignees = append([]models.Assignee(nil), t.Assignees...)
	t.CompletedBy = append([]string(nil), t.CompletedBy...)
	t.Comments = append([]models.Comment(nil), t.Comments...)
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]models.Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: map[string]models.Event{}}
}

// Put inserts or replaces an event. Test fixture helper; the bookings service
// owns events in production.
func (r *MemoryEventRepository) Put(event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
}

func (r *MemoryEventRepository) GetByID(_ context.Context, id string) (*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.events[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "event", ID: id}
	}
	return &event, nil
}

func (r *MemoryEventRepository) ListByDateRange(_ context.Context, from, to time.Time) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Event
	for _, event := range r.events {
		if event.Date.Before(from) || event.Date.After(to) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

type MemorySettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]models.AutomaticRuleSetting
}

func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{settings: map[string]models.AutomaticRuleSetting{}}
}

func (r *MemorySettingsRepository) List(_ context.Context) ([]models.AutomaticRuleSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.AutomaticRuleSetting
	for _, s := range r.settings {
		out = append(out, s)
	}
	return out, nil
}

func (r *MemorySettingsRepository) Get(_ context.Context, ruleName string) (*models.AutomaticRuleSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	setting, ok := r.settings[ruleName]
	if !ok {
		return nil, &models.NotFoundError{Kind: "rule setting", ID: ruleName}
	}
	return &setting, nil
}

func (r *MemorySettingsRepository) Upsert(_ context.Context, setting models.AutomaticRuleSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[setting.RuleName] = setting
	return nil
}
