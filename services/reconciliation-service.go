package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"studio-project/microservices/tasks-service/logging"
	"studio-project/microservices/tasks-service/models"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/utils"
)

// RunSummary is what a reconciliation run reports back to the admin surface.
// Errors carries every isolated per-event/per-write failure; the run itself
// only fails wholesale when the rule settings cannot be loaded.
type RunSummary struct {
	Created int      `json:"created"`
	Deleted int      `json:"deleted"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func (s *RunSummary) addError(format string, args ...interface{}) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// ReconciliationService keeps the set of automatic tasks exactly matching the
// set of (event, rule, assignee) triples whose rule is active, whose event
// date is inside the rule's activation window, and whose monitored field is
// deficient. Runs are stateless and idempotent; overlapping runs are safe
// because every write is keyed by the derived composite ID.
type ReconciliationService struct {
	tasks    repositories.TaskRepository
	events   repositories.EventRepository
	settings repositories.SettingsRepository
	now      func() time.Time

	running atomic.Bool
}

func NewReconciliationService(
	tasks repositories.TaskRepository,
	events repositories.EventRepository,
	settings repositories.SettingsRepository,
) *ReconciliationService {
	return &ReconciliationService{
		tasks:    tasks,
		events:   events,
		settings: settings,
		now:      time.Now,
	}
}

// SetClock overrides the engine's notion of "today". Used by tests and by
// nothing else.
func (s *ReconciliationService) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes one full reconciliation pass over every active rule.
func (s *ReconciliationService) Run(ctx context.Context) RunSummary {
	if !s.running.CompareAndSwap(false, true) {
		logging.Logger.Warn("Event ID: RECONCILE_OVERLAP, Description: Reconciliation run started while another is in progress; proceeding, writes are keyed.")
	} else {
		defer s.running.Store(false)
	}

	summary := RunSummary{}
	settings, err := s.settings.List(ctx)
	if err != nil {
		summary.addError("load rule settings: %v", err)
		logging.Logger.Errorf("Event ID: RECONCILE_SETTINGS_FAILED, Description: Could not load rule settings: %v", err)
		return summary
	}

	for _, setting := range settings {
		if !setting.Active {
			// A paused rule leaves its existing tasks alone. Deactivation is
			// a manual pause, not a retraction.
			continue
		}
		rule, ok := RuleByName(setting.RuleName)
		if !ok {
			summary.addError("unknown rule %q in settings", setting.RuleName)
			continue
		}
		s.reconcileRule(ctx, rule, setting, &summary)
	}

	logging.Logger.Infof("Event ID: RECONCILE_DONE, Description: Reconciliation finished: created=%d deleted=%d skipped=%d errors=%d",
		summary.Created, summary.Deleted, summary.Skipped, len(summary.Errors))
	return summary
}

// ReconcileEvent reconciles a single booking across all active rules. It is
// the immediate trigger invoked right after a monitored event field changes;
// the scheduled Run remains the backstop for everything else.
func (s *ReconciliationService) ReconcileEvent(ctx context.Context, eventID string) RunSummary {
	summary := RunSummary{}
	settings, err := s.settings.List(ctx)
	if err != nil {
		summary.addError("load rule settings: %v", err)
		return summary
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if _, missing := asNotFound(err); !missing {
			summary.addError("load event %s: %v", eventID, err)
			return summary
		}
		// Booking gone entirely: retract whatever it generated.
		s.retractAllForEvent(ctx, eventID, &summary)
		return summary
	}

	for _, setting := range settings {
		if !setting.Active {
			continue
		}
		rule, ok := RuleByName(setting.RuleName)
		if !ok {
			continue
		}
		desired := s.desiredForEvent(rule, setting, *event, &summary)
		for key, seed := range desired {
			s.ensureTask(ctx, key, seed, &summary)
		}
		existing, err := s.tasks.ListByEvent(ctx, eventID)
		if err != nil {
			summary.addError("list tasks for event %s: %v", eventID, err)
			continue
		}
		for _, task := range existing {
			if !task.IsAutomatic || task.RuleName != rule.Name {
				continue
			}
			if _, wanted := desired[task.ID]; wanted {
				continue
			}
			s.recheckThenDelete(ctx, task, rule, setting, &summary)
		}
	}
	return summary
}

type taskSeed struct {
	rule     Rule
	event    models.Event
	assignee models.Assignee
}

func (s *ReconciliationService) reconcileRule(ctx context.Context, rule Rule, setting models.AutomaticRuleSetting, summary *RunSummary) {
	events, err := s.events.ListByDateRange(ctx, setting.ActivationDate, s.endOfToday())
	if err != nil {
		summary.addError("rule %s: list events: %v", rule.Name, err)
		return
	}

	desired := map[string]taskSeed{}
	for _, event := range events {
		for key, seed := range s.desiredForEvent(rule, setting, event, summary) {
			desired[key] = seed
		}
	}

	for key, seed := range desired {
		s.ensureTask(ctx, key, seed, summary)
	}

	// Retraction pass: walk the tasks this rule generated earlier and delete
	// any that no longer belong, whether because the field was resolved, the
	// booking's staff changed, or the activation window moved.
	existing, err := s.tasks.ListAutomaticByRule(ctx, rule.Name)
	if err != nil {
		summary.addError("rule %s: list generated tasks: %v", rule.Name, err)
		return
	}
	for _, task := range existing {
		if _, wanted := desired[task.ID]; wanted {
			continue
		}
		s.recheckThenDelete(ctx, task, rule, setting, summary)
	}
}

// desiredForEvent computes the task keys this rule wants for one booking.
// Events with an unusable date are recorded and skipped so one bad record
// cannot halt the run.
func (s *ReconciliationService) desiredForEvent(rule Rule, setting models.AutomaticRuleSetting, event models.Event, summary *RunSummary) map[string]taskSeed {
	if event.Date.IsZero() {
		summary.Skipped++
		summary.addError("rule %s: event %s has no usable date", rule.Name, event.ID)
		return nil
	}
	if !withinWindow(event.Date, setting.ActivationDate, s.endOfToday()) {
		return nil
	}
	if !rule.Deficient(event) {
		return nil
	}
	desired := map[string]taskSeed{}
	for _, assignee := range rule.Assignees(event) {
		key := utils.DeriveTaskID(event.ID, rule.Name, assignee.ID)
		desired[key] = taskSeed{rule: rule, event: event, assignee: assignee}
	}
	return desired
}

func (s *ReconciliationService) ensureTask(ctx context.Context, key string, seed taskSeed, summary *RunSummary) {
	_, err := s.tasks.GetByID(ctx, key)
	if err == nil {
		return
	}
	if _, missing := asNotFound(err); !missing {
		summary.addError("check task %s: %v", key, err)
		return
	}

	task := &models.Task{
		ID:            key,
		Title:         seed.rule.Title(seed.event),
		Description:   seed.rule.Description,
		Priority:      seed.rule.Priority,
		Status:        models.StatusPending,
		CreatedBy:     models.SystemCreator,
		CreatedByName: "System",
		CreatedAt:     s.now(),
		IsAutomatic:   true,
		Assignees:     []models.Assignee{seed.assignee},
		CompletedBy:   []string{},
		EventID:       seed.event.ID,
		RuleName:      seed.rule.Name,
		Comments:      []models.Comment{},
	}

	err = withRetry(func() error { return s.tasks.Insert(ctx, task) })
	if err != nil {
		var conflict *models.ConflictError
		if asTarget(err, &conflict) {
			// A concurrent run created the same key; the desired state holds.
			return
		}
		summary.addError("create task %s: %v", key, err)
		return
	}
	summary.Created++
	logging.Logger.Infof("Event ID: AUTO_TASK_CREATED, Description: Created task %s (rule %s, event %s, assignee %s)",
		key, seed.rule.Name, seed.event.ID, seed.assignee.ID)
}

// recheckThenDelete re-evaluates the predicate against a fresh point read of
// the event immediately before deleting, so a delete racing a concurrent
// run's create cannot destroy a task whose condition flipped back mid-run.
func (s *ReconciliationService) recheckThenDelete(ctx context.Context, task *models.Task, rule Rule, setting models.AutomaticRuleSetting, summary *RunSummary) {
	event, err := s.events.GetByID(ctx, task.EventID)
	if err != nil {
		if _, missing := asNotFound(err); !missing {
			// Cannot prove the task is stale; leave it for the next run.
			summary.addError("recheck event %s for task %s: %v", task.EventID, task.ID, err)
			return
		}
		event = nil
	}

	if event != nil && event.Date.IsZero() {
		// Unevaluable booking: without a usable date the predicate cannot be
		// trusted either way, so the task stays until the record is repaired.
		summary.addError("rule %s: event %s has no usable date", rule.Name, event.ID)
		return
	}

	if event != nil && withinWindow(event.Date, setting.ActivationDate, s.endOfToday()) && rule.Deficient(*event) {
		for _, assignee := range rule.Assignees(*event) {
			if utils.DeriveTaskID(event.ID, rule.Name, assignee.ID) == task.ID {
				// Condition is deficient again and the assignee still stands.
				return
			}
		}
	}

	err = withRetry(func() error { return s.tasks.Delete(ctx, task.ID) })
	if err != nil {
		if _, gone := asNotFound(err); gone {
			return
		}
		summary.addError("delete task %s: %v", task.ID, err)
		return
	}
	summary.Deleted++
	logging.Logger.Infof("Event ID: AUTO_TASK_DELETED, Description: Deleted task %s (rule %s, event %s), condition no longer holds",
		task.ID, rule.Name, task.EventID)
}

func (s *ReconciliationService) retractAllForEvent(ctx context.Context, eventID string, summary *RunSummary) {
	tasks, err := s.tasks.ListByEvent(ctx, eventID)
	if err != nil {
		summary.addError("list tasks for removed event %s: %v", eventID, err)
		return
	}
	for _, task := range tasks {
		if !task.IsAutomatic {
			continue
		}
		if err := withRetry(func() error { return s.tasks.Delete(ctx, task.ID) }); err != nil {
			if _, gone := asNotFound(err); !gone {
				summary.addError("delete task %s: %v", task.ID, err)
			}
			continue
		}
		summary.Deleted++
	}
}

func (s *ReconciliationService) endOfToday() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
}

// withinWindow reports activationDate <= date <= upper, both inclusive.
func withinWindow(date, activationDate, upper time.Time) bool {
	return !date.Before(activationDate) && !date.After(upper)
}

// withRetry retries a store write exactly once, and only for transient
// store failures.
func withRetry(op func() error) error {
	err := op()
	if err == nil || !models.IsTransient(err) {
		return err
	}
	return op()
}
