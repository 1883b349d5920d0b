package services

import (
	"context"
	"strings"
	"time"

	"studio-project/microservices/tasks-service/logging"
	"studio-project/microservices/tasks-service/models"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/utils"

	"github.com/google/uuid"
)

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleMember  = "member"
)

// Actor is the authenticated staff member behind a request. Identity and role
// come from the gateway headers; nothing here verifies credentials.
type Actor struct {
	ID   string
	Name string
	Role string
}

func (a Actor) elevated() bool {
	return a.Role == RoleOwner || a.Role == RoleManager
}

// DeletePolicy decides who may delete a manual task. Resolved from
// configuration at startup and passed in explicitly.
type DeletePolicy string

const (
	DeletePolicyCreatorOrTopRole     DeletePolicy = "creator-or-top-role"
	DeletePolicyCreatorOrTopTwoRoles DeletePolicy = "creator-or-top-two-roles"
	DeletePolicyTopRoleOnly          DeletePolicy = "top-role-only"
)

// ParseDeletePolicy validates a configured policy string, defaulting to
// creator-or-top-role when unset.
func ParseDeletePolicy(raw string) (DeletePolicy, error) {
	switch DeletePolicy(raw) {
	case DeletePolicyCreatorOrTopRole, DeletePolicyCreatorOrTopTwoRoles, DeletePolicyTopRoleOnly:
		return DeletePolicy(raw), nil
	case "":
		return DeletePolicyCreatorOrTopRole, nil
	default:
		return "", &models.ValidationError{Reason: "unknown delete policy: " + raw}
	}
}

type CreateTaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Assignees   []models.Assignee   `json:"assignees"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
}

// CompletionResult tells the caller what a Complete call did. Done is false
// on a shared task until the last assignee completes; WaitingOn then lists
// who is still outstanding.
type CompletionResult struct {
	Task      *models.Task `json:"task"`
	Done      bool         `json:"done"`
	WaitingOn []string     `json:"waitingOn,omitempty"`
}

// TaskService owns the task state machine: creation, transitions, comments,
// co-assignment completion tracking and the permission gates around them.
// Automatic tasks pass through here for status changes and comments but never
// for edit or delete; those stay with the reconciliation engine.
type TaskService struct {
	tasks        repositories.TaskRepository
	events       repositories.EventRepository
	notifier     NotificationClient
	deletePolicy DeletePolicy
	now          func() time.Time
}

func NewTaskService(
	tasks repositories.TaskRepository,
	events repositories.EventRepository,
	notifier NotificationClient,
	deletePolicy DeletePolicy,
) *TaskService {
	return &TaskService{
		tasks:        tasks,
		events:       events,
		notifier:     notifier,
		deletePolicy: deletePolicy,
		now:          time.Now,
	}
}

// SetClock overrides creation timestamps in tests.
func (s *TaskService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TaskService) Create(ctx context.Context, actor Actor, input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, &models.ValidationError{Reason: "title must not be empty"}
	}
	if len(input.Assignees) == 0 {
		return nil, &models.ValidationError{Reason: "at least one assignee is required"}
	}
	for _, a := range input.Assignees {
		if a.ID == "" {
			return nil, &models.ValidationError{Reason: "assignee identity must not be empty"}
		}
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.ValidPriority(priority) {
		return nil, &models.ValidationError{Reason: "unknown priority: " + string(priority)}
	}

	task := &models.Task{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Priority:      priority,
		Status:        models.StatusPending,
		CreatedBy:     actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     s.now(),
		DueDate:       input.DueDate,
		IsShared:      len(input.Assignees) > 1,
		Assignees:     input.Assignees,
		CompletedBy:   []string{},
		Comments:      []models.Comment{},
	}

	if err := withRetry(func() error { return s.tasks.Insert(ctx, task) }); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created by %s with %d assignee(s)",
		task.ID, actor.ID, len(task.Assignees))
	s.notifyAssigned(ctx, task, task.Assignees...)
	return task, nil
}

// Start moves a pending task to in progress.
func (s *TaskService) Start(ctx context.Context, taskID string, actor Actor) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasAssignee(actor.ID) {
		return nil, &models.PermissionError{Reason: "only an assignee can start a task"}
	}
	if task.Status != models.StatusPending {
		return nil, &models.ConflictError{Reason: "task is not pending"}
	}
	if err := withRetry(func() error { return s.tasks.SetStatus(ctx, taskID, models.StatusInProgress) }); err != nil {
		return nil, err
	}
	task.Status = models.StatusInProgress
	return task, nil
}

// Complete records the actor's completion. Non-shared tasks go straight to
// done, but the first completion must carry a note if nobody has commented
// yet. Shared tasks collect per-assignee completions and only turn done once
// everyone is in the completed-set.
func (s *TaskService) Complete(ctx context.Context, taskID string, actor Actor, note string) (*CompletionResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasAssignee(actor.ID) {
		return nil, &models.PermissionError{Reason: "only an assignee can complete a task"}
	}
	if task.IsTerminal() {
		return nil, &models.ConflictError{Reason: "task is already " + string(task.Status)}
	}

	if !task.IsShared {
		if note == "" && len(task.Comments) == 0 {
			return nil, &models.ValidationError{Reason: "first completion must include a note"}
		}
		if note != "" {
			if err := s.appendComment(ctx, taskID, actor, note); err != nil {
				return nil, err
			}
		}
		if err := withRetry(func() error { return s.tasks.SetStatus(ctx, taskID, models.StatusDone) }); err != nil {
			return nil, err
		}
		done, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return &CompletionResult{Task: done, Done: true}, nil
	}

	if task.HasCompleted(actor.ID) {
		return nil, models.ErrAlreadyCompleted
	}
	var added bool
	err = withRetry(func() error {
		var addErr error
		added, addErr = s.tasks.AddCompletedBy(ctx, taskID, actor.ID)
		return addErr
	})
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, models.ErrAlreadyCompleted
	}
	if note != "" {
		if err := s.appendComment(ctx, taskID, actor, note); err != nil {
			return nil, err
		}
	}

	task, err = s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AllAssigneesCompleted() {
		if err := withRetry(func() error { return s.tasks.SetStatus(ctx, taskID, models.StatusDone) }); err != nil {
			return nil, err
		}
		task.Status = models.StatusDone
		logging.Logger.Infof("Event ID: TASK_DONE, Description: Shared task %s completed by all assignees", taskID)
		return &CompletionResult{Task: task, Done: true}, nil
	}

	var waiting []string
	for _, a := range task.Assignees {
		if !task.HasCompleted(a.ID) {
			waiting = append(waiting, a.Name)
		}
	}
	return &CompletionResult{Task: task, Done: false, WaitingOn: waiting}, nil
}

// AddComment appends a comment; comments are never edited or deleted.
// "@Full Name" markers are extracted for display highlighting only.
func (s *TaskService) AddComment(ctx context.Context, taskID string, actor Actor, body string) (*models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &models.ValidationError{Reason: "comment body must not be empty"}
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasAssignee(actor.ID) && task.CreatedBy != actor.ID {
		return nil, &models.PermissionError{Reason: "only assignees or the creator may comment"}
	}
	comment := models.Comment{
		ID:         uuid.NewString(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Body:       body,
		Mentions:   utils.ExtractMentions(body),
		CreatedAt:  s.now(),
	}
	if err := withRetry(func() error { return s.tasks.AppendComment(ctx, taskID, comment) }); err != nil {
		return nil, err
	}
	return &comment, nil
}

// AddAssignee puts another staff member on a task, turning it shared.
func (s *TaskService) AddAssignee(ctx context.Context, taskID string, actor Actor, assignee models.Assignee) (*models.Task, error) {
	if assignee.ID == "" {
		return nil, &models.ValidationError{Reason: "assignee identity must not be empty"}
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsAutomatic {
		return nil, &models.PermissionError{Reason: "automatic tasks cannot be reassigned"}
	}
	if task.CreatedBy != actor.ID && !actor.elevated() {
		return nil, &models.PermissionError{Reason: "only the creator or a manager may add assignees"}
	}
	if task.IsTerminal() {
		return nil, &models.ConflictError{Reason: "task is already " + string(task.Status)}
	}
	if task.HasAssignee(assignee.ID) {
		return nil, &models.ConflictError{Reason: "already an assignee"}
	}
	if err := withRetry(func() error { return s.tasks.AddAssignee(ctx, taskID, assignee) }); err != nil {
		return nil, err
	}
	task, err = s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.notifyAssigned(ctx, task, assignee)
	return task, nil
}

// Edit updates title, description, priority or due date.
func (s *TaskService) Edit(ctx context.Context, taskID string, actor Actor, patch repositories.TaskPatch) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsAutomatic {
		return nil, &models.PermissionError{Reason: "automatic tasks cannot be edited"}
	}
	if task.CreatedBy != actor.ID && !actor.elevated() {
		return nil, &models.PermissionError{Reason: "only the creator or a manager may edit"}
	}
	if task.IsTerminal() {
		return nil, &models.ConflictError{Reason: "task is already " + string(task.Status)}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, &models.ValidationError{Reason: "title must not be empty"}
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, &models.ValidationError{Reason: "unknown priority: " + string(*patch.Priority)}
	}
	if err := withRetry(func() error { return s.tasks.ApplyPatch(ctx, taskID, patch) }); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

// Cancel aborts a pending or in-progress manual task.
func (s *TaskService) Cancel(ctx context.Context, taskID string, actor Actor) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsAutomatic {
		return nil, &models.PermissionError{Reason: "automatic tasks cannot be cancelled"}
	}
	if task.CreatedBy != actor.ID && !actor.elevated() {
		return nil, &models.PermissionError{Reason: "only the creator or a manager may cancel"}
	}
	if task.IsTerminal() {
		return nil, &models.ConflictError{Reason: "task is already " + string(task.Status)}
	}
	if err := withRetry(func() error { return s.tasks.SetStatus(ctx, taskID, models.StatusCancelled) }); err != nil {
		return nil, err
	}
	task.Status = models.StatusCancelled
	return task, nil
}

// Delete removes a manual task under the configured deletion policy.
// Automatic tasks never go through this path; they are retracted by the
// reconciliation engine or via ResolveAutomaticTask.
func (s *TaskService) Delete(ctx context.Context, taskID string, actor Actor) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsAutomatic {
		return &models.PermissionError{Reason: "automatic tasks cannot be deleted directly"}
	}
	if !s.mayDelete(actor, task) {
		return &models.PermissionError{Reason: "deletion not permitted under policy " + string(s.deletePolicy)}
	}
	if err := withRetry(func() error { return s.tasks.Delete(ctx, taskID) }); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted by %s", taskID, actor.ID)
	return nil
}

// ResolveAutomaticTask is the explicit "mark resolved" action on an automatic
// task. It only succeeds when the underlying condition really is resolved;
// otherwise the next reconciliation run would recreate the task anyway, so
// the caller is told to fix the booking record instead.
func (s *TaskService) ResolveAutomaticTask(ctx context.Context, taskID string, actor Actor) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.IsAutomatic {
		return &models.ValidationError{Reason: "task is not automatic"}
	}
	if !task.HasAssignee(actor.ID) && !actor.elevated() {
		return &models.PermissionError{Reason: "only an assignee or a manager may resolve"}
	}
	rule, ok := RuleByName(task.RuleName)
	if !ok {
		// Rule left the catalog; the task is an orphan either way.
		return withRetry(func() error { return s.tasks.Delete(ctx, taskID) })
	}
	event, err := s.events.GetByID(ctx, task.EventID)
	if err != nil {
		if _, missing := asNotFound(err); !missing {
			return err
		}
		event = nil
	}
	if event != nil && rule.Deficient(*event) {
		return &models.ConflictError{Reason: "condition is still unresolved on the booking; update the booking instead"}
	}
	if err := withRetry(func() error { return s.tasks.Delete(ctx, taskID) }); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: AUTO_TASK_RESOLVED, Description: Task %s resolved by %s", taskID, actor.ID)
	return nil
}

// ListTasksForAssignee returns the actor's tasks in board order.
func (s *TaskService) ListTasksForAssignee(ctx context.Context, identity string) ([]*models.Task, error) {
	tasks, err := s.tasks.ListByAssignee(ctx, identity)
	if err != nil {
		return nil, err
	}
	models.SortTasks(tasks)
	return tasks, nil
}

// ListTasksForEvent returns every task referencing a booking, in board order.
func (s *TaskService) ListTasksForEvent(ctx context.Context, eventID string) ([]*models.Task, error) {
	tasks, err := s.tasks.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	models.SortTasks(tasks)
	return tasks, nil
}

func (s *TaskService) appendComment(ctx context.Context, taskID string, actor Actor, body string) error {
	comment := models.Comment{
		ID:         uuid.NewString(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Body:       body,
		Mentions:   utils.ExtractMentions(body),
		CreatedAt:  s.now(),
	}
	return withRetry(func() error { return s.tasks.AppendComment(ctx, taskID, comment) })
}

// notifyAssigned is best-effort; delivery problems are logged, never surfaced.
func (s *TaskService) notifyAssigned(ctx context.Context, task *models.Task, assignees ...models.Assignee) {
	if s.notifier == nil {
		return
	}
	for _, assignee := range assignees {
		if err := s.notifier.TaskAssigned(ctx, assignee, task); err != nil {
			logging.Logger.Warnf("Event ID: NOTIFY_FAILED, Description: Could not notify %s about task %s: %v",
				assignee.ID, task.ID, err)
		}
	}
}

func (s *TaskService) mayDelete(actor Actor, task *models.Task) bool {
	switch s.deletePolicy {
	case DeletePolicyCreatorOrTopTwoRoles:
		return actor.ID == task.CreatedBy || actor.Role == RoleOwner || actor.Role == RoleManager
	case DeletePolicyTopRoleOnly:
		return actor.Role == RoleOwner
	default: // creator-or-top-role
		return actor.ID == task.CreatedBy || actor.Role == RoleOwner
	}
}
