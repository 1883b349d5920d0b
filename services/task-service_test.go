package services

import (
	"context"
	"testing"
	"time"

	"studio-project/microservices/tasks-service/models"
	"studio-project/microservices/tasks-service/repositories"
	"studio-project/microservices/tasks-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator = Actor{ID: "ayse@studio.com", Name: "Ayşe Yılmaz", Role: RoleMember}
	partner = Actor{ID: "fatma@studio.com", Name: "Fatma Demir", Role: RoleMember}
	owner   = Actor{ID: "boss@studio.com", Name: "Hülya Arslan", Role: RoleOwner}
)

type lifecycleFixture struct {
	service *TaskService
	tasks   *repositories.MemoryTaskRepository
	events  *repositories.MemoryEventRepository
}

func newLifecycleFixture(t *testing.T, policy DeletePolicy) *lifecycleFixture {
	t.Helper()
	tasks := repositories.NewMemoryTaskRepository()
	events := repositories.NewMemoryEventRepository()
	return &lifecycleFixture{
		service: NewTaskService(tasks, events, nil, policy),
		tasks:   tasks,
		events:  events,
	}
}

func (f *lifecycleFixture) createTask(t *testing.T, actor Actor, assignees ...models.Assignee) *models.Task {
	t.Helper()
	task, err := f.service.Create(context.Background(), actor, CreateTaskInput{
		Title:     "prepare trial appointment",
		Assignees: assignees,
	})
	require.NoError(t, err)
	return task
}

func assignee(a Actor) models.Assignee {
	return models.Assignee{ID: a.ID, Name: a.Name}
}

func TestCreate_Validation(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)

	_, err := f.service.Create(context.Background(), creator, CreateTaskInput{
		Title: "  ", Assignees: []models.Assignee{assignee(creator)},
	})
	var validation *models.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = f.service.Create(context.Background(), creator, CreateTaskInput{Title: "x"})
	assert.ErrorAs(t, err, &validation)
}

func TestCreate_SharedFlag(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)

	single := f.createTask(t, creator, assignee(creator))
	assert.False(t, single.IsShared)

	shared := f.createTask(t, creator, assignee(creator), assignee(partner))
	assert.True(t, shared.IsShared)
	assert.Equal(t, models.PriorityNormal, shared.Priority)
	assert.Equal(t, models.StatusPending, shared.Status)
}

func TestStart_OnlyFromPending(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	started, err := f.service.Start(context.Background(), task.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)

	_, err = f.service.Start(context.Background(), task.ID, creator)
	var conflict *models.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestStart_RequiresAssignee(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	_, err := f.service.Start(context.Background(), task.ID, partner)
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)
}

func TestComplete_FirstCompletionNeedsNote(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	_, err := f.service.Complete(context.Background(), task.ID, creator, "")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	result, err := f.service.Complete(context.Background(), task.ID, creator, "dress fitting booked")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, models.StatusDone, result.Task.Status)
	require.Len(t, result.Task.Comments, 1)
	assert.Equal(t, "dress fitting booked", result.Task.Comments[0].Body)
}

func TestComplete_NoteOptionalOnceCommented(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))
	_, err := f.service.AddComment(context.Background(), task.ID, creator, "spoke to the bride")
	require.NoError(t, err)

	result, err := f.service.Complete(context.Background(), task.ID, creator, "")
	require.NoError(t, err)
	assert.True(t, result.Done)
}

func TestComplete_SharedTracksPerAssignee(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator), assignee(partner))

	first, err := f.service.Complete(context.Background(), task.ID, creator, "my half done")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, []string{partner.Name}, first.WaitingOn)
	assert.NotEqual(t, models.StatusDone, first.Task.Status)
	assert.Equal(t, []string{creator.ID}, first.Task.CompletedBy)

	_, err = f.service.Complete(context.Background(), task.ID, creator, "")
	var conflict *models.ConflictError
	assert.ErrorAs(t, err, &conflict)

	second, err := f.service.Complete(context.Background(), task.ID, partner, "")
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.Equal(t, models.StatusDone, second.Task.Status)
}

func TestComplete_RequiresAssignee(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	_, err := f.service.Complete(context.Background(), task.ID, owner, "note")
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)
}

func TestAddComment_PermissionsAndMentions(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(partner))

	// Creator may comment even without being an assignee.
	comment, err := f.service.AddComment(context.Background(), task.ID, creator, "check with @Fatma Demir")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fatma Demir"}, comment.Mentions)

	_, err = f.service.AddComment(context.Background(), task.ID, owner, "hello")
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)
}

func TestAddAssignee_ConvertsToShared(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	updated, err := f.service.AddAssignee(context.Background(), task.ID, creator, assignee(partner))
	require.NoError(t, err)
	assert.True(t, updated.IsShared)
	assert.Len(t, updated.Assignees, 2)
}

func TestAddAssignee_RequiresCreatorOrElevated(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	_, err := f.service.AddAssignee(context.Background(), task.ID, partner, assignee(partner))
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)

	// A manager who did not create the task may.
	manager := Actor{ID: "m@studio.com", Name: "M", Role: RoleManager}
	_, err = f.service.AddAssignee(context.Background(), task.ID, manager, assignee(partner))
	assert.NoError(t, err)
}

func TestEdit_NeverOnAutomaticTasks(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	auto := seedAutomaticTask(t, f.tasks, "w1", RulePaymentTracking, assignee(creator))

	title := "renamed"
	_, err := f.service.Edit(context.Background(), auto.ID, owner, repositories.TaskPatch{Title: &title})
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)
}

func TestEdit_ByCreator(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	title := "final dress rehearsal"
	priority := models.PriorityHigh
	updated, err := f.service.Edit(context.Background(), task.ID, creator, repositories.TaskPatch{
		Title: &title, Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, "final dress rehearsal", updated.Title)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
}

func TestEditAndAddAssignee_TerminalTasksAreFrozen(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))
	_, err := f.service.Cancel(context.Background(), task.ID, creator)
	require.NoError(t, err)

	var conflict *models.ConflictError
	title := "renamed"
	_, err = f.service.Edit(context.Background(), task.ID, creator, repositories.TaskPatch{Title: &title})
	assert.ErrorAs(t, err, &conflict)

	_, err = f.service.AddAssignee(context.Background(), task.ID, creator, assignee(partner))
	assert.ErrorAs(t, err, &conflict)

	done := f.createTask(t, creator, assignee(creator))
	_, err = f.service.Complete(context.Background(), done.ID, creator, "finished")
	require.NoError(t, err)

	_, err = f.service.Edit(context.Background(), done.ID, creator, repositories.TaskPatch{Title: &title})
	assert.ErrorAs(t, err, &conflict)
}

func TestDelete_PolicyGates(t *testing.T) {
	ctx := context.Background()

	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))
	var permission *models.PermissionError
	assert.ErrorAs(t, f.service.Delete(ctx, task.ID, partner), &permission)
	assert.NoError(t, f.service.Delete(ctx, task.ID, creator))

	f = newLifecycleFixture(t, DeletePolicyTopRoleOnly)
	task = f.createTask(t, creator, assignee(creator))
	assert.ErrorAs(t, f.service.Delete(ctx, task.ID, creator), &permission)
	assert.NoError(t, f.service.Delete(ctx, task.ID, owner))

	f = newLifecycleFixture(t, DeletePolicyCreatorOrTopTwoRoles)
	task = f.createTask(t, creator, assignee(creator))
	manager := Actor{ID: "m@studio.com", Name: "M", Role: RoleManager}
	assert.NoError(t, f.service.Delete(ctx, task.ID, manager))
}

func TestDelete_NeverOnAutomaticTasks(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	auto := seedAutomaticTask(t, f.tasks, "w1", RulePaymentTracking, assignee(creator))

	err := f.service.Delete(context.Background(), auto.ID, owner)
	var permission *models.PermissionError
	assert.ErrorAs(t, err, &permission)
}

func TestResolveAutomaticTask(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	auto := seedAutomaticTask(t, f.tasks, "w1", RulePaymentTracking, assignee(creator))

	// Payment still outstanding: resolving must fail, the booking is the
	// source of truth.
	f.events.Put(models.Event{ID: "w1", Date: weddingDay, MakeupArtistID: creator.ID, PaymentStatus: ""})
	err := f.service.ResolveAutomaticTask(context.Background(), auto.ID, creator)
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)

	f.events.Put(models.Event{ID: "w1", Date: weddingDay, MakeupArtistID: creator.ID, PaymentStatus: "--"})
	require.NoError(t, f.service.ResolveAutomaticTask(context.Background(), auto.ID, creator))

	_, err = f.tasks.GetByID(context.Background(), auto.ID)
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestResolveAutomaticTask_RejectsManualTasks(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	task := f.createTask(t, creator, assignee(creator))

	err := f.service.ResolveAutomaticTask(context.Background(), task.ID, creator)
	var validation *models.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestListTasksForAssignee_BoardOrder(t *testing.T) {
	f := newLifecycleFixture(t, DeletePolicyCreatorOrTopRole)
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	f.service.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for _, p := range []models.TaskPriority{models.PriorityLow, models.PriorityUrgent, models.PriorityNormal} {
		_, err := f.service.Create(context.Background(), creator, CreateTaskInput{
			Title:     string(p) + " job",
			Priority:  p,
			Assignees: []models.Assignee{assignee(creator)},
		})
		require.NoError(t, err)
	}

	tasks, err := f.service.ListTasksForAssignee(context.Background(), creator.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, models.PriorityUrgent, tasks[0].Priority)
	assert.Equal(t, models.PriorityNormal, tasks[1].Priority)
	assert.Equal(t, models.PriorityLow, tasks[2].Priority)
}

func seedAutomaticTask(t *testing.T, tasks *repositories.MemoryTaskRepository, eventID, ruleName string, a models.Assignee) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:            utils.DeriveTaskID(eventID, ruleName, a.ID),
		Title:         "generated",
		Priority:      models.PriorityUrgent,
		Status:        models.StatusPending,
		CreatedBy:     models.SystemCreator,
		CreatedByName: "System",
		IsAutomatic:   true,
		Assignees:     []models.Assignee{a},
		CompletedBy:   []string{},
		EventID:       eventID,
		RuleName:      ruleName,
	}
	require.NoError(t, tasks.Insert(context.Background(), task))
	return task
}
