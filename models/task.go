package models

import (
	"sort"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in progress"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// SystemCreator marks tasks generated by the reconciliation engine rather
// than by a staff member.
const SystemCreator = "system"

var priorityRank = map[TaskPriority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// ValidPriority reports whether p is one of the four known priorities.
func ValidPriority(p TaskPriority) bool {
	_, ok := priorityRank[p]
	return ok
}

type Assignee struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

type Comment struct {
	ID         string    `json:"id" bson:"id"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Body       string    `json:"body" bson:"body"`
	Mentions   []string  `json:"mentions,omitempty" bson:"mentions,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Task is a single action item. Automatic tasks are keyed by the composite
// ID derived from (event, rule, assignee); manual tasks get a UUID.
type Task struct {
	ID            string       `json:"id" bson:"_id"`
	Title         string       `json:"title" bson:"title"`
	Description   string       `json:"description" bson:"description"`
	Priority      TaskPriority `json:"priority" bson:"priority"`
	Status        TaskStatus   `json:"status" bson:"status"`
	CreatedBy     string       `json:"createdBy" bson:"createdBy"`
	CreatedByName string       `json:"createdByName" bson:"createdByName"`
	CreatedAt     time.Time    `json:"createdAt" bson:"createdAt"`
	DueDate       *time.Time   `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	IsAutomatic   bool         `json:"isAutomatic" bson:"isAutomatic"`
	IsShared      bool         `json:"isShared" bson:"isShared"`
	Assignees     []Assignee   `json:"assignees" bson:"assignees"`
	CompletedBy   []string     `json:"completedBy" bson:"completedBy"`
	EventID       string       `json:"eventId,omitempty" bson:"eventId,omitempty"`
	RuleName      string       `json:"ruleName,omitempty" bson:"ruleName,omitempty"`
	Comments      []Comment    `json:"comments" bson:"comments"`
}

// HasAssignee reports whether identity is on the task.
func (t *Task) HasAssignee(identity string) bool {
	for _, a := range t.Assignees {
		if a.ID == identity {
			return true
		}
	}
	return false
}

// HasCompleted reports whether identity is already in the completed-set.
func (t *Task) HasCompleted(identity string) bool {
	for _, id := range t.CompletedBy {
		if id == identity {
			return true
		}
	}
	return false
}

// AllAssigneesCompleted reports whether every assignee is in the
// completed-set. A shared task is done exactly when this holds.
func (t *Task) AllAssigneesCompleted() bool {
	if len(t.Assignees) == 0 {
		return false
	}
	for _, a := range t.Assignees {
		if !t.HasCompleted(a.ID) {
			return false
		}
	}
	return true
}

// IsTerminal reports whether the task accepts no further manual transitions.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusDone || t.Status == StatusCancelled
}

// SortTasks orders tasks the way the board renders them: urgent first, then
// high, normal, low; ties broken by newest creation time.
func SortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := priorityRank[tasks[i].Priority], priorityRank[tasks[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
