package repositories

import (
	"context"
	"errors"
	"time"

	"studio-project/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TaskPatch is a partial edit of the user-editable task fields.
// nil pointer => no change. ClearDueDate wins over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Insert(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status models.TaskStatus) error
	AppendComment(ctx context.Context, id string, comment models.Comment) error
	// AddCompletedBy atomically adds actorID to the completed-set and reports
	// whether it was actually added (false = already there).
	AddCompletedBy(ctx context.Context, id, actorID string) (bool, error)
	AddAssignee(ctx context.Context, id string, assignee models.Assignee) error
	ApplyPatch(ctx context.Context, id string, patch TaskPatch) error
	ListByAssignee(ctx context.Context, identity string) ([]*models.Task, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.Task, error)
	ListAutomaticByRule(ctx context.Context, ruleName string) ([]*models.Task, error)
}

// MongoTaskRepository keeps tasks in a single collection keyed by the task ID
// string (derived composite key for automatic tasks, UUID for manual ones).
type MongoTaskRepository struct {
	collection *mongo.Collection
}

func NewMongoTaskRepository(collection *mongo.Collection) *MongoTaskRepository {
	return &MongoTaskRepository{collection: collection}
}

func (r *MongoTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Kind: "task", ID: id}
		}
		return nil, &models.TransientStoreError{Op: "get task", Err: err}
	}
	return &task, nil
}

func (r *MongoTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	_, err := r.collection.InsertOne(ctx, task)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Another writer created the same key first; the document is the
			// one we wanted anyway.
			return &models.ConflictError{Reason: "task already exists"}
		}
		return &models.TransientStoreError{Op: "insert task", Err: err}
	}
	return nil
}

func (r *MongoTaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return &models.TransientStoreError{Op: "delete task", Err: err}
	}
	if result.DeletedCount == 0 {
		return &models.NotFoundError{Kind: "task", ID: id}
	}
	return nil
}

func (r *MongoTaskRepository) SetStatus(ctx context.Context, id string, status models.TaskStatus) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"status": status}}, "set task status")
}

func (r *MongoTaskRepository) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	return r.updateOne(ctx, id, bson.M{"$push": bson.M{"comments": comment}}, "append comment")
}

func (r *MongoTaskRepository) AddCompletedBy(ctx context.Context, id, actorID string) (bool, error) {
	// $addToSet keeps concurrent completions from two assignees from losing
	// each other; ModifiedCount==0 means the actor was already in the set.
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"completedBy": actorID}},
	)
	if err != nil {
		return false, &models.TransientStoreError{Op: "add completion", Err: err}
	}
	if result.MatchedCount == 0 {
		return false, &models.NotFoundError{Kind: "task", ID: id}
	}
	return result.ModifiedCount > 0, nil
}

func (r *MongoTaskRepository) AddAssignee(ctx context.Context, id string, assignee models.Assignee) error {
	update := bson.M{
		"$addToSet": bson.M{"assignees": assignee},
		"$set":      bson.M{"isShared": true},
	}
	return r.updateOne(ctx, id, update, "add assignee")
}

func (r *MongoTaskRepository) ApplyPatch(ctx context.Context, id string, patch TaskPatch) error {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}
	update := bson.M{}
	if patch.ClearDueDate {
		update["$unset"] = bson.M{"dueDate": ""}
	} else if patch.DueDate != nil {
		set["dueDate"] = *patch.DueDate
	}
	if len(set) == 0 && len(update) == 0 {
		return nil
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	return r.updateOne(ctx, id, update, "edit task")
}

func (r *MongoTaskRepository) ListByAssignee(ctx context.Context, identity string) ([]*models.Task, error) {
	return r.list(ctx, bson.M{"assignees.id": identity})
}

func (r *MongoTaskRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.Task, error) {
	return r.list(ctx, bson.M{"eventId": eventID})
}

func (r *MongoTaskRepository) ListAutomaticByRule(ctx context.Context, ruleName string) ([]*models.Task, error) {
	return r.list(ctx, bson.M{"isAutomatic": true, "ruleName": ruleName})
}

func (r *MongoTaskRepository) list(ctx context.Context, filter bson.M) ([]*models.Task, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, &models.TransientStoreError{Op: "list tasks", Err: err}
	}
	defer cursor.Close(ctx)

	var tasks []*models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, &models.TransientStoreError{Op: "decode tasks", Err: err}
	}
	return tasks, nil
}

func (r *MongoTaskRepository) updateOne(ctx context.Context, id string, update bson.M, op string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return &models.TransientStoreError{Op: op, Err: err}
	}
	if result.MatchedCount == 0 {
		return &models.NotFoundError{Kind: "task", ID: id}
	}
	return nil
}
