package repositories

import (
	"context"
	"errors"
	"time"

	"studio-project/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepository is a read-only view over the bookings collection. Events
// are owned by the bookings service; this service only evaluates them.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	// ListByDateRange returns events whose occurrence date falls in
	// [from, to] inclusive.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

type MongoEventRepository struct {
	collection *mongo.Collection
}

func NewMongoEventRepository(collection *mongo.Collection) *MongoEventRepository {
	return &MongoEventRepository{collection: collection}
}

func (r *MongoEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Kind: "event", ID: id}
		}
		return nil, &models.TransientStoreError{Op: "get event", Err: err}
	}
	return &event, nil
}

func (r *MongoEventRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	filter := bson.M{"date": bson.M{"$gte": from, "$lte": to}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"date": 1}))
	if err != nil {
		return nil, &models.TransientStoreError{Op: "list events", Err: err}
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, &models.TransientStoreError{Op: "decode events", Err: err}
	}
	return events, nil
}
