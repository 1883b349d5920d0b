package repositories

import (
	"context"
	"errors"

	"studio-project/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsRepository holds one document per automatic-task rule.
type SettingsRepository interface {
	List(ctx context.Context) ([]models.AutomaticRuleSetting, error)
	Get(ctx context.Context, ruleName string) (*models.AutomaticRuleSetting, error)
	Upsert(ctx context.Context, setting models.AutomaticRuleSetting) error
}

type MongoSettingsRepository struct {
	collection *mongo.Collection
}

func NewMongoSettingsRepository(collection *mongo.Collection) *MongoSettingsRepository {
	return &MongoSettingsRepository{collection: collection}
}

func (r *MongoSettingsRepository) List(ctx context.Context) ([]models.AutomaticRuleSetting, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, &models.TransientStoreError{Op: "list rule settings", Err: err}
	}
	defer cursor.Close(ctx)

	var settings []models.AutomaticRuleSetting
	if err := cursor.All(ctx, &settings); err != nil {
		return nil, &models.TransientStoreError{Op: "decode rule settings", Err: err}
	}
	return settings, nil
}

func (r *MongoSettingsRepository) Get(ctx context.Context, ruleName string) (*models.AutomaticRuleSetting, error) {
	var setting models.AutomaticRuleSetting
	err := r.collection.FindOne(ctx, bson.M{"_id": ruleName}).Decode(&setting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Kind: "rule setting", ID: ruleName}
		}
		return nil, &models.TransientStoreError{Op: "get rule setting", Err: err}
	}
	return &setting, nil
}

func (r *MongoSettingsRepository) Upsert(ctx context.Context, setting models.AutomaticRuleSetting) error {
	update := bson.M{"$set": bson.M{
		"active":         setting.Active,
		"activationDate": setting.ActivationDate,
		"description":    setting.Description,
	}}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": setting.RuleName}, update, options.Update().SetUpsert(true))
	if err != nil {
		return &models.TransientStoreError{Op: "upsert rule setting", Err: err}
	}
	return nil
}
