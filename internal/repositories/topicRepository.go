package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studynotes/internal/database"
	"studynotes/internal/models"
	"studynotes/internal/utils"
)

type TopicRepository interface {
	Create(ctx context.Context, topic *models.Topic) (*models.Topic, error)
	Find(ctx context.Context, filter bson.M) ([]models.Topic, error)
	FindOne(ctx context.Context, filter bson.M) (*models.Topic, error)
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*models.Topic, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

type topicRepository struct {
	db database.Service
}

func NewTopicRepository(db database.Service) TopicRepository {
	return &topicRepository{db: db}
}

func (r *topicRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.TopicsCollection)
}

func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) (*models.Topic, error) {
	t := utils.NewQueryTimer("create", "topic")
	defer t.Done()

	result, err := r.collection().InsertOne(ctx, topic)
	if err != nil {
		t.Fail()
		return nil, fmt.Errorf("failed to add topic: %w", err)
	}
	topic.ID = result.InsertedID.(primitive.ObjectID)
	return topic, nil
}

// Find returns matching topics, newest first.
func (r *topicRepository) Find(ctx context.Context, filter bson.M) ([]models.Topic, error) {
	t := utils.NewQueryTimer("find", "topic")
	defer t.Done()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		t.Fail()
		return nil, fmt.Errorf("failed to retrieve topics: %w", err)
	}
	defer cursor.Close(ctx)

	topics := []models.Topic{}
	if err := cursor.All(ctx, &topics); err != nil {
		t.Fail()
		return nil, fmt.Errorf("error decoding topics: %w", err)
	}
	return topics, nil
}

// FindOne returns ErrNotFound when nothing matches.
func (r *topicRepository) FindOne(ctx context.Context, filter bson.M) (*models.Topic, error) {
	t := utils.NewQueryTimer("findOne", "topic")
	defer t.Done()

	var topic models.Topic
	err := r.collection().FindOne(ctx, filter).Decode(&topic)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		t.Fail()
		return nil, fmt.Errorf("failed to retrieve topic: %w", err)
	}
	return &topic, nil
}

// UpdateOne applies update and returns the document after modification, or
// ErrNotFound.
func (r *topicRepository) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*models.Topic, error) {
	t := utils.NewQueryTimer("updateOne", "topic")
	defer t.Done()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var topic models.Topic
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&topic)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		t.Fail()
		return nil, fmt.Errorf("failed to update topic: %w", err)
	}
	return &topic, nil
}

func (r *topicRepository) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	t := utils.NewQueryTimer("deleteOne", "topic")
	defer t.Done()

	res, err := r.collection().DeleteOne(ctx, filter)
	if err != nil {
		t.Fail()
		return 0, fmt.Errorf("failed to delete topic: %w", err)
	}
	return res.DeletedCount, nil
}
