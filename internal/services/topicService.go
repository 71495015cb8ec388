package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"studynotes/internal/apperr"
	"studynotes/internal/metrics"
	"studynotes/internal/models"
	"studynotes/internal/repositories"
)

var errInvalidUserID = apperr.Validation("Invalid user ID format")

type TopicService interface {
	ListAll(ctx context.Context) ([]models.Topic, error)
	ListByUser(ctx context.Context, userID string) ([]models.Topic, error)
	Search(ctx context.Context, query, userID string) ([]models.Topic, error)
	Get(ctx context.Context, topicID primitive.ObjectID) (*models.Topic, error)
	Create(ctx context.Context, req *models.CreateTopicRequest) (*models.Topic, error)
	Update(ctx context.Context, topicID primitive.ObjectID, req *models.UpdateTopicRequest) (*models.Topic, error)
	Delete(ctx context.Context, topicID primitive.ObjectID) error
}

type topicService struct {
	topicRepo repositories.TopicRepository
	now       func() time.Time
}

func NewTopicService(topicRepo repositories.TopicRepository) TopicService {
	return &topicService{topicRepo: topicRepo, now: time.Now}
}

func (s *topicService) ListAll(ctx context.Context) ([]models.Topic, error) {
	topics, err := s.topicRepo.Find(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list topics")
		return nil, apperr.Internal("Server error", err)
	}
	return topics, nil
}

func (s *topicService) ListByUser(ctx context.Context, userID string) ([]models.Topic, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errInvalidUserID
	}

	topics, err := s.topicRepo.Find(ctx, bson.M{"user_id": oid})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list topics for user")
		return nil, apperr.Internal("Server error", err)
	}
	return topics, nil
}

// Search matches query case-insensitively as a literal substring of the
// title, intro or path of the user's topics.
func (s *topicService) Search(ctx context.Context, query, userID string) ([]models.Topic, error) {
	query = strings.TrimSpace(query)
	if query == "" || strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("Search query and user ID are required")
	}
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errInvalidUserID
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"user_id": oid,
		"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"intro": pattern},
			bson.M{"path": pattern},
		},
	}

	topics, err := s.topicRepo.Find(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Topic search failed")
		return nil, apperr.Internal("Search failed", err)
	}
	return topics, nil
}

func (s *topicService) Get(ctx context.Context, topicID primitive.ObjectID) (*models.Topic, error) {
	topic, err := s.topicRepo.FindOne(ctx, bson.M{"_id": topicID})
	if err != nil {
		return nil, topicLookupError(err, topicID, "Server error")
	}
	return topic, nil
}

func (s *topicService) Create(ctx context.Context, req *models.CreateTopicRequest) (*models.Topic, error) {
	req.Trim()
	if strings.TrimSpace(req.UserID) == "" || req.Title == "" {
		return nil, apperr.Validation("userId and title are required")
	}
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, errInvalidUserID
	}

	now := s.now()
	topic := &models.Topic{
		Title:     req.Title,
		Intro:     req.Intro,
		Why:       req.Why,
		Examples:  req.Examples,
		Best:      req.Best,
		Path:      req.Path,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.topicRepo.Create(ctx, topic)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to create topic")
		return nil, apperr.Internal("Server error", err)
	}

	metrics.TopicCreatedTotal.Inc()
	log.Info().Str("topic_id", created.ID.Hex()).Str("user_id", userID.Hex()).Msg("Topic created")
	return created, nil
}

// Update replaces the editable fields of a topic. Title and path are
// required; omitted optional blocks are cleared.
func (s *topicService) Update(ctx context.Context, topicID primitive.ObjectID, req *models.UpdateTopicRequest) (*models.Topic, error) {
	req.Trim()
	if req.Title == "" || req.Path == "" {
		return nil, apperr.Validation("Title and path are required")
	}
	if req.Examples == nil {
		req.Examples = []models.CodeExample{}
	}

	update := bson.M{"$set": bson.M{
		"title":      req.Title,
		"path":       req.Path,
		"intro":      req.Intro,
		"why":        req.Why,
		"examples":   req.Examples,
		"best":       req.Best,
		"updated_at": s.now(),
	}}
	topic, err := s.topicRepo.UpdateOne(ctx, bson.M{"_id": topicID}, update)
	if err != nil {
		return nil, topicLookupError(err, topicID, "Server error while updating topic")
	}

	log.Info().Str("topic_id", topicID.Hex()).Msg("Topic updated")
	return topic, nil
}

func (s *topicService) Delete(ctx context.Context, topicID primitive.ObjectID) error {
	deleted, err := s.topicRepo.DeleteOne(ctx, bson.M{"_id": topicID})
	if err != nil {
		log.Error().Err(err).Str("topic_id", topicID.Hex()).Msg("Failed to delete topic")
		return apperr.Internal("Server error", err)
	}
	if deleted == 0 {
		return apperr.ErrTopicNotFound
	}

	log.Info().Str("topic_id", topicID.Hex()).Msg("Topic deleted")
	return nil
}

func topicLookupError(err error, topicID primitive.ObjectID, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.ErrTopicNotFound
	}
	log.Error().Err(err).Str("topic_id", topicID.Hex()).Msg(message)
	return apperr.Internal(message, err)
}
