package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studynotes/internal/database"
	"studynotes/internal/models"
	"studynotes/internal/utils"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateExternalID = errors.New("google id already linked")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Update(ctx context.Context, userID primitive.ObjectID, patch models.UserUpdate) (*models.User, error)
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	db database.Service
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.UsersCollection)
}

// duplicateUserError translates a unique index violation into the matching
// domain error. Other errors pass through unchanged.
func duplicateUserError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "google_id") {
		return fmt.Errorf("%w: %v", ErrDuplicateExternalID, err)
	}
	return fmt.Errorf("%w: %v", ErrDuplicateEmail, err)
}

// Create inserts user, stamping its id and timestamps. Unique index
// violations surface as ErrDuplicateEmail or ErrDuplicateExternalID.
func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	t := utils.NewQueryTimer("create", "user")
	defer t.Done()

	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.collection().InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn().Str("email", user.Email).Msg("Duplicate key while inserting user")
			return nil, duplicateUserError(err)
		}
		t.Fail()
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to insert user into database")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) findOne(ctx context.Context, queryType string, filter bson.M) (*models.User, error) {
	t := utils.NewQueryTimer(queryType, "user")
	defer t.Done()

	var user models.User
	err := r.collection().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		t.Fail()
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindByEmail returns nil, nil when no user has the address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "findByEmail", bson.M{"email": models.NormalizeEmail(email)})
}

func (r *userRepository) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, "findById", bson.M{"_id": userID})
}

func (r *userRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.findOne(ctx, "findByGoogleId", bson.M{"google_id": googleID})
}

// Update applies patch and returns the updated document. updated_at is always
// refreshed.
func (r *userRepository) Update(ctx context.Context, userID primitive.ObjectID, patch models.UserUpdate) (*models.User, error) {
	t := utils.NewQueryTimer("update", "user")
	defer t.Done()

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		set["is_verified"] = *patch.IsVerified
	}
	if patch.GoogleID != nil {
		set["google_id"] = *patch.GoogleID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection().FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateUserError(err)
		}
		t.Fail()
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Error updating user")
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) CountAll(ctx context.Context) (int64, error) {
	t := utils.NewQueryTimer("countAll", "user")
	defer t.Done()

	count, err := r.collection().CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fail()
		log.Error().Err(err).Msg("Failed to count total users")
		return 0, fmt.Errorf("failed to count total users: %w", err)
	}
	return count, nil
}
