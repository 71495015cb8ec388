package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studynotes/internal/database"
	"studynotes/internal/models"
	"studynotes/internal/utils"
)

// OTPRepository stores at most one record per (email, purpose). Every method
// is a single atomic Mongo operation.
type OTPRepository interface {
	Upsert(ctx context.Context, email string, purpose models.OTPPurpose, code string, expiresAt time.Time) (*models.OTP, error)
	FindByEmailAndPurpose(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error)
	// IncrementAttempts bumps the counter only while the record still holds
	// code, so a reissued OTP starts clean.
	IncrementAttempts(ctx context.Context, otpID primitive.ObjectID, code string) error
	// DeleteIfCode removes the record only while it still holds code. It
	// reports false when the record was already consumed or replaced.
	DeleteIfCode(ctx context.Context, otpID primitive.ObjectID, code string) (bool, error)
}

type otpRepository struct {
	db database.Service
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.OTPsCollection)
}

func (r *otpRepository) Upsert(ctx context.Context, email string, purpose models.OTPPurpose, code string, expiresAt time.Time) (*models.OTP, error) {
	t := utils.NewQueryTimer("upsert", "otp")
	defer t.Done()

	now := time.Now().UTC()
	filter := bson.M{"email": email, "purpose": purpose}
	update := bson.M{
		"$set": bson.M{
			"otp":        code,
			"expires_at": expiresAt,
			"attempts":   0,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var otp models.OTP
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&otp)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on insert; the loser retries as a plain update.
		err = r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&otp)
	}
	if err != nil {
		t.Fail()
		return nil, fmt.Errorf("failed to upsert otp: %w", err)
	}
	return &otp, nil
}

// FindByEmailAndPurpose returns nil, nil when no record exists.
func (r *otpRepository) FindByEmailAndPurpose(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error) {
	t := utils.NewQueryTimer("findByEmailAndPurpose", "otp")
	defer t.Done()

	var otp models.OTP
	err := r.collection().FindOne(ctx, bson.M{"email": email, "purpose": purpose}).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		t.Fail()
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, otpID primitive.ObjectID, code string) error {
	t := utils.NewQueryTimer("incrementAttempts", "otp")
	defer t.Done()

	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := r.collection().UpdateOne(ctx, bson.M{"_id": otpID, "otp": code}, update); err != nil {
		t.Fail()
		return fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return nil
}

func (r *otpRepository) DeleteIfCode(ctx context.Context, otpID primitive.ObjectID, code string) (bool, error) {
	t := utils.NewQueryTimer("deleteIfCode", "otp")
	defer t.Done()

	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": otpID, "otp": code})
	if err != nil {
		t.Fail()
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	return res.DeletedCount == 1, nil
}
