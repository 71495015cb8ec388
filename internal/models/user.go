package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

type User struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password,omitempty"`
	IsVerified   bool               `json:"isVerified" bson:"is_verified"`
	AuthProvider AuthProvider       `json:"authProvider" bson:"auth_provider"`
	GoogleID     string             `json:"-" bson:"google_id,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at"`
}

// PublicUser is the projection handed back to clients. It never carries the
// password hash.
type PublicUser struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	IsVerified   bool         `json:"isVerified"`
	AuthProvider AuthProvider `json:"authProvider"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:           u.ID.Hex(),
		Name:         u.Name,
		Email:        u.Email,
		IsVerified:   u.IsVerified,
		AuthProvider: u.AuthProvider,
	}
}

// UserUpdate is a partial patch for a user document. Nil fields are left
// untouched.
type UserUpdate struct {
	Name         *string `bson:"name,omitempty"`
	PasswordHash *string `bson:"password,omitempty"`
	IsVerified   *bool   `bson:"is_verified,omitempty"`
	GoogleID     *string `bson:"google_id,omitempty"`
}

// NormalizeEmail lower-cases and trims an address so that lookups and the
// unique index agree on identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
