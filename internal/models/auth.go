package models

import (
	"net/mail"
	"strings"

	"studynotes/internal/apperr"
)

// Request bodies for the /api/users endpoints. Each is validated at the HTTP
// boundary before it reaches the auth service.

type SendOTPRequest struct {
	Email string `json:"email"`
}

func (r *SendOTPRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return apperr.Validation("Email is required")
	}
	return validateEmail(r.Email)
}

type RegisterVerifyRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

func (r *RegisterVerifyRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" || strings.TrimSpace(r.OTP) == "" {
		return apperr.Validation("All fields are required")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	return validateEmail(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return apperr.Validation("Email and password required")
	}
	return nil
}

type GoogleAuthRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	GoogleID string `json:"googleId"`
}

func (r *GoogleAuthRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.GoogleID) == "" {
		return apperr.Validation("Google authentication data is required")
	}
	return validateEmail(r.Email)
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.OTP) == "" || r.NewPassword == "" {
		return apperr.Validation("All fields are required")
	}
	if err := validatePassword(r.NewPassword); err != nil {
		return err
	}
	return validateEmail(r.Email)
}

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

func validatePassword(password string) error {
	if len(password) > MaxPasswordBytes {
		return apperr.Validation("Password must be at most 72 bytes")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if len(email) > 254 {
		return apperr.Validation("Invalid email format")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("Invalid email format")
	}
	return nil
}

