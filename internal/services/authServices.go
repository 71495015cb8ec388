package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"studynotes/internal/apperr"
	"studynotes/internal/config"
	"studynotes/internal/metrics"
	"studynotes/internal/models"
	"studynotes/internal/repositories"
)

const MaxAge = 86400 * 30

// AuthService runs registration, login, Google reconciliation and password
// reset. Each flow is stateless apart from the OTP record; callers resubmit
// the full context at every step.
type AuthService interface {
	RequestRegistrationOTP(ctx context.Context, req *models.SendOTPRequest) error
	CompleteRegistration(ctx context.Context, req *models.RegisterVerifyRequest) (*models.PublicUser, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.PublicUser, error)
	GoogleAuth(ctx context.Context, req *models.GoogleAuthRequest) (*models.PublicUser, error)
	RequestPasswordReset(ctx context.Context, req *models.SendOTPRequest) error
	CompleteReset(ctx context.Context, req *models.ResetPasswordRequest) error
}

type authService struct {
	userRepo   repositories.UserRepository
	otps       OTPService
	notifier   Notifier
	bcryptCost int
}

func NewAuthService(userRepo repositories.UserRepository, otps OTPService, notifier Notifier, cfg config.AuthConfig) AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{userRepo: userRepo, otps: otps, notifier: notifier, bcryptCost: cost}
}

// InitializeGoth registers the Google provider and the cookie store gothic
// keeps OAuth state in. It is a no-op when Google credentials are missing.
func InitializeGoth(cfg config.OAuthConfig) bool {
	if !cfg.GoogleOAuthEnabled() {
		log.Warn().Msg("Google OAuth credentials not set, /api/auth routes disabled")
		return false
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.MaxAge(MaxAge)

	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.SecureCookies
	store.Options.SameSite = http.SameSiteLaxMode

	gothic.Store = store

	goth.UseProviders(
		google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, "email", "profile"),
	)
	log.Info().Msg("Goth providers initialized")
	return true
}

func (a *authService) RequestRegistrationOTP(ctx context.Context, req *models.SendOTPRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	email := models.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Registration OTP requested")

	existing, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error finding user by email")
		return apperr.ErrDeliveryFailed.With(err)
	}
	if existing != nil {
		log.Warn().Str("email", email).Msg("Registration OTP requested for existing user")
		return apperr.ErrAlreadyRegistered
	}

	return a.issueAndSend(ctx, email, models.OTPPurposeRegister)
}

func (a *authService) issueAndSend(ctx context.Context, email string, purpose models.OTPPurpose) error {
	code, err := a.otps.Issue(ctx, email, purpose)
	if err != nil {
		return apperr.ErrDeliveryFailed.With(err)
	}
	return a.notifier.SendOTPEmail(ctx, email, code, purpose)
}

func (a *authService) CompleteRegistration(ctx context.Context, req *models.RegisterVerifyRequest) (*models.PublicUser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Attempting to complete registration")

	otp, err := a.otps.Check(ctx, email, models.OTPPurposeRegister, strings.TrimSpace(req.OTP))
	if err != nil {
		return nil, registrationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password during registration")
		return nil, apperr.Internal("Registration failed", err)
	}

	user, err := a.userRepo.Create(ctx, &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		IsVerified:   true,
		AuthProvider: models.AuthProviderLocal,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			log.Warn().Str("email", email).Msg("Email already exists during user insertion")
			return nil, apperr.ErrAlreadyRegistered
		}
		return nil, apperr.Internal("Registration failed", err)
	}

	if err := a.otps.Consume(ctx, otp); err != nil {
		// The account exists at this point; a lost consume only means a
		// concurrent request already removed the record.
		log.Warn().Err(err).Str("email", email).Msg("Registration OTP was already consumed")
	}

	metrics.NewUsersTotal.Inc()
	log.Info().Str("user_id", user.ID.Hex()).Str("email", email).Msg("User registered successfully")
	return user.Public(), nil
}

// registrationError keeps typed OTP outcomes and replaces infrastructure
// faults with the flow's generic message.
func registrationError(err error) error {
	if apperr.KindOf(err) == apperr.KindInfrastructure {
		return apperr.Internal("Registration failed", err)
	}
	return err
}

func (a *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.PublicUser, error) {
	user, err := a.login(ctx, req)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

func (a *authService) login(ctx context.Context, req *models.LoginRequest) (*models.PublicUser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Attempting user login")

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error finding user for login")
		return nil, apperr.Internal("Login failed", err)
	}
	if user == nil {
		log.Warn().Str("email", email).Msg("Login attempt for unknown user")
		return nil, apperr.ErrUserNotFound
	}
	if user.AuthProvider != models.AuthProviderLocal {
		log.Warn().Str("email", email).Str("provider", string(user.AuthProvider)).Msg("Password login attempted on non-local account")
		return nil, apperr.ErrWrongProvider
	}
	if user.PasswordHash == "" {
		log.Warn().Str("user_id", user.ID.Hex()).Msg("Local account has no password hash")
		return nil, apperr.ErrNoPasswordSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Warn().Str("email", email).Msg("Invalid credentials (password mismatch) during login attempt")
			return nil, apperr.ErrWrongPassword
		}
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Stored password hash is unusable")
		return nil, apperr.Internal("Login failed", err)
	}

	if !user.IsVerified {
		log.Warn().Str("user_id", user.ID.Hex()).Msg("Login attempt on unverified account")
		return nil, apperr.ErrNotVerified
	}

	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in successfully")
	return user.Public(), nil
}

func (a *authService) GoogleAuth(ctx context.Context, req *models.GoogleAuthRequest) (*models.PublicUser, error) {
	user, result, err := a.googleAuth(ctx, req)
	if err != nil {
		metrics.GoogleAuthTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.GoogleAuthTotal.WithLabelValues(result).Inc()
	return user, nil
}

func (a *authService) googleAuth(ctx context.Context, req *models.GoogleAuthRequest) (*models.PublicUser, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}
	email := models.NormalizeEmail(req.Email)
	googleID := strings.TrimSpace(req.GoogleID)
	log.Debug().Str("email", email).Msg("Attempting Google authentication")

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error finding user by email")
		return nil, "", apperr.Internal("Google authentication failed", err)
	}

	if user != nil {
		if user.AuthProvider == models.AuthProviderLocal {
			log.Warn().Str("email", email).Msg("Google login attempted on local account")
			return nil, "", apperr.ErrProviderConflict
		}
		if user.GoogleID != "" {
			log.Info().Str("user_id", user.ID.Hex()).Msg("Google user logged in")
			return user.Public(), "login", nil
		}

		if err := a.ensureGoogleIDFree(ctx, googleID, email); err != nil {
			return nil, "", err
		}
		updated, err := a.userRepo.Update(ctx, user.ID, models.UserUpdate{GoogleID: &googleID})
		if err != nil {
			return nil, "", googleStoreError(err, email)
		}
		log.Info().Str("user_id", user.ID.Hex()).Msg("Google id linked to existing account")
		return updated.Public(), "linked", nil
	}

	if err := a.ensureGoogleIDFree(ctx, googleID, email); err != nil {
		return nil, "", err
	}
	created, err := a.userRepo.Create(ctx, &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		IsVerified:   true,
		AuthProvider: models.AuthProviderGoogle,
		GoogleID:     googleID,
	})
	if err != nil {
		return nil, "", googleStoreError(err, email)
	}

	metrics.NewUsersTotal.Inc()
	log.Info().Str("user_id", created.ID.Hex()).Str("email", email).Msg("Google user created")
	return created.Public(), "created", nil
}

func (a *authService) ensureGoogleIDFree(ctx context.Context, googleID, email string) error {
	owner, err := a.userRepo.FindByGoogleID(ctx, googleID)
	if err != nil {
		log.Error().Err(err).Msg("Error finding user by google id")
		return apperr.Internal("Google authentication failed", err)
	}
	if owner != nil && owner.Email != email {
		log.Warn().Str("email", email).Str("owner_id", owner.ID.Hex()).Msg("Google id already linked to another account")
		return apperr.ErrExternalIDTaken
	}
	return nil
}

func googleStoreError(err error, email string) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicateExternalID):
		log.Warn().Str("email", email).Msg("Google id claimed concurrently by another account")
		return apperr.ErrExternalIDTaken
	case errors.Is(err, repositories.ErrDuplicateEmail):
		// Lost a race with a concurrent sign-up for the same email.
		log.Warn().Str("email", email).Msg("Email registered concurrently during Google authentication")
		return apperr.ErrAlreadyRegistered
	}
	log.Error().Err(err).Str("email", email).Msg("Failed to store Google user")
	return apperr.Internal("Google authentication failed", err)
}

func (a *authService) RequestPasswordReset(ctx context.Context, req *models.SendOTPRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	email := models.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Password reset OTP requested")

	if _, err := a.findLocalUser(ctx, email); err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return apperr.ErrDeliveryFailed.With(err)
		}
		return err
	}

	return a.issueAndSend(ctx, email, models.OTPPurposeReset)
}

func (a *authService) findLocalUser(ctx context.Context, email string) (*models.User, error) {
	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error finding user by email")
		return nil, err
	}
	if user == nil || user.AuthProvider != models.AuthProviderLocal {
		log.Warn().Str("email", email).Msg("Local user account not found")
		return nil, apperr.ErrLocalAccountNotFound
	}
	return user, nil
}

func (a *authService) CompleteReset(ctx context.Context, req *models.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	email := models.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Attempting password reset")

	otp, err := a.otps.Check(ctx, email, models.OTPPurposeReset, strings.TrimSpace(req.OTP))
	if err != nil {
		return resetError(err)
	}

	user, err := a.findLocalUser(ctx, email)
	if err != nil {
		return resetError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), a.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash new password")
		return apperr.Internal("Password reset failed", err)
	}

	hashStr := string(hash)
	if _, err := a.userRepo.Update(ctx, user.ID, models.UserUpdate{PasswordHash: &hashStr}); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.ErrLocalAccountNotFound
		}
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Failed to update password")
		return apperr.Internal("Password reset failed", err)
	}

	// The new password is already stored; a lost consume only leaves the code to expire.
	if err := a.otps.Consume(ctx, otp); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Failed to consume reset OTP")
	}

	metrics.PasswordResetsTotal.Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset successfully")
	return nil
}

func resetError(err error) error {
	if apperr.KindOf(err) == apperr.KindInfrastructure {
		return apperr.Internal("Password reset failed", err)
	}
	return err
}
