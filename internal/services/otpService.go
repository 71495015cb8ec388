package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog/log"

	"studynotes/internal/apperr"
	"studynotes/internal/config"
	"studynotes/internal/metrics"
	"studynotes/internal/models"
	"studynotes/internal/repositories"
	"studynotes/internal/utils"
)

// OTPService issues and verifies one-time passcodes. Only the most recently
// issued code for an (email, purpose) pair is ever valid.
type OTPService interface {
	Issue(ctx context.Context, email string, purpose models.OTPPurpose) (string, error)
	// Check validates code against the stored record without consuming it.
	// A mismatch increments the attempt counter; an expired record is deleted.
	Check(ctx context.Context, email string, purpose models.OTPPurpose, code string) (*models.OTP, error)
	// Consume deletes a record returned by Check. It fails with
	// apperr.ErrOTPNotFound when another request consumed or replaced it first.
	Consume(ctx context.Context, otp *models.OTP) error
	Verify(ctx context.Context, email string, purpose models.OTPPurpose, code string) error
}

type otpService struct {
	otpRepo  repositories.OTPRepository
	cfg      config.OTPConfig
	now      func() time.Time
	generate func() (string, error)
}

type OTPOption func(*otpService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) OTPOption {
	return func(s *otpService) { s.now = now }
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(generate func() (string, error)) OTPOption {
	return func(s *otpService) { s.generate = generate }
}

func NewOTPService(otpRepo repositories.OTPRepository, cfg config.OTPConfig, opts ...OTPOption) OTPService {
	s := &otpService{
		otpRepo:  otpRepo,
		cfg:      cfg,
		now:      time.Now,
		generate: utils.GenerateSecureOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *otpService) Issue(ctx context.Context, email string, purpose models.OTPPurpose) (string, error) {
	email = models.NormalizeEmail(email)
	code, err := s.generate()
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to generate OTP")
		return "", apperr.Internal("Failed to generate OTP", err)
	}

	expiresAt := s.now().Add(s.cfg.TTL)
	if _, err := s.otpRepo.Upsert(ctx, email, purpose, code, expiresAt); err != nil {
		log.Error().Err(err).Str("email", email).Str("purpose", string(purpose)).Msg("Failed to store OTP")
		return "", apperr.Internal("Failed to store OTP", err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(string(purpose)).Inc()
	log.Info().Str("email", email).Str("purpose", string(purpose)).Time("expires_at", expiresAt).Msg("OTP issued")
	return code, nil
}

func (s *otpService) Check(ctx context.Context, email string, purpose models.OTPPurpose, code string) (*models.OTP, error) {
	email = models.NormalizeEmail(email)
	otp, err := s.otpRepo.FindByEmailAndPurpose(ctx, email, purpose)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to look up OTP")
		return nil, apperr.Internal("Failed to verify OTP", err)
	}
	if otp == nil {
		s.record(purpose, "not_found")
		return nil, apperr.ErrOTPNotFound
	}

	if otp.Expired(s.now()) {
		if _, err := s.otpRepo.DeleteIfCode(ctx, otp.ID, otp.Code); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to delete expired OTP")
			return nil, apperr.Internal("Failed to verify OTP", err)
		}
		s.record(purpose, "expired")
		log.Warn().Str("email", email).Str("purpose", string(purpose)).Msg("Expired OTP submitted")
		return nil, apperr.ErrOTPExpired
	}

	if s.cfg.MaxAttempts > 0 && otp.Attempts >= s.cfg.MaxAttempts {
		if _, err := s.otpRepo.DeleteIfCode(ctx, otp.ID, otp.Code); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to delete locked OTP")
			return nil, apperr.Internal("Failed to verify OTP", err)
		}
		s.record(purpose, "locked")
		log.Warn().Str("email", email).Int("attempts", otp.Attempts).Msg("OTP locked after too many attempts")
		return nil, apperr.ErrOTPTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		if err := s.otpRepo.IncrementAttempts(ctx, otp.ID, otp.Code); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to record OTP attempt")
			return nil, apperr.Internal("Failed to verify OTP", err)
		}
		s.record(purpose, "mismatch")
		log.Warn().Str("email", email).Str("purpose", string(purpose)).Int("attempts", otp.Attempts+1).Msg("Invalid OTP submitted")
		return nil, apperr.ErrOTPMismatch
	}

	return otp, nil
}

func (s *otpService) Consume(ctx context.Context, otp *models.OTP) error {
	deleted, err := s.otpRepo.DeleteIfCode(ctx, otp.ID, otp.Code)
	if err != nil {
		log.Error().Err(err).Str("email", otp.Email).Msg("Failed to consume OTP")
		return apperr.Internal("Failed to verify OTP", err)
	}
	if !deleted {
		s.record(otp.Purpose, "not_found")
		return apperr.ErrOTPNotFound
	}
	s.record(otp.Purpose, "ok")
	return nil
}

func (s *otpService) Verify(ctx context.Context, email string, purpose models.OTPPurpose, code string) error {
	otp, err := s.Check(ctx, email, purpose, code)
	if err != nil {
		return err
	}
	return s.Consume(ctx, otp)
}

func (s *otpService) record(purpose models.OTPPurpose, result string) {
	metrics.OTPVerificationsTotal.WithLabelValues(string(purpose), result).Inc()
}
