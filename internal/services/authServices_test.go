package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"studynotes/internal/apperr"
	"studynotes/internal/config"
	"studynotes/internal/models"
)

type authFixture struct {
	users  *fakeUserRepo
	otps   *fakeOTPRepo
	mailer *fakeMailer
	clock  *fakeClock
	svc    AuthService
}

func newAuthFixture(codes ...string) *authFixture {
	if len(codes) == 0 {
		codes = []string{"482913"}
	}
	f := &authFixture{
		users:  newFakeUserRepo(),
		otps:   newFakeOTPRepo(),
		mailer: &fakeMailer{},
		clock:  &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	otpCfg := config.OTPConfig{TTL: 10 * time.Minute}
	otpService := NewOTPService(f.otps, otpCfg, WithClock(f.clock.Now), WithCodeGenerator(sequenceCodes(codes...)))
	f.svc = NewAuthService(f.users, otpService, NewEmailNotifier(f.mailer, otpCfg), config.AuthConfig{BcryptCost: bcrypt.MinCost})
	return f
}

func (f *authFixture) seedLocal(t *testing.T, email, password string, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), &models.User{
		Name: "Seed", Email: email, PasswordHash: string(hash),
		IsVerified: verified, AuthProvider: models.AuthProviderLocal,
	})
	require.NoError(t, err)
	return u
}

func (f *authFixture) seedGoogle(t *testing.T, email, googleID string) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), &models.User{
		Name: "Seed", Email: email, GoogleID: googleID,
		IsVerified: true, AuthProvider: models.AuthProviderGoogle,
	})
	require.NoError(t, err)
	return u
}

func TestRegistrationScenario(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "alice@example.com"}))

	mail := f.mailer.last()
	assert.Equal(t, "alice@example.com", mail.to)
	assert.Equal(t, "Verify Your Email - OTP Code", mail.subject)
	assert.Contains(t, mail.html, "482913")

	req := &models.RegisterVerifyRequest{Name: "Alice", Email: "alice@example.com", Password: "Secr3t!", OTP: "482913"}
	user, err := f.svc.CompleteRegistration(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsVerified)
	assert.Equal(t, models.AuthProviderLocal, user.AuthProvider)
	assert.NotEmpty(t, user.ID)

	stored, err := f.users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Secr3t!", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secr3t!")))
	assert.Nil(t, f.otps.get("alice@example.com", models.OTPPurposeRegister))

	_, err = f.svc.CompleteRegistration(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrOTPNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 1, f.users.count())
}

func TestRequestRegistrationOTPRejectsExistingEmail(t *testing.T) {
	f := newAuthFixture()
	f.seedGoogle(t, "taken@example.com", "g-1")

	err := f.svc.RequestRegistrationOTP(context.Background(), &models.SendOTPRequest{Email: "Taken@Example.com"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyRegistered)
	assert.Empty(t, f.mailer.sent)
	assert.Nil(t, f.otps.get("taken@example.com", models.OTPPurposeRegister))
}

func TestRegistrationSucceedsAfterWrongAttempts(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()
	require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "bob@example.com"}))

	wrong := &models.RegisterVerifyRequest{Name: "Bob", Email: "bob@example.com", Password: "pw", OTP: "111111"}
	for i := 1; i <= 3; i++ {
		_, err := f.svc.CompleteRegistration(ctx, wrong)
		assert.ErrorIs(t, err, apperr.ErrOTPMismatch)
		assert.Equal(t, i, f.otps.get("bob@example.com", models.OTPPurposeRegister).Attempts)
	}
	assert.Equal(t, 0, f.users.count())

	wrong.OTP = "482913"
	_, err := f.svc.CompleteRegistration(ctx, wrong)
	require.NoError(t, err)
}

func TestRegistrationWithExpiredOTP(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()
	require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "bob@example.com"}))

	f.clock.Advance(11 * time.Minute)
	req := &models.RegisterVerifyRequest{Name: "Bob", Email: "bob@example.com", Password: "pw", OTP: "482913"}
	_, err := f.svc.CompleteRegistration(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrOTPExpired)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))

	_, err = f.svc.CompleteRegistration(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrOTPNotFound)
	assert.Equal(t, 0, f.users.count())
}

func TestConcurrentRegistrationCompletions(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()
	require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "race@example.com"}))

	var gate sync.WaitGroup
	gate.Add(2)
	f.users.createGate = &gate

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CompleteRegistration(ctx, &models.RegisterVerifyRequest{
				Name: "Racer", Email: "race@example.com", Password: "pw", OTP: "482913",
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrAlreadyRegistered):
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, f.users.count())
}

func TestRequestOTPDeliveryFailure(t *testing.T) {
	f := newAuthFixture()
	f.mailer.err = errors.New("smtp: 535 authentication failed")

	err := f.svc.RequestRegistrationOTP(context.Background(), &models.SendOTPRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, apperr.ErrDeliveryFailed)
	assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(err))
	assert.Equal(t, "Error sending OTP", apperr.PublicMessage(err, ""))
}

func TestRegistrationStorageFailureIsGeneric(t *testing.T) {
	f := newAuthFixture("482913")
	ctx := context.Background()
	require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "a@x.com"}))

	f.users.failNext = errStoreDown
	_, err := f.svc.CompleteRegistration(ctx, &models.RegisterVerifyRequest{Name: "A", Email: "a@x.com", Password: "pw", OTP: "482913"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(err))
	assert.Equal(t, "Registration failed", apperr.PublicMessage(err, ""))
	assert.NotNil(t, f.otps.get("a@x.com", models.OTPPurposeRegister))
}

func TestValidationRunsBeforeStorage(t *testing.T) {
	f := newAuthFixture()
	f.users.failNext = errStoreDown

	_, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = f.svc.RequestRegistrationOTP(context.Background(), &models.SendOTPRequest{Email: "not-an-email"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, errStoreDown, f.users.failNext)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedLocal(t, "local@example.com", "right", true)
	f.seedLocal(t, "pending@example.com", "right", false)
	f.seedGoogle(t, "google@example.com", "g-1")
	_, err := f.users.Create(ctx, &models.User{Name: "NoHash", Email: "nohash@example.com", IsVerified: true, AuthProvider: models.AuthProviderLocal})
	require.NoError(t, err)

	tests := []struct {
		name    string
		email   string
		pass    string
		wantErr error
	}{
		{"unknown user", "ghost@example.com", "x", apperr.ErrUserNotFound},
		{"google account", "google@example.com", "right", apperr.ErrWrongProvider},
		{"missing hash", "nohash@example.com", "right", apperr.ErrNoPasswordSet},
		{"wrong password", "local@example.com", "wrong", apperr.ErrWrongPassword},
		{"unverified", "pending@example.com", "right", apperr.ErrNotVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, &models.LoginRequest{Email: tt.email, Password: tt.pass})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("success", func(t *testing.T) {
		user, err := f.svc.Login(ctx, &models.LoginRequest{Email: " LOCAL@example.com", Password: "right"})
		require.NoError(t, err)
		assert.Equal(t, "local@example.com", user.Email)
		assert.True(t, user.IsVerified)
		assert.Equal(t, models.AuthProviderLocal, user.AuthProvider)
	})
}

func TestLoginOnGoogleAccountNeverComparesPassword(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	// An unparsable hash would make bcrypt fail with an infrastructure error
	// if it were ever consulted.
	_, err := f.users.Create(ctx, &models.User{
		Name: "G", Email: "g@example.com", PasswordHash: "not-a-bcrypt-hash",
		GoogleID: "g-9", IsVerified: true, AuthProvider: models.AuthProviderGoogle,
	})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "g@example.com", Password: "anything"})
	assert.ErrorIs(t, err, apperr.ErrWrongProvider)
}

func TestGoogleAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a verified google user", func(t *testing.T) {
		f := newAuthFixture()
		user, err := f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "Gina", Email: "gina@example.com", GoogleID: "g-1"})
		require.NoError(t, err)
		assert.True(t, user.IsVerified)
		assert.Equal(t, models.AuthProviderGoogle, user.AuthProvider)

		stored, err := f.users.FindByGoogleID(ctx, "g-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Empty(t, stored.PasswordHash)
	})

	t.Run("rejects local accounts whatever the google id", func(t *testing.T) {
		f := newAuthFixture()
		f.seedLocal(t, "local@example.com", "pw", true)
		f.seedGoogle(t, "other@example.com", "g-other")

		for _, gid := range []string{"g-new", "g-other"} {
			_, err := f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "L", Email: "local@example.com", GoogleID: gid})
			assert.ErrorIs(t, err, apperr.ErrProviderConflict)
		}
	})

	t.Run("backfills a missing google id", func(t *testing.T) {
		f := newAuthFixture()
		seeded := f.seedGoogle(t, "legacy@example.com", "")

		user, err := f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "L", Email: "legacy@example.com", GoogleID: "g-5"})
		require.NoError(t, err)
		assert.Equal(t, seeded.ID.Hex(), user.ID)

		stored, err := f.users.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "g-5", stored.GoogleID)
	})

	t.Run("logs in a linked account", func(t *testing.T) {
		f := newAuthFixture()
		seeded := f.seedGoogle(t, "linked@example.com", "g-7")

		user, err := f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "L", Email: "linked@example.com", GoogleID: "g-7"})
		require.NoError(t, err)
		assert.Equal(t, seeded.ID.Hex(), user.ID)
		assert.Equal(t, 1, f.users.count())
	})

	t.Run("rejects a google id bound to another email", func(t *testing.T) {
		f := newAuthFixture()
		f.seedGoogle(t, "owner@example.com", "g-8")

		_, err := f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "N", Email: "new@example.com", GoogleID: "g-8"})
		assert.ErrorIs(t, err, apperr.ErrExternalIDTaken)

		f.seedGoogle(t, "legacy@example.com", "")
		_, err = f.svc.GoogleAuth(ctx, &models.GoogleAuthRequest{Name: "N", Email: "legacy@example.com", GoogleID: "g-8"})
		assert.ErrorIs(t, err, apperr.ErrExternalIDTaken)
	})
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newAuthFixture("777777")
	ctx := context.Background()
	f.seedLocal(t, "a@x.com", "old-password", true)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "a@x.com"}))
	assert.Equal(t, "Password Reset OTP", f.mailer.last().subject)
	assert.Contains(t, f.mailer.last().html, "777777")

	req := &models.ResetPasswordRequest{Email: "a@x.com", OTP: "777777", NewPassword: "new-password"}
	require.NoError(t, f.svc.CompleteReset(ctx, req))
	assert.Nil(t, f.otps.get("a@x.com", models.OTPPurposeReset))

	_, err := f.svc.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "new-password"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "old-password"})
	assert.ErrorIs(t, err, apperr.ErrWrongPassword)

	err = f.svc.CompleteReset(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrOTPNotFound)
}

func TestPasswordResetRequiresLocalAccount(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedGoogle(t, "g@example.com", "g-1")

	err := f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "g@example.com"})
	assert.ErrorIs(t, err, apperr.ErrLocalAccountNotFound)

	err = f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, apperr.ErrLocalAccountNotFound)
	assert.Empty(t, f.mailer.sent)
}

func TestCompleteResetWrongOTPKeepsPassword(t *testing.T) {
	f := newAuthFixture("777777")
	ctx := context.Background()
	f.seedLocal(t, "a@x.com", "old-password", true)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "a@x.com"}))

	err := f.svc.CompleteReset(ctx, &models.ResetPasswordRequest{Email: "a@x.com", OTP: "000000", NewPassword: "new"})
	assert.ErrorIs(t, err, apperr.ErrOTPMismatch)

	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "old-password"})
	assert.NoError(t, err)
}

func TestOverlongPasswordIsValidation(t *testing.T) {
	long := strings.Repeat("p", models.MaxPasswordBytes+8)
	ctx := context.Background()

	t.Run("registration", func(t *testing.T) {
		f := newAuthFixture()
		require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "long@example.com"}))

		_, err := f.svc.CompleteRegistration(ctx, &models.RegisterVerifyRequest{
			Name: "Long", Email: "long@example.com", Password: long, OTP: "482913",
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, 0, f.users.count())
		assert.NotNil(t, f.otps.get("long@example.com", models.OTPPurposeRegister))
	})

	t.Run("reset", func(t *testing.T) {
		f := newAuthFixture("777777")
		f.seedLocal(t, "a@x.com", "old-password", true)
		require.NoError(t, f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "a@x.com"}))

		err := f.svc.CompleteReset(ctx, &models.ResetPasswordRequest{Email: "a@x.com", OTP: "777777", NewPassword: long})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.NotNil(t, f.otps.get("a@x.com", models.OTPPurposeReset))
	})

	t.Run("exactly at the limit", func(t *testing.T) {
		f := newAuthFixture()
		require.NoError(t, f.svc.RequestRegistrationOTP(ctx, &models.SendOTPRequest{Email: "edge@example.com"}))

		pw := strings.Repeat("p", models.MaxPasswordBytes)
		_, err := f.svc.CompleteRegistration(ctx, &models.RegisterVerifyRequest{
			Name: "Edge", Email: "edge@example.com", Password: pw, OTP: "482913",
		})
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "edge@example.com", Password: pw})
		assert.NoError(t, err)
	})
}

func TestCompleteResetStorageFailureKeepsOTP(t *testing.T) {
	f := newAuthFixture("777777")
	ctx := context.Background()
	f.seedLocal(t, "a@x.com", "old-password", true)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, &models.SendOTPRequest{Email: "a@x.com"}))

	req := &models.ResetPasswordRequest{Email: "a@x.com", OTP: "777777", NewPassword: "new-password"}
	f.users.failUpdate = errStoreDown
	err := f.svc.CompleteReset(ctx, req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(err))
	assert.NotNil(t, f.otps.get("a@x.com", models.OTPPurposeReset))

	require.NoError(t, f.svc.CompleteReset(ctx, req))
	assert.Nil(t, f.otps.get("a@x.com", models.OTPPurposeReset))
	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "new-password"})
	assert.NoError(t, err)
}
