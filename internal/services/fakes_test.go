package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"studynotes/internal/models"
	"studynotes/internal/repositories"
)

var errStoreDown = errors.New("connection refused")

// fakeUserRepo mirrors the unique email and sparse unique google_id indexes
// of the Mongo repository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User

	// createGate, when set, holds every Create until the gate is released.
	createGate *sync.WaitGroup
	failNext   error
	failUpdate error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	if r.createGate != nil {
		r.createGate.Done()
		r.createGate.Wait()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, repositories.ErrDuplicateEmail
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return nil, repositories.ErrDuplicateExternalID
		}
	}

	now := time.Now().UTC()
	cp := *user
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) FindByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.GoogleID != "" && u.GoogleID == googleID })
}

func (r *fakeUserRepo) Update(_ context.Context, id primitive.ObjectID, patch models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	if err := r.failUpdate; err != nil {
		r.failUpdate = nil
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if patch.GoogleID != nil {
		for _, other := range r.users {
			if other.ID != id && other.GoogleID == *patch.GoogleID {
				return nil, repositories.ErrDuplicateExternalID
			}
		}
		u.GoogleID = *patch.GoogleID
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		u.IsVerified = *patch.IsVerified
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) CountAll(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type otpKey struct {
	email   string
	purpose models.OTPPurpose
}

// fakeOTPRepo keeps one record per (email, purpose), like the unique index on
// the otps collection.
type fakeOTPRepo struct {
	mu       sync.Mutex
	records  map[otpKey]*models.OTP
	failNext error
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[otpKey]*models.OTP)}
}

func (r *fakeOTPRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeOTPRepo) Upsert(_ context.Context, email string, purpose models.OTPPurpose, code string, expiresAt time.Time) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	key := otpKey{email, purpose}
	rec, ok := r.records[key]
	if !ok {
		rec = &models.OTP{ID: primitive.NewObjectID(), Email: email, Purpose: purpose, CreatedAt: time.Now()}
		r.records[key] = rec
	}
	rec.Code = code
	rec.ExpiresAt = expiresAt
	rec.Attempts = 0
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) FindByEmailAndPurpose(_ context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	rec, ok := r.records[otpKey{email, purpose}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) byID(id primitive.ObjectID) (otpKey, *models.OTP) {
	for k, rec := range r.records {
		if rec.ID == id {
			return k, rec
		}
	}
	return otpKey{}, nil
}

func (r *fakeOTPRepo) IncrementAttempts(_ context.Context, id primitive.ObjectID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, rec := r.byID(id); rec != nil && rec.Code == code {
		rec.Attempts++
	}
	return nil
}

func (r *fakeOTPRepo) DeleteIfCode(_ context.Context, id primitive.ObjectID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return false, err
	}
	k, rec := r.byID(id)
	if rec == nil || rec.Code != code {
		return false, nil
	}
	delete(r.records, k)
	return true, nil
}

func (r *fakeOTPRepo) get(email string, purpose models.OTPPurpose) *models.OTP {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[otpKey{email, purpose}]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

type sentEmail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to, subject, html})
	return nil
}

func (m *fakeMailer) last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentEmail{}
	}
	return m.sent[len(m.sent)-1]
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceCodes hands out the given codes in order, then repeats the last.
func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}
