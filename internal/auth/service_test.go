package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

// fakeUserStore mirrors the conditional-update semantics of the SQL repo.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User // by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*model.User)}
}

func (f *fakeUserStore) get(email string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email]
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return *u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return *u, nil
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserStore) GetOrCreateByEmail(ctx context.Context, email, name string, role model.Role) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return *u, nil
	}
	now := time.Now()
	u := &model.User{ID: uuid.New(), Email: email, Name: name, Role: role, CreatedAt: now, UpdatedAt: now}
	f.users[email] = u
	return *u, nil
}

func (f *fakeUserStore) ApplyOTPIssue(ctx context.Context, id uuid.UUID, otpHashHex string, expiresAt time.Time, windowMinutes, maxSends int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byIDLocked(id)
	if u == nil {
		return 0, repo.ErrUpdateRejected
	}
	now := time.Now()
	if u.LockedUntil != nil && u.LockedUntil.After(now) {
		return 0, repo.ErrUpdateRejected
	}
	windowElapsed := u.OTPResetAt == nil || !u.OTPResetAt.After(now)
	if !windowElapsed && u.OTPSendCount >= maxSends {
		return 0, repo.ErrUpdateRejected
	}
	if windowElapsed {
		u.OTPSendCount = 1
		resetAt := now.Add(time.Duration(windowMinutes) * time.Minute)
		u.OTPResetAt = &resetAt
	} else {
		u.OTPSendCount++
	}
	u.OTPHash = &otpHashHex
	u.OTPExpiresAt = &expiresAt
	u.OTPLastSentAt = &now
	u.OTPAttempts = 0
	return u.OTPSendCount, nil
}

func (f *fakeUserStore) RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts, lockMinutes int) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byIDLocked(id)
	if u == nil {
		return 0, nil, repo.ErrNotFound
	}
	u.OTPAttempts++
	if u.OTPAttempts >= maxAttempts {
		until := time.Now().Add(time.Duration(lockMinutes) * time.Minute)
		u.LockedUntil = &until
	}
	return u.OTPAttempts, u.LockedUntil, nil
}

func (f *fakeUserStore) FinalizeVerification(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byIDLocked(id)
	if u == nil {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.IsVerified = true
	u.OTPHash = nil
	u.OTPExpiresAt = nil
	u.OTPAttempts = 0
	return nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserStore) byIDLocked(id uuid.UUID) *model.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// recordingMailer captures sends; fail makes every send error.
type recordingMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  bool
}

type sentMail struct {
	to, subject, body string
}

func (m *recordingMailer) Send(to, subject, htmlBody string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func (m *recordingMailer) lastCode(t *testing.T) string {
	t.Helper()
	match := codeRe.FindStringSubmatch(m.last().body)
	require.NotNil(t, match, "mail body should contain a 6-digit code")
	return match[1]
}

const testSalt = "test-otp-salt"

func newTestService(store *fakeUserStore, mailer *recordingMailer) *Service {
	jwtSvc := NewJWTService("test-secret-at-least-32-characters!!")
	return NewService(store, mailer, jwtSvc, testSalt, "")
}

func TestRequestOTP_createsAccountAndSendsOnce(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	err := svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice")
	require.NoError(t, err)

	u := store.get("alice@x.edu")
	require.NotNil(t, u, "account should be created")
	assert.Equal(t, model.RoleStudent, u.Role)
	assert.False(t, u.IsVerified)
	assert.Equal(t, 1, u.OTPSendCount)
	assert.Equal(t, 0, u.OTPAttempts)
	require.NotNil(t, u.OTPHash)
	require.NotNil(t, u.OTPExpiresAt)
	assert.WithinDuration(t, time.Now().Add(otpTTL), *u.OTPExpiresAt, time.Minute)

	require.Equal(t, 1, mailer.count(), "exactly one email per issuance")
	assert.Equal(t, "alice@x.edu", mailer.last().to)
	assert.Equal(t, otpMailSubject, mailer.last().subject)

	code := mailer.lastCode(t)
	assert.Equal(t, hashOTPHex("alice@x.edu", code, testSalt), *u.OTPHash)
}

func TestRequestOTP_roleMismatch(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	require.NoError(t, svc.RequestOTP(context.Background(), "prof@x.edu", model.RoleTeacher, "Prof"))
	before := *store.get("prof@x.edu")

	err := svc.RequestOTP(context.Background(), "prof@x.edu", model.RoleStudent, "Prof")
	require.ErrorIs(t, err, ErrRoleMismatch)

	after := *store.get("prof@x.edu")
	assert.Equal(t, before.OTPHash, after.OTPHash, "no state mutation on role mismatch")
	assert.Equal(t, before.OTPSendCount, after.OTPSendCount)
	assert.Equal(t, 1, mailer.count(), "no extra email on role mismatch")
}

func TestRequestOTP_rateLimitWithinWindow(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice"))
	}
	u := store.get("alice@x.edu")
	assert.Equal(t, 3, u.OTPSendCount)
	hashBefore := *u.OTPHash

	err := svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice")
	require.ErrorIs(t, err, ErrRateLimited)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.GreaterOrEqual(t, rle.RemainingMinutes, 1)
	assert.LessOrEqual(t, rle.RemainingMinutes, sendWindowMinutes)

	assert.Equal(t, hashBefore, *store.get("alice@x.edu").OTPHash, "rate-limited send must not rotate the code")
	assert.Equal(t, 3, mailer.count(), "rate-limited send must not email")
}

func TestRequestOTP_windowAnchoredToFirstSend(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	require.NoError(t, svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice"))
	firstReset := *store.get("alice@x.edu").OTPResetAt

	require.NoError(t, svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice"))
	assert.Equal(t, firstReset, *store.get("alice@x.edu").OTPResetAt,
		"window anchor must not roll forward on later sends")
}

func TestRequestOTP_windowElapsedResetsCount(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	require.NoError(t, svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice"))
	u := store.get("alice@x.edu")
	u.OTPSendCount = 3
	past := time.Now().Add(-time.Minute)
	u.OTPResetAt = &past

	err := svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, store.get("alice@x.edu").OTPSendCount, "elapsed window starts a fresh count")
}

func TestRequestOTP_lockedAccount(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	require.NoError(t, svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice"))
	u := store.get("alice@x.edu")
	until := time.Now().Add(7*time.Minute + 30*time.Second)
	u.LockedUntil = &until

	err := svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice")
	require.ErrorIs(t, err, ErrAccountLocked)

	var le *LockedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 8, le.RemainingMinutes, "remaining minutes rounds up")
	assert.Equal(t, 1, mailer.count())
}

func TestRequestOTP_emailDeliveryFailureKeepsState(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{fail: true}
	svc := newTestService(store, mailer)

	err := svc.RequestOTP(context.Background(), "alice@x.edu", model.RoleStudent, "Alice")
	require.ErrorIs(t, err, ErrEmailDelivery)

	u := store.get("alice@x.edu")
	require.NotNil(t, u.OTPHash, "stored OTP survives a failed send for resend")
	assert.Equal(t, 1, u.OTPSendCount)
}

func TestRequestOTP_bypassEmailSkipsDispatch(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	jwtSvc := NewJWTService("test-secret-at-least-32-characters!!")
	svc := NewService(store, mailer, jwtSvc, testSalt, "dev@x.edu")

	err := svc.RequestOTP(context.Background(), "dev@x.edu", model.RoleStudent, "Dev")
	require.NoError(t, err)

	assert.Equal(t, 0, mailer.count(), "bypass address must not email")
	u := store.get("dev@x.edu")
	require.NotNil(t, u.OTPHash)
	assert.Equal(t, hashOTPHex("dev@x.edu", bypassCode, testSalt), *u.OTPHash,
		"bypass stores the fixed code's hash")
	assert.Equal(t, 1, u.OTPSendCount, "bypass keeps the same state transitions")
}

func issueAndGetCode(t *testing.T, svc *Service, mailer *recordingMailer, email string, role model.Role) string {
	t.Helper()
	require.NoError(t, svc.RequestOTP(context.Background(), email, role, ""))
	return mailer.lastCode(t)
}

func TestVerifyOTP_accountNotFound(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &recordingMailer{})
	_, err := svc.VerifyOTP(context.Background(), "ghost@x.edu", "123456", "")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestVerifyOTP_expiredCode(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)
	past := time.Now().Add(-time.Second)
	store.get("alice@x.edu").OTPExpiresAt = &past

	_, err := svc.VerifyOTP(context.Background(), "alice@x.edu", "123456", "")
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestVerifyOTP_wrongCodeCountsAttempts(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := svc.VerifyOTP(context.Background(), "alice@x.edu", wrong, "")
	var ie *InvalidOTPError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.AttemptsRemaining)
	assert.Equal(t, 1, store.get("alice@x.edu").OTPAttempts)

	_, err = svc.VerifyOTP(context.Background(), "alice@x.edu", wrong, "")
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.AttemptsRemaining)
}

func TestVerifyOTP_thirdWrongAttemptLocks(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	store.get("alice@x.edu").OTPAttempts = 2

	_, err := svc.VerifyOTP(context.Background(), "alice@x.edu", wrong, "")
	require.ErrorIs(t, err, ErrAccountLocked)
	assert.EqualError(t, err, "invalid OTP, account locked")

	u := store.get("alice@x.edu")
	assert.Equal(t, 3, u.OTPAttempts)
	require.NotNil(t, u.LockedUntil)
	assert.True(t, u.LockedUntil.After(time.Now().Add(9*time.Minute)),
		"lockout should hold for ~10 minutes")

	// Even the correct code is refused while locked, without attempt counting.
	_, err = svc.VerifyOTP(context.Background(), "alice@x.edu", code, "")
	require.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 3, store.get("alice@x.edu").OTPAttempts, "locked branch must not consume attempts")
}

func TestVerifyOTP_needsPasswordIsIdempotent(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)

	for i := 0; i < 2; i++ {
		res, err := svc.VerifyOTP(context.Background(), "alice@x.edu", code, "")
		require.NoError(t, err)
		assert.True(t, res.NeedsPassword)
		assert.Empty(t, res.Token)
	}

	u := store.get("alice@x.edu")
	assert.Equal(t, 0, u.OTPAttempts, "matching verifications must not count attempts")
	assert.NotNil(t, u.OTPHash, "code stays redeemable for the password step")
	assert.Nil(t, u.LockedUntil)
}

func TestVerifyOTP_passwordTooShort(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)

	_, err := svc.VerifyOTP(context.Background(), "alice@x.edu", code, "short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
	assert.NotNil(t, store.get("alice@x.edu").OTPHash, "rejected password leaves the code in place")
}

func TestVerifyOTP_finalizesAccountAndMintsSession(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "prof@x.edu", model.RoleTeacher)

	res, err := svc.VerifyOTP(context.Background(), "prof@x.edu", code, "longenough")
	require.NoError(t, err)
	assert.False(t, res.NeedsPassword)
	assert.Equal(t, "/dashboard/teacher", res.Redirect)
	require.NotEmpty(t, res.Token)

	u := store.get("prof@x.edu")
	assert.True(t, u.IsVerified)
	assert.Nil(t, u.OTPHash)
	assert.Nil(t, u.OTPExpiresAt)
	assert.Equal(t, 0, u.OTPAttempts)
	require.NoError(t, bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("longenough")),
		"password must be stored as a bcrypt hash")

	claims, ok := svc.jwt.Decode(res.Token)
	require.True(t, ok)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleTeacher, claims.Role)
	assert.Equal(t, "prof@x.edu", claims.Email)
}

func TestVerifyOTP_attemptsResetOnReissue(t *testing.T) {
	store := newFakeUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	code := issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := svc.VerifyOTP(context.Background(), "alice@x.edu", wrong, "")
	require.ErrorIs(t, err, ErrInvalidOTP)
	require.Equal(t, 1, store.get("alice@x.edu").OTPAttempts)

	issueAndGetCode(t, svc, mailer, "alice@x.edu", model.RoleStudent)
	assert.Equal(t, 0, store.get("alice@x.edu").OTPAttempts, "fresh issuance resets attempts")
}

// Statically assert the fake satisfies the real interface.
var _ repo.UserRepo = (*fakeUserStore)(nil)
