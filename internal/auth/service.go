package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/server/internal/mail"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

const (
	otpTTL            = 5 * time.Minute
	maxSendsPerWindow = 3
	sendWindowMinutes = 10
	maxAttempts       = 3
	lockoutMinutes    = 10
	minPasswordLen    = 6

	// bypassCode is the fixed code stored for the configured developer
	// bypass address. Real dispatch is skipped for that address only.
	bypassCode = "123456"

	otpMailSubject = "Your LearnHub verification code"
)

// VerifyResult is the discriminated outcome of a successful verification.
type VerifyResult struct {
	// NeedsPassword signals the two-step flow: the code matched but no
	// password was supplied; the code stays redeemable for the final step.
	NeedsPassword bool
	Token         string
	User          model.User
	Redirect      string
}

// Service implements OTP issuance and verification on top of the user store
// and the mailer.
type Service struct {
	users       repo.UserRepo
	mailer      mail.Mailer
	jwt         *JWTService
	salt        string
	bypassEmail string

	now func() time.Time
}

// NewService creates a new auth service. bypassEmail may be empty to disable
// the developer bypass.
func NewService(users repo.UserRepo, mailer mail.Mailer, jwtSvc *JWTService, salt, bypassEmail string) *Service {
	return &Service{
		users:       users,
		mailer:      mailer,
		jwt:         jwtSvc,
		salt:        salt,
		bypassEmail: bypassEmail,
		now:         time.Now,
	}
}

// RequestOTP issues a fresh one-time code for the account, creating the
// account on first contact. Enforces the role boundary, the lockout and the
// 3-sends-per-10-minutes window, then persists the hashed code and emails
// the plaintext one.
func (s *Service) RequestOTP(ctx context.Context, email string, role model.Role, name string) error {
	now := s.now()

	usr, err := s.users.GetOrCreateByEmail(ctx, email, name, role)
	if err != nil {
		return fmt.Errorf("get or create account: %w", err)
	}

	// Hard authorization boundary: the stored role wins, always.
	if usr.Role != role {
		return ErrRoleMismatch
	}

	if usr.Locked(now) {
		return &LockedError{RemainingMinutes: ceilMinutes(usr.LockedUntil.Sub(now))}
	}

	if usr.EffectiveSendCount(now) >= maxSendsPerWindow {
		return &RateLimitError{RemainingMinutes: ceilMinutes(usr.OTPResetAt.Sub(now))}
	}

	code, err := generateOTPCode()
	if err != nil {
		return err
	}
	bypass := s.bypassEmail != "" && email == s.bypassEmail
	if bypass {
		code = bypassCode
	}

	hashHex := hashOTPHex(email, code, s.salt)
	expiresAt := now.Add(otpTTL)

	_, err = s.users.ApplyOTPIssue(ctx, usr.ID, hashHex, expiresAt, sendWindowMinutes, maxSendsPerWindow)
	if err != nil {
		if errors.Is(err, repo.ErrUpdateRejected) {
			// A concurrent request won the counter; re-read to report
			// which guard vetoed the write.
			return s.classifyRejection(ctx, email)
		}
		return fmt.Errorf("store OTP: %w", err)
	}

	if bypass {
		return nil
	}

	if err := s.mailer.Send(email, otpMailSubject, otpMailBody(code)); err != nil {
		// The stored code stays valid; a resend retries delivery.
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

func (s *Service) classifyRejection(ctx context.Context, email string) error {
	now := s.now()
	usr, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("re-read account: %w", err)
	}
	if usr.Locked(now) {
		return &LockedError{RemainingMinutes: ceilMinutes(usr.LockedUntil.Sub(now))}
	}
	remaining := lockoutMinutes
	if usr.OTPResetAt != nil && usr.OTPResetAt.After(now) {
		remaining = ceilMinutes(usr.OTPResetAt.Sub(now))
	}
	return &RateLimitError{RemainingMinutes: remaining}
}

// VerifyOTP validates a submitted code. With no password it answers the
// two-step handshake (NeedsPassword, code left redeemable); with a password
// it finalizes the account and mints a session token.
func (s *Service) VerifyOTP(ctx context.Context, email, code, password string) (VerifyResult, error) {
	now := s.now()

	usr, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VerifyResult{}, ErrAccountNotFound
		}
		return VerifyResult{}, fmt.Errorf("lookup account: %w", err)
	}

	// A locked account does not consume further attempts.
	if usr.Locked(now) {
		return VerifyResult{}, &LockedError{RemainingMinutes: ceilMinutes(usr.LockedUntil.Sub(now))}
	}

	if usr.OTPHash == nil || usr.OTPExpiresAt == nil || !usr.OTPExpiresAt.After(now) {
		return VerifyResult{}, ErrOTPExpired
	}

	if !otpHashMatches(hashOTPHex(email, code, s.salt), *usr.OTPHash) {
		attempts, _, err := s.users.RecordFailedAttempt(ctx, usr.ID, maxAttempts, lockoutMinutes)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("record failed attempt: %w", err)
		}
		if attempts >= maxAttempts {
			return VerifyResult{}, &LockedError{
				RemainingMinutes: lockoutMinutes,
				Message:          "invalid OTP, account locked",
			}
		}
		return VerifyResult{}, &InvalidOTPError{AttemptsRemaining: maxAttempts - attempts}
	}

	if password == "" {
		return VerifyResult{NeedsPassword: true, User: usr}, nil
	}

	if len(password) < minPasswordLen {
		return VerifyResult{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.FinalizeVerification(ctx, usr.ID, hash); err != nil {
		return VerifyResult{}, fmt.Errorf("finalize verification: %w", err)
	}

	usr.IsVerified = true
	usr.PasswordHash = hash
	usr.OTPHash = nil
	usr.OTPExpiresAt = nil
	usr.OTPAttempts = 0

	token, err := s.jwt.Sign(usr)
	if err != nil {
		return VerifyResult{}, err
	}

	return VerifyResult{
		Token:    token,
		User:     usr,
		Redirect: redirectFor(usr.Role),
	}, nil
}

func redirectFor(role model.Role) string {
	switch role {
	case model.RoleTeacher:
		return "/dashboard/teacher"
	case model.RoleAdmin:
		return "/dashboard/admin"
	default:
		return "/dashboard/student"
	}
}

func otpMailBody(code string) string {
	return fmt.Sprintf(
		`<p>Your LearnHub verification code is:</p><h2>%s</h2><p>It expires in 5 minutes. If you did not request it, ignore this email.</p>`,
		code,
	)
}

// ceilMinutes rounds a duration up to whole minutes, minimum 1 for any
// positive remainder.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
