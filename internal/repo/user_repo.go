package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/server/internal/model"
)

var (
	// ErrNotFound maps sql.ErrNoRows for point lookups.
	ErrNotFound = errors.New("not found")
	// ErrUpdateRejected means a conditional update matched no row: its
	// guard (lock / rate-limit) vetoed the write. Callers re-read the row
	// to classify which guard fired.
	ErrUpdateRejected = errors.New("conditional update rejected")
)

// UserRepo defines the interface for user repository operations. OTP counter
// updates are single conditional statements so concurrent requests cannot
// under-count sends or failed attempts.
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetOrCreateByEmail(ctx context.Context, email, name string, role model.Role) (model.User, error)
	// ApplyOTPIssue stores a fresh code hash and advances the send counter
	// atomically. The rate-limit window anchor is only re-set once it has
	// elapsed. Rejected (no row updated) when the account is locked or the
	// effective send count has reached maxSends.
	ApplyOTPIssue(ctx context.Context, id uuid.UUID, otpHashHex string, expiresAt time.Time, windowMinutes, maxSends int) (sendCount int, err error)
	// RecordFailedAttempt increments the attempt counter and sets the
	// lockout once it reaches maxAttempts, in one statement.
	RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts, lockMinutes int) (attempts int, lockedUntil *time.Time, err error)
	// FinalizeVerification stores the password hash, clears OTP state and
	// marks the account verified.
	FinalizeVerification(ctx context.Context, id uuid.UUID, passwordHash []byte) error
	List(ctx context.Context) ([]model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, role, password_hash, is_verified,
	otp_hash, otp_expires_at, otp_last_sent_at, otp_send_count, otp_reset_at,
	otp_attempts, locked_until, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsVerified,
		&u.OTPHash, &u.OTPExpiresAt, &u.OTPLastSentAt, &u.OTPSendCount, &u.OTPResetAt,
		&u.OTPAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetOrCreateByEmail retrieves a user by email or creates an unverified one.
// An existing row is never mutated: the stored role wins over the requested
// one and the caller enforces the mismatch.
func (r *userRepo) GetOrCreateByEmail(ctx context.Context, email, name string, role model.Role) (model.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, email, name, role)
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

func (r *userRepo) ApplyOTPIssue(ctx context.Context, id uuid.UUID, otpHashHex string, expiresAt time.Time, windowMinutes, maxSends int) (int, error) {
	var sendCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			otp_hash = $2,
			otp_expires_at = $3,
			otp_last_sent_at = now(),
			otp_attempts = 0,
			otp_send_count = CASE
				WHEN otp_reset_at IS NULL OR otp_reset_at <= now() THEN 1
				ELSE otp_send_count + 1
			END,
			otp_reset_at = CASE
				WHEN otp_reset_at IS NULL OR otp_reset_at <= now() THEN now() + make_interval(mins => $4)
				ELSE otp_reset_at
			END,
			updated_at = now()
		WHERE id = $1
		  AND (locked_until IS NULL OR locked_until <= now())
		  AND (otp_reset_at IS NULL OR otp_reset_at <= now() OR otp_send_count < $5)
		RETURNING otp_send_count
	`, id, otpHashHex, expiresAt, windowMinutes, maxSends).Scan(&sendCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUpdateRejected
		}
		return 0, fmt.Errorf("apply OTP issue: %w", err)
	}
	return sendCount, nil
}

func (r *userRepo) RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts, lockMinutes int) (int, *time.Time, error) {
	var attempts int
	var lockedUntil *time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			otp_attempts = otp_attempts + 1,
			locked_until = CASE
				WHEN otp_attempts + 1 >= $2 THEN now() + make_interval(mins => $3)
				ELSE locked_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING otp_attempts, locked_until
	`, id, maxAttempts, lockMinutes).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("record failed attempt: %w", err)
	}
	return attempts, lockedUntil, nil
}

func (r *userRepo) FinalizeVerification(ctx context.Context, id uuid.UUID, passwordHash []byte) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			password_hash = $2,
			is_verified = TRUE,
			otp_hash = NULL,
			otp_expires_at = NULL,
			otp_attempts = 0,
			updated_at = now()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("finalize verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsVerified,
			&u.OTPHash, &u.OTPExpiresAt, &u.OTPLastSentAt, &u.OTPSendCount, &u.OTPResetAt,
			&u.OTPAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
