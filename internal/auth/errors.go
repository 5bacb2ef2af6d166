package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound means no account exists for the submitted email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrRoleMismatch means the requested role differs from the stored one.
	ErrRoleMismatch = errors.New("account is registered with a different role")
	// ErrAccountLocked is the lockout sentinel; concrete failures carry a
	// LockedError with the remaining minutes.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is the issuance rate-limit sentinel; concrete failures
	// carry a RateLimitError.
	ErrRateLimited = errors.New("too many OTP requests")
	// ErrOTPExpired means no redeemable code exists for the account.
	ErrOTPExpired = errors.New("OTP expired or not issued")
	// ErrInvalidOTP is the wrong-code sentinel; concrete failures carry an
	// InvalidOTPError with the attempts remaining.
	ErrInvalidOTP = errors.New("invalid OTP")
	// ErrPasswordTooShort rejects passwords under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrEmailDelivery means the OTP email could not be dispatched. The
	// stored OTP state stays valid so a resend retries delivery.
	ErrEmailDelivery = errors.New("failed to send OTP email")
)

// LockedError reports a lockout with the minutes left until it lifts.
type LockedError struct {
	RemainingMinutes int
	Message          string // optional override, e.g. after the locking attempt
}

func (e *LockedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes)
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// RateLimitError reports issuance exhaustion with the wait until the window resets.
type RateLimitError struct {
	RemainingMinutes int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many OTP requests, wait %d minute(s)", e.RemainingMinutes)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// InvalidOTPError reports a wrong code and how many attempts remain before lockout.
type InvalidOTPError struct {
	AttemptsRemaining int
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("invalid OTP, %d attempt(s) remaining", e.AttemptsRemaining)
}

func (e *InvalidOTPError) Is(target error) bool { return target == ErrInvalidOTP }
