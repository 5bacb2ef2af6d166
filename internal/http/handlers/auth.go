package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/server/internal/auth"
	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService   *auth.Service
	secureCookies bool
	ipLimiter     *middleware.RateLimiter
	verifyLimiter *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler. The per-account OTP rate limit
// lives in the store; these limiters only bound per-IP abuse.
func NewAuthHandler(authService *auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
		ipLimiter:     middleware.NewRateLimiter(10*time.Minute, 10),
		verifyLimiter: middleware.NewRateLimiter(10*time.Minute, 20),
	}
}

// requestOTPRequest is the request body for POST /auth/request_otp
type requestOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=student teacher admin"`
	Name  string `json:"name"`
}

// verifyOTPRequest is the request body for POST /auth/verify_otp
type verifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password"`
}

// verifyOTPResponse is the JSON response for verify_otp
type verifyOTPResponse struct {
	Success       bool          `json:"success"`
	NeedsPassword bool          `json:"needs_password,omitempty"`
	Redirect      string        `json:"redirect,omitempty"`
	User          *userResponse `json:"user,omitempty"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

func toUserResponse(u model.User) *userResponse {
	return &userResponse{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Role:     string(u.Role),
		Verified: u.IsVerified,
	}
}

// HandleRequestOTP handles POST /auth/request_otp
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if !h.ipLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	err := h.authService.RequestOTP(r.Context(), req.Email, model.Role(req.Role), strings.TrimSpace(req.Name))
	if err != nil {
		h.writeAuthError(w, req.Email, "request OTP failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "otp_sent"})
}

// HandleVerifyOTP handles POST /auth/verify_otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if !h.verifyLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Email, strings.TrimSpace(req.Code), req.Password)
	if err != nil {
		h.writeAuthError(w, req.Email, "verify OTP failed", err)
		return
	}

	if result.NeedsPassword {
		respondJSON(w, http.StatusOK, verifyOTPResponse{Success: true, NeedsPassword: true})
		return
	}

	h.setSessionCookie(w, result.Token)
	respondJSON(w, http.StatusOK, verifyOTPResponse{
		Success:  true,
		Redirect: result.Redirect,
		User:     toUserResponse(result.User),
	})
}

// HandleLogout handles POST /auth/logout. Sessions are not revocable
// server-side; logout clears the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps auth errors to status codes. Expected failures keep
// their actionable message; anything else becomes a generic retry message so
// the client does not imply user fault.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, email, action string, err error) {
	switch {
	case errors.Is(err, auth.ErrRoleMismatch):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrAccountLocked):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrRateLimited):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, auth.ErrAccountNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrOTPExpired), errors.Is(err, auth.ErrInvalidOTP):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailDelivery):
		logMaskedEmail(email, action, err)
		respondWithError(w, http.StatusBadGateway, "could not send email, try again later")
	default:
		logMaskedEmail(email, action, err)
		respondWithError(w, http.StatusInternalServerError, "something went wrong, try again later")
	}
}

// logMaskedEmail logs a message with a masked email address
func logMaskedEmail(email, action string, err error) {
	log.Printf("%s for %s: %v", action, maskEmail(email), err)
}

// maskEmail masks the local part of an address (e.g. al***@x.edu)
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		return "****"
	}
	return email[:2] + "***" + email[at:]
}
