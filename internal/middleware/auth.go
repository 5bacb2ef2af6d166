package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/learnhub/server/internal/auth"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

type contextKey string

const (
	userKey   contextKey = "user"
	userIDKey contextKey = "user_id"
)

// SessionMiddleware reads the session cookie, decodes it, loads the user and
// attaches it to the context. A missing cookie and an invalid token are
// treated identically: no session, 401.
func SessionMiddleware(jwtService *auth.JWTService, userRepo repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				respondWithError(w, http.StatusUnauthorized, "login required")
				return
			}

			claims, ok := jwtService.Decode(cookie.Value)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "login required")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "login required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
		})
	}
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, userIDKey, u.ID)
}

// RequireRole gates a route to one role. Must run after SessionMiddleware.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok || user.Role != role {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the user attached to the request context (set by SessionMiddleware)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
