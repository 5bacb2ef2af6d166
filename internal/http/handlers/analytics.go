package handlers

import (
	"net/http"

	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

// AnalyticsHandler serves role-scoped dashboard aggregates.
type AnalyticsHandler struct {
	analytics repo.AnalyticsRepo
	users     repo.UserRepo
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics repo.AnalyticsRepo, users repo.UserRepo) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, users: users}
}

// HandleDashboard handles GET /analytics/dashboard. The shape depends on the
// caller's role.
func (h *AnalyticsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	switch user.Role {
	case model.RoleTeacher:
		dash, err := h.analytics.TeacherDashboard(r.Context(), user.ID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to load dashboard")
			return
		}
		respondJSON(w, http.StatusOK, dash)
	case model.RoleStudent:
		dash, err := h.analytics.StudentDashboard(r.Context(), user.ID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to load dashboard")
			return
		}
		respondJSON(w, http.StatusOK, dash)
	default:
		respondWithError(w, http.StatusForbidden, "no dashboard for this role")
	}
}

// HandleListUsers handles GET /admin/users (admin only via RequireRole).
func (h *AnalyticsHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]*userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}
