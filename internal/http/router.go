package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/learnhub/server/internal/auth"
	"github.com/learnhub/server/internal/http/handlers"
	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

// Handlers bundles all route handlers for router construction.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Course     *handlers.CourseHandler
	Assignment *handlers.AssignmentHandler
	Quiz       *handlers.QuizHandler
	Note       *handlers.NoteHandler
	Analytics  *handlers.AnalyticsHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, jwtService *auth.JWTService, userRepo repo.UserRepo) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/request_otp", h.Auth.HandleRequestOTP)
		r.Post("/verify_otp", h.Auth.HandleVerifyOTP)
		r.Post("/logout", h.Auth.HandleLogout)
	})

	// Session-gated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(jwtService, userRepo))

		r.Get("/me", h.Auth.HandleMe)

		r.Route("/courses", func(r chi.Router) {
			r.Post("/", h.Course.HandleCreate)
			r.Get("/", h.Course.HandleList)
			r.Post("/enroll", h.Course.HandleEnroll)
			r.Get("/{courseID}", h.Course.HandleGet)

			r.Post("/{courseID}/assignments", h.Assignment.HandleCreate)
			r.Get("/{courseID}/assignments", h.Assignment.HandleList)

			r.Post("/{courseID}/quizzes", h.Quiz.HandleCreate)
			r.Get("/{courseID}/quizzes", h.Quiz.HandleList)

			r.Post("/{courseID}/notes", h.Note.HandleCreate)
			r.Get("/{courseID}/notes", h.Note.HandleList)
		})

		r.Post("/assignments/{assignmentID}/submissions", h.Assignment.HandleSubmit)
		r.Get("/assignments/{assignmentID}/submissions", h.Assignment.HandleListSubmissions)
		r.Post("/submissions/{submissionID}/grade", h.Assignment.HandleGrade)
		r.Get("/files/{name}", h.Assignment.HandleDownload)

		r.Get("/quizzes/{quizID}", h.Quiz.HandleGet)
		r.Post("/quizzes/{quizID}/attempts", h.Quiz.HandleAttempt)

		r.Get("/analytics/dashboard", h.Analytics.HandleDashboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/admin/users", h.Analytics.HandleListUsers)
		})
	})

	return r
}
