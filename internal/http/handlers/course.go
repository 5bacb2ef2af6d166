package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

// CourseHandler handles course and enrollment endpoints.
type CourseHandler struct {
	courses repo.CourseRepo
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses repo.CourseRepo) *CourseHandler {
	return &CourseHandler{courses: courses}
}

type createCourseRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Code        string `json:"code" validate:"required,min=3,max=20"`
	Description string `json:"description" validate:"max=2000"`
}

type enrollRequest struct {
	Code string `json:"code" validate:"required"`
}

type courseResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCourseResponse(c model.Course) courseResponse {
	return courseResponse{
		ID:          c.ID.String(),
		Title:       c.Title,
		Code:        c.Code,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

// HandleCreate handles POST /courses (teachers only).
func (h *CourseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if user.Role != model.RoleTeacher {
		respondWithError(w, http.StatusForbidden, "only teachers can create courses")
		return
	}

	var req createCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := h.courses.Create(r.Context(), model.Course{
		OwnerID:     user.ID,
		Title:       strings.TrimSpace(req.Title),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create course")
		return
	}
	respondJSON(w, http.StatusCreated, toCourseResponse(course))
}

// HandleList handles GET /courses. Teachers see courses they own, students
// the ones they enrolled in.
func (h *CourseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var (
		courses []model.Course
		err     error
	)
	if user.Role == model.RoleTeacher {
		courses, err = h.courses.ListByOwner(r.Context(), user.ID)
	} else {
		courses, err = h.courses.ListByStudent(r.Context(), user.ID)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, toCourseResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /courses/{courseID}.
func (h *CourseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "courseID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	course, err := h.courses.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "course not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load course")
		return
	}

	if !h.canAccess(r, course, user) {
		respondWithError(w, http.StatusForbidden, "not a member of this course")
		return
	}
	respondJSON(w, http.StatusOK, toCourseResponse(course))
}

// HandleEnroll handles POST /courses/enroll (students join by course code).
func (h *CourseHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if user.Role != model.RoleStudent {
		respondWithError(w, http.StatusForbidden, "only students can enroll")
		return
	}

	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := h.courses.GetByCode(r.Context(), strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "course not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load course")
		return
	}

	if err := h.courses.Enroll(r.Context(), course.ID, user.ID); err != nil {
		if errors.Is(err, repo.ErrAlreadyEnrolled) {
			respondWithError(w, http.StatusConflict, "already enrolled")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to enroll")
		return
	}
	respondJSON(w, http.StatusCreated, toCourseResponse(course))
}

// canAccess reports whether the user owns or is enrolled in the course.
func (h *CourseHandler) canAccess(r *http.Request, course model.Course, user *model.User) bool {
	if user.Role == model.RoleAdmin || course.OwnerID == user.ID {
		return true
	}
	enrolled, err := h.courses.IsEnrolled(r.Context(), course.ID, user.ID)
	return err == nil && enrolled
}
