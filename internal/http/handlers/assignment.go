package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
	"github.com/learnhub/server/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// AssignmentHandler handles assignment, submission and upload endpoints.
type AssignmentHandler struct {
	assignments repo.AssignmentRepo
	courses     repo.CourseRepo
	files       *storage.LocalStore
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignments repo.AssignmentRepo, courses repo.CourseRepo, files *storage.LocalStore) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, courses: courses, files: files}
}

type createAssignmentRequest struct {
	Title        string    `json:"title" validate:"required,min=1,max=200"`
	Instructions string    `json:"instructions" validate:"max=10000"`
	DueAt        time.Time `json:"due_at" validate:"required"`
	MaxPoints    int       `json:"max_points" validate:"omitempty,min=1,max=1000"`
}

type gradeRequest struct {
	Grade    int    `json:"grade" validate:"min=0"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

type assignmentResponse struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	DueAt        time.Time `json:"due_at"`
	MaxPoints    int       `json:"max_points"`
}

type submissionResponse struct {
	ID          string     `json:"id"`
	Assignment  string     `json:"assignment_id"`
	StudentID   string     `json:"student_id"`
	Body        string     `json:"body"`
	FileName    string     `json:"file_name,omitempty"`
	Grade       *int       `json:"grade,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
}

func toAssignmentResponse(a model.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:           a.ID.String(),
		CourseID:     a.CourseID.String(),
		Title:        a.Title,
		Instructions: a.Instructions,
		DueAt:        a.DueAt,
		MaxPoints:    a.MaxPoints,
	}
}

func toSubmissionResponse(s model.Submission) submissionResponse {
	return submissionResponse{
		ID:          s.ID.String(),
		Assignment:  s.AssignmentID.String(),
		StudentID:   s.StudentID.String(),
		Body:        s.Body,
		FileName:    s.FileName,
		Grade:       s.Grade,
		Feedback:    s.Feedback,
		SubmittedAt: s.SubmittedAt,
		GradedAt:    s.GradedAt,
	}
}

// HandleCreate handles POST /courses/{courseID}/assignments (course owner only).
func (h *AssignmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "courseID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	course, err := h.courses.GetByID(r.Context(), courseID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "course not found")
		return
	}
	if course.OwnerID != user.ID {
		respondWithError(w, http.StatusForbidden, "only the course owner can create assignments")
		return
	}

	var req createAssignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MaxPoints == 0 {
		req.MaxPoints = 100
	}

	assignment, err := h.assignments.Create(r.Context(), model.Assignment{
		CourseID:     courseID,
		Title:        strings.TrimSpace(req.Title),
		Instructions: req.Instructions,
		DueAt:        req.DueAt,
		MaxPoints:    req.MaxPoints,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create assignment")
		return
	}
	respondJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

// HandleList handles GET /courses/{courseID}/assignments (course members).
func (h *AssignmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, r, "courseID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	course, err := h.courses.GetByID(r.Context(), courseID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "course not found")
		return
	}
	if !h.isMember(r, course, user) {
		respondWithError(w, http.StatusForbidden, "not a member of this course")
		return
	}

	assignments, err := h.assignments.ListByCourse(r.Context(), courseID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleSubmit handles POST /assignments/{assignmentID}/submissions.
// Multipart form: "body" text field plus an optional "file" part saved to
// local disk.
func (h *AssignmentHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	assignmentID, ok := uuidParam(w, r, "assignmentID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	if user.Role != model.RoleStudent {
		respondWithError(w, http.StatusForbidden, "only students can submit")
		return
	}

	assignment, err := h.assignments.GetByID(r.Context(), assignmentID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "assignment not found")
		return
	}

	course, err := h.courses.GetByID(r.Context(), assignment.CourseID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if !h.isMember(r, course, user) {
		respondWithError(w, http.StatusForbidden, "not enrolled in this course")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	body := strings.TrimSpace(r.FormValue("body"))

	var storedName string
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		storedName, err = h.files.Save(header.Filename, file)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		// text-only submission
	default:
		respondWithError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	if body == "" && storedName == "" {
		respondWithError(w, http.StatusBadRequest, "submission needs text or a file")
		return
	}

	submission, err := h.assignments.CreateSubmission(r.Context(), model.Submission{
		AssignmentID: assignmentID,
		StudentID:    user.ID,
		Body:         body,
		FileName:     storedName,
	})
	if err != nil {
		if errors.Is(err, repo.ErrAlreadySubmitted) {
			respondWithError(w, http.StatusConflict, "already submitted")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to save submission")
		return
	}
	respondJSON(w, http.StatusCreated, toSubmissionResponse(submission))
}

// HandleListSubmissions handles GET /assignments/{assignmentID}/submissions
// (course owner only).
func (h *AssignmentHandler) HandleListSubmissions(w http.ResponseWriter, r *http.Request) {
	assignmentID, ok := uuidParam(w, r, "assignmentID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	assignment, err := h.assignments.GetByID(r.Context(), assignmentID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "assignment not found")
		return
	}
	course, err := h.courses.GetByID(r.Context(), assignment.CourseID)
	if err != nil || course.OwnerID != user.ID {
		respondWithError(w, http.StatusForbidden, "only the course owner can view submissions")
		return
	}

	submissions, err := h.assignments.ListSubmissions(r.Context(), assignmentID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	out := make([]submissionResponse, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, toSubmissionResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGrade handles POST /submissions/{submissionID}/grade (course owner only).
func (h *AssignmentHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := uuidParam(w, r, "submissionID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	submission, err := h.assignments.GetSubmission(r.Context(), submissionID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "submission not found")
		return
	}
	assignment, err := h.assignments.GetByID(r.Context(), submission.AssignmentID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load assignment")
		return
	}
	course, err := h.courses.GetByID(r.Context(), assignment.CourseID)
	if err != nil || course.OwnerID != user.ID {
		respondWithError(w, http.StatusForbidden, "only the course owner can grade")
		return
	}

	var req gradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Grade > assignment.MaxPoints {
		respondWithError(w, http.StatusBadRequest, "grade exceeds max points")
		return
	}

	if err := h.assignments.Grade(r.Context(), submissionID, req.Grade, req.Feedback); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save grade")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "graded"})
}

// HandleDownload handles GET /files/{name} for stored uploads. Only the
// submitting student and the course owner may fetch a file.
func (h *AssignmentHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	user, _ := middleware.GetUser(r.Context())

	submission, err := h.assignments.GetSubmissionByFileName(r.Context(), name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "file not found")
		return
	}
	if submission.StudentID != user.ID {
		assignment, err := h.assignments.GetByID(r.Context(), submission.AssignmentID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to load assignment")
			return
		}
		course, err := h.courses.GetByID(r.Context(), assignment.CourseID)
		if err != nil || course.OwnerID != user.ID {
			respondWithError(w, http.StatusForbidden, "no access to this file")
			return
		}
	}

	f, err := h.files.Open(name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, f)
}

func (h *AssignmentHandler) isMember(r *http.Request, course model.Course, user *model.User) bool {
	if course.OwnerID == user.ID {
		return true
	}
	enrolled, err := h.courses.IsEnrolled(r.Context(), course.ID, user.ID)
	return err == nil && enrolled
}
