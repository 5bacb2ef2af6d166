package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/server/internal/ai"
	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/repo"
)

// NoteHandler handles shared course notes with AI-generated summaries.
type NoteHandler struct {
	notes      repo.NoteRepo
	courses    repo.CourseRepo
	summarizer ai.Summarizer
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes repo.NoteRepo, courses repo.CourseRepo, summarizer ai.Summarizer) *NoteHandler {
	return &NoteHandler{notes: notes, courses: courses, summarizer: summarizer}
}

type createNoteRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required,min=1,max=50000"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteResponse(n model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID.String(),
		CourseID:  n.CourseID.String(),
		AuthorID:  n.AuthorID.String(),
		Title:     n.Title,
		Body:      n.Body,
		Summary:   n.Summary,
		CreatedAt: n.CreatedAt,
	}
}

// HandleCreate handles POST /courses/{courseID}/notes (course members).
// Summarization failure is soft: the note is saved without a summary.
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
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

	var req createNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.summarizer.Summarize(r.Context(), req.Body)
	if err != nil {
		log.Printf("note summary failed: %v", err)
		summary = ""
	}

	note, err := h.notes.Create(r.Context(), model.Note{
		CourseID: courseID,
		AuthorID: user.ID,
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		Summary:  summary,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save note")
		return
	}
	respondJSON(w, http.StatusCreated, toNoteResponse(note))
}

// HandleList handles GET /courses/{courseID}/notes (course members).
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

	notes, err := h.notes.ListByCourse(r.Context(), courseID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *NoteHandler) isMember(r *http.Request, course model.Course, user *model.User) bool {
	if course.OwnerID == user.ID {
		return true
	}
	enrolled, err := h.courses.IsEnrolled(r.Context(), course.ID, user.ID)
	return err == nil && enrolled
}
