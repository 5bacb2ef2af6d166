package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/server/internal/middleware"
	"github.com/learnhub/server/internal/model"
	"github.com/learnhub/server/internal/quiz"
	"github.com/learnhub/server/internal/repo"
)

// QuizHandler handles quiz creation, listing and attempts.
type QuizHandler struct {
	quizzes repo.QuizRepo
	courses repo.CourseRepo
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizzes repo.QuizRepo, courses repo.CourseRepo) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, courses: courses}
}

type createQuizRequest struct {
	Title     string                      `json:"title" validate:"required,min=1,max=200"`
	Questions []createQuizQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

type createQuizQuestionRequest struct {
	Prompt       string   `json:"prompt" validate:"required,min=1"`
	Options      []string `json:"options" validate:"required,min=2,max=10,dive,required"`
	CorrectIndex int      `json:"correct_index" validate:"min=0"`
	Points       int      `json:"points" validate:"min=1,max=100"`
}

type attemptRequest struct {
	Answers []int `json:"answers" validate:"required"`
}

type quizResponse struct {
	ID        string             `json:"id"`
	CourseID  string             `json:"course_id"`
	Title     string             `json:"title"`
	CreatedAt time.Time          `json:"created_at"`
	Questions []questionResponse `json:"questions,omitempty"`
}

// questionResponse never exposes the correct index.
type questionResponse struct {
	Position int      `json:"position"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Points   int      `json:"points"`
}

type attemptResponse struct {
	QuizID   string `json:"quiz_id"`
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
	Answers  []int  `json:"answers"`
}

func toQuizResponse(q model.Quiz, withQuestions bool) quizResponse {
	out := quizResponse{
		ID:        q.ID.String(),
		CourseID:  q.CourseID.String(),
		Title:     q.Title,
		CreatedAt: q.CreatedAt,
	}
	if withQuestions {
		for _, qq := range q.Questions {
			out.Questions = append(out.Questions, questionResponse{
				Position: qq.Position,
				Prompt:   qq.Prompt,
				Options:  qq.Options,
				Points:   qq.Points,
			})
		}
	}
	return out
}

// HandleCreate handles POST /courses/{courseID}/quizzes (course owner only).
func (h *QuizHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
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
		respondWithError(w, http.StatusForbidden, "only the course owner can create quizzes")
		return
	}

	var req createQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q := model.Quiz{CourseID: courseID, Title: strings.TrimSpace(req.Title)}
	for _, rq := range req.Questions {
		if rq.CorrectIndex >= len(rq.Options) {
			respondWithError(w, http.StatusBadRequest, "correct_index out of range")
			return
		}
		q.Questions = append(q.Questions, model.QuizQuestion{
			Prompt:       strings.TrimSpace(rq.Prompt),
			Options:      rq.Options,
			CorrectIndex: rq.CorrectIndex,
			Points:       rq.Points,
		})
	}

	created, err := h.quizzes.Create(r.Context(), q)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create quiz")
		return
	}
	respondJSON(w, http.StatusCreated, toQuizResponse(created, true))
}

// HandleList handles GET /courses/{courseID}/quizzes (course members).
func (h *QuizHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

	quizzes, err := h.quizzes.ListByCourse(r.Context(), courseID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}
	out := make([]quizResponse, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, toQuizResponse(q, false))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /quizzes/{quizID} (course members; questions included,
// correct answers withheld).
func (h *QuizHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	quizID, ok := uuidParam(w, r, "quizID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	q, err := h.quizzes.GetByID(r.Context(), quizID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "quiz not found")
		return
	}
	course, err := h.courses.GetByID(r.Context(), q.CourseID)
	if err != nil || !h.isMember(r, course, user) {
		respondWithError(w, http.StatusForbidden, "not a member of this course")
		return
	}
	respondJSON(w, http.StatusOK, toQuizResponse(q, true))
}

// HandleAttempt handles POST /quizzes/{quizID}/attempts. Answers are scored
// server-side; one attempt per student.
func (h *QuizHandler) HandleAttempt(w http.ResponseWriter, r *http.Request) {
	quizID, ok := uuidParam(w, r, "quizID")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	if user.Role != model.RoleStudent {
		respondWithError(w, http.StatusForbidden, "only students can take quizzes")
		return
	}

	q, err := h.quizzes.GetByID(r.Context(), quizID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "quiz not found")
		return
	}
	course, err := h.courses.GetByID(r.Context(), q.CourseID)
	if err != nil || !h.isMember(r, course, user) {
		respondWithError(w, http.StatusForbidden, "not enrolled in this course")
		return
	}

	var req attemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answers := quiz.Normalize(q.Questions, req.Answers)
	score, maxScore := quiz.Score(q.Questions, answers)

	attempt, err := h.quizzes.CreateAttempt(r.Context(), model.QuizAttempt{
		QuizID:    quizID,
		StudentID: user.ID,
		Answers:   answers,
		Score:     score,
		MaxScore:  maxScore,
	})
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyAttempted) {
			respondWithError(w, http.StatusConflict, "quiz already attempted")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to save attempt")
		return
	}

	respondJSON(w, http.StatusCreated, attemptResponse{
		QuizID:   attempt.QuizID.String(),
		Score:    attempt.Score,
		MaxScore: attempt.MaxScore,
		Answers:  attempt.Answers,
	})
}

func (h *QuizHandler) isMember(r *http.Request, course model.Course, user *model.User) bool {
	if course.OwnerID == user.ID {
		return true
	}
	enrolled, err := h.courses.IsEnrolled(r.Context(), course.ID, user.ID)
	return err == nil && enrolled
}
