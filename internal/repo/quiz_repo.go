package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/learnhub/server/internal/model"
	"github.com/lib/pq"
)

// ErrAlreadyAttempted means the student already took the quiz.
var ErrAlreadyAttempted = errors.New("quiz already attempted")

// QuizRepo defines the interface for quiz, question and attempt operations.
type QuizRepo interface {
	// Create inserts the quiz and its questions in one transaction.
	Create(ctx context.Context, q model.Quiz) (model.Quiz, error)
	// GetByID returns the quiz with questions ordered by position.
	GetByID(ctx context.Context, id uuid.UUID) (model.Quiz, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Quiz, error)
	CreateAttempt(ctx context.Context, a model.QuizAttempt) (model.QuizAttempt, error)
	GetAttempt(ctx context.Context, quizID, studentID uuid.UUID) (model.QuizAttempt, error)
}

type quizRepo struct {
	db *sql.DB
}

// NewQuizRepo creates a new QuizRepo instance
func NewQuizRepo(db *sql.DB) QuizRepo {
	return &quizRepo{db: db}
}

func (r *quizRepo) Create(ctx context.Context, q model.Quiz) (model.Quiz, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Quiz{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO quizzes (course_id, title) VALUES ($1, $2)
		RETURNING id, created_at
	`, q.CourseID, q.Title).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return model.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}

	for i := range q.Questions {
		qq := &q.Questions[i]
		qq.QuizID = q.ID
		qq.Position = i
		err = tx.QueryRowContext(ctx, `
			INSERT INTO quiz_questions (quiz_id, position, prompt, options, correct_index, points)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, qq.QuizID, qq.Position, qq.Prompt, pq.Array(qq.Options), qq.CorrectIndex, qq.Points).Scan(&qq.ID)
		if err != nil {
			return model.Quiz{}, fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Quiz{}, fmt.Errorf("commit: %w", err)
	}
	return q, nil
}

func (r *quizRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Quiz, error) {
	var q model.Quiz
	err := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, title, created_at FROM quizzes WHERE id = $1
	`, id).Scan(&q.ID, &q.CourseID, &q.Title, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Quiz{}, ErrNotFound
		}
		return model.Quiz{}, fmt.Errorf("query quiz: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quiz_id, position, prompt, options, correct_index, points
		FROM quiz_questions WHERE quiz_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return model.Quiz{}, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qq model.QuizQuestion
		if err := rows.Scan(&qq.ID, &qq.QuizID, &qq.Position, &qq.Prompt, pq.Array(&qq.Options), &qq.CorrectIndex, &qq.Points); err != nil {
			return model.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.Questions = append(q.Questions, qq)
	}
	return q, rows.Err()
}

func (r *quizRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Quiz, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, title, created_at FROM quizzes
		WHERE course_id = $1 ORDER BY created_at
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []model.Quiz
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Title, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *quizRepo) CreateAttempt(ctx context.Context, a model.QuizAttempt) (model.QuizAttempt, error) {
	answers := make(pq.Int64Array, len(a.Answers))
	for i, v := range a.Answers {
		answers[i] = int64(v)
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (quiz_id, student_id, answers, score, max_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, a.QuizID, a.StudentID, answers, a.Score, a.MaxScore).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return model.QuizAttempt{}, ErrAlreadyAttempted
		}
		return model.QuizAttempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return a, nil
}

func (r *quizRepo) GetAttempt(ctx context.Context, quizID, studentID uuid.UUID) (model.QuizAttempt, error) {
	var a model.QuizAttempt
	var answers pq.Int64Array
	err := r.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, student_id, answers, score, max_score, created_at
		FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2
	`, quizID, studentID).Scan(&a.ID, &a.QuizID, &a.StudentID, &answers, &a.Score, &a.MaxScore, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.QuizAttempt{}, ErrNotFound
		}
		return model.QuizAttempt{}, fmt.Errorf("query attempt: %w", err)
	}
	a.Answers = make([]int, len(answers))
	for i, v := range answers {
		a.Answers[i] = int(v)
	}
	return a, nil
}
