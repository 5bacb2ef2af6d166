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

// ErrAlreadySubmitted means the student already submitted for the assignment.
var ErrAlreadySubmitted = errors.New("already submitted")

// AssignmentRepo defines the interface for assignment and submission operations.
type AssignmentRepo interface {
	Create(ctx context.Context, a model.Assignment) (model.Assignment, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Assignment, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Assignment, error)
	CreateSubmission(ctx context.Context, s model.Submission) (model.Submission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (model.Submission, error)
	// GetSubmissionByFileName resolves a stored upload name back to its
	// submission so download access can be checked.
	GetSubmissionByFileName(ctx context.Context, fileName string) (model.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID uuid.UUID) ([]model.Submission, error)
	Grade(ctx context.Context, submissionID uuid.UUID, grade int, feedback string) error
}

type assignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo creates a new AssignmentRepo instance
func NewAssignmentRepo(db *sql.DB) AssignmentRepo {
	return &assignmentRepo{db: db}
}

const assignmentColumns = `id, course_id, title, instructions, due_at, max_points, created_at`
const submissionColumns = `id, assignment_id, student_id, body, file_name, grade, feedback, submitted_at, graded_at`

func (r *assignmentRepo) Create(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO assignments (course_id, title, instructions, due_at, max_points)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+assignmentColumns,
		a.CourseID, a.Title, a.Instructions, a.DueAt, a.MaxPoints,
	).Scan(&a.ID, &a.CourseID, &a.Title, &a.Instructions, &a.DueAt, &a.MaxPoints, &a.CreatedAt)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Assignment, error) {
	var a model.Assignment
	err := r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.CourseID, &a.Title, &a.Instructions, &a.DueAt, &a.MaxPoints, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, ErrNotFound
		}
		return model.Assignment{}, fmt.Errorf("query assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE course_id = $1 ORDER BY due_at`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.Instructions, &a.DueAt, &a.MaxPoints, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *assignmentRepo) CreateSubmission(ctx context.Context, s model.Submission) (model.Submission, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO submissions (assignment_id, student_id, body, file_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+submissionColumns,
		s.AssignmentID, s.StudentID, s.Body, s.FileName,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Body, &s.FileName, &s.Grade, &s.Feedback, &s.SubmittedAt, &s.GradedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return model.Submission{}, ErrAlreadySubmitted
		}
		return model.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	return s, nil
}

func (r *assignmentRepo) GetSubmission(ctx context.Context, id uuid.UUID) (model.Submission, error) {
	var s model.Submission
	err := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Body, &s.FileName, &s.Grade, &s.Feedback, &s.SubmittedAt, &s.GradedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Submission{}, ErrNotFound
		}
		return model.Submission{}, fmt.Errorf("query submission: %w", err)
	}
	return s, nil
}

func (r *assignmentRepo) GetSubmissionByFileName(ctx context.Context, fileName string) (model.Submission, error) {
	var s model.Submission
	err := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE file_name = $1`, fileName,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Body, &s.FileName, &s.Grade, &s.Feedback, &s.SubmittedAt, &s.GradedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Submission{}, ErrNotFound
		}
		return model.Submission{}, fmt.Errorf("query submission by file: %w", err)
	}
	return s, nil
}

func (r *assignmentRepo) ListSubmissions(ctx context.Context, assignmentID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Body, &s.FileName, &s.Grade, &s.Feedback, &s.SubmittedAt, &s.GradedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *assignmentRepo) Grade(ctx context.Context, submissionID uuid.UUID, grade int, feedback string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET grade = $2, feedback = $3, graded_at = now() WHERE id = $1
	`, submissionID, grade, feedback)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
