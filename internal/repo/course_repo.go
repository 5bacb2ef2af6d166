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

// ErrAlreadyEnrolled means the student already joined the course.
var ErrAlreadyEnrolled = errors.New("already enrolled")

// CourseRepo defines the interface for course and enrollment operations.
type CourseRepo interface {
	Create(ctx context.Context, c model.Course) (model.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Course, error)
	GetByCode(ctx context.Context, code string) (model.Course, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Course, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Course, error)
	Enroll(ctx context.Context, courseID, studentID uuid.UUID) error
	IsEnrolled(ctx context.Context, courseID, studentID uuid.UUID) (bool, error)
}

type courseRepo struct {
	db *sql.DB
}

// NewCourseRepo creates a new CourseRepo instance
func NewCourseRepo(db *sql.DB) CourseRepo {
	return &courseRepo{db: db}
}

const courseColumns = `id, owner_id, title, code, description, created_at`

func (r *courseRepo) Create(ctx context.Context, c model.Course) (model.Course, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO courses (owner_id, title, code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+courseColumns,
		c.OwnerID, c.Title, c.Code, c.Description,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.Code, &c.Description, &c.CreatedAt)
	if err != nil {
		return model.Course{}, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

func (r *courseRepo) getBy(ctx context.Context, where string, arg interface{}) (model.Course, error) {
	var c model.Course
	err := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE `+where, arg,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.Code, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Course{}, ErrNotFound
		}
		return model.Course{}, fmt.Errorf("query course: %w", err)
	}
	return c, nil
}

func (r *courseRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Course, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *courseRepo) GetByCode(ctx context.Context, code string) (model.Course, error) {
	return r.getBy(ctx, `code = $1`, code)
}

func (r *courseRepo) list(ctx context.Context, query string, arg interface{}) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Code, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *courseRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Course, error) {
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses WHERE owner_id = $1 ORDER BY created_at`, ownerID)
}

func (r *courseRepo) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Course, error) {
	return r.list(ctx, `
		SELECT c.id, c.owner_id, c.title, c.code, c.description, c.created_at
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		WHERE e.student_id = $1
		ORDER BY c.created_at`, studentID)
}

func (r *courseRepo) Enroll(ctx context.Context, courseID, studentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (course_id, student_id) VALUES ($1, $2)
	`, courseID, studentID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

func (r *courseRepo) IsEnrolled(ctx context.Context, courseID, studentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)
	`, courseID, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}
