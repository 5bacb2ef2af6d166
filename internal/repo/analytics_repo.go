package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/learnhub/server/internal/model"
)

// AnalyticsRepo computes dashboard aggregates in SQL.
type AnalyticsRepo interface {
	TeacherDashboard(ctx context.Context, teacherID uuid.UUID) (model.TeacherDashboard, error)
	StudentDashboard(ctx context.Context, studentID uuid.UUID) (model.StudentDashboard, error)
}

type analyticsRepo struct {
	db *sql.DB
}

// NewAnalyticsRepo creates a new AnalyticsRepo instance
func NewAnalyticsRepo(db *sql.DB) AnalyticsRepo {
	return &analyticsRepo{db: db}
}

func (r *analyticsRepo) TeacherDashboard(ctx context.Context, teacherID uuid.UUID) (model.TeacherDashboard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.title,
			(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id),
			(SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id),
			(SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.course_id = c.id),
			(SELECT AVG(s.grade)::float8 FROM submissions s JOIN assignments a ON a.id = s.assignment_id
				WHERE a.course_id = c.id AND s.grade IS NOT NULL),
			(SELECT AVG(qa.score::float8 / NULLIF(qa.max_score, 0)) * 100
				FROM quiz_attempts qa JOIN quizzes q ON q.id = qa.quiz_id WHERE q.course_id = c.id)
		FROM courses c
		WHERE c.owner_id = $1
		ORDER BY c.created_at
	`, teacherID)
	if err != nil {
		return model.TeacherDashboard{}, fmt.Errorf("teacher dashboard: %w", err)
	}
	defer rows.Close()

	var dash model.TeacherDashboard
	for rows.Next() {
		var cs model.CourseStats
		if err := rows.Scan(&cs.CourseID, &cs.Title, &cs.Enrolled, &cs.Assignments, &cs.Submissions, &cs.AverageGrade, &cs.AverageQuizPct); err != nil {
			return model.TeacherDashboard{}, fmt.Errorf("scan course stats: %w", err)
		}
		dash.Courses = append(dash.Courses, cs)
	}
	return dash, rows.Err()
}

func (r *analyticsRepo) StudentDashboard(ctx context.Context, studentID uuid.UUID) (model.StudentDashboard, error) {
	var dash model.StudentDashboard
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM enrollments e WHERE e.student_id = $1),
			(SELECT COUNT(*) FROM assignments a
				JOIN enrollments e ON e.course_id = a.course_id AND e.student_id = $1
				WHERE NOT EXISTS (
					SELECT 1 FROM submissions s WHERE s.assignment_id = a.id AND s.student_id = $1
				)),
			(SELECT COUNT(*) FROM submissions s WHERE s.student_id = $1),
			(SELECT AVG(qa.score::float8 / NULLIF(qa.max_score, 0)) * 100
				FROM quiz_attempts qa WHERE qa.student_id = $1)
	`, studentID).Scan(&dash.EnrolledCourses, &dash.PendingAssignments, &dash.SubmittedCount, &dash.AverageQuizPct)
	if err != nil {
		return model.StudentDashboard{}, fmt.Errorf("student dashboard: %w", err)
	}
	return dash, nil
}
