package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the fixed set of account roles. A role is set at registration and
// never changes through the auth flow.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is an account in the system. OTP state lives directly on the user row:
// a non-nil OTPHash with OTPExpiresAt in the future means a code is pending.
type User struct {
	ID            uuid.UUID
	Email         string
	Name          string
	Role          Role
	PasswordHash  []byte // nil until first successful OTP verification
	IsVerified    bool
	OTPHash       *string // hex sha256, nil when no code outstanding
	OTPExpiresAt  *time.Time
	OTPLastSentAt *time.Time
	OTPSendCount  int
	OTPResetAt    *time.Time // rate-limit window anchor
	OTPAttempts   int
	LockedUntil   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Locked reports whether the account is under a verification lockout at t.
func (u User) Locked(t time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(t)
}

// EffectiveSendCount returns the OTP send count that applies for rate
// limiting at t: once the window anchor has elapsed the count starts over.
func (u User) EffectiveSendCount(t time.Time) int {
	if u.OTPResetAt == nil || !u.OTPResetAt.After(t) {
		return 0
	}
	return u.OTPSendCount
}

// Course is a class created by a teacher. Students join with the short code.
type Course struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Code        string // short join code, unique
	Description string
	CreatedAt   time.Time
}

// Enrollment links a student to a course. Unique per (course, student).
type Enrollment struct {
	ID        uuid.UUID
	CourseID  uuid.UUID
	StudentID uuid.UUID
	CreatedAt time.Time
}

// Assignment is coursework with a due date, graded out of MaxPoints.
type Assignment struct {
	ID           uuid.UUID
	CourseID     uuid.UUID
	Title        string
	Instructions string
	DueAt        time.Time
	MaxPoints    int
	CreatedAt    time.Time
}

// Submission is a student's answer to an assignment; at most one per
// (assignment, student). FileName is the stored upload name, empty if none.
type Submission struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	StudentID    uuid.UUID
	Body         string
	FileName     string
	Grade        *int
	Feedback     string
	SubmittedAt  time.Time
	GradedAt     *time.Time
}

// Quiz is a set of multiple-choice questions under a course.
type Quiz struct {
	ID        uuid.UUID
	CourseID  uuid.UUID
	Title     string
	CreatedAt time.Time
	Questions []QuizQuestion
}

// QuizQuestion is one multiple-choice question. CorrectIndex points into
// Options and is never exposed to students before an attempt.
type QuizQuestion struct {
	ID           uuid.UUID
	QuizID       uuid.UUID
	Position     int
	Prompt       string
	Options      []string
	CorrectIndex int
	Points       int
}

// QuizAttempt records a student's single scored run of a quiz. Answers holds
// the chosen option index per question position (-1 for unanswered).
type QuizAttempt struct {
	ID        uuid.UUID
	QuizID    uuid.UUID
	StudentID uuid.UUID
	Answers   []int
	Score     int
	MaxScore  int
	CreatedAt time.Time
}

// Note is a shared course note. Summary is filled in by the AI summarizer
// when available and stays empty otherwise.
type Note struct {
	ID        uuid.UUID
	CourseID  uuid.UUID
	AuthorID  uuid.UUID
	Title     string
	Body      string
	Summary   string
	CreatedAt time.Time
}

// CourseStats is one row of the teacher dashboard. Dashboard types carry
// json tags since they are returned to clients as-is.
type CourseStats struct {
	CourseID       uuid.UUID `json:"course_id"`
	Title          string    `json:"title"`
	Enrolled       int       `json:"enrolled"`
	Assignments    int       `json:"assignments"`
	Submissions    int       `json:"submissions"`
	AverageGrade   *float64  `json:"average_grade,omitempty"`
	AverageQuizPct *float64  `json:"average_quiz_pct,omitempty"`
}

// TeacherDashboard aggregates stats across a teacher's courses.
type TeacherDashboard struct {
	Courses []CourseStats `json:"courses"`
}

// StudentDashboard aggregates a student's standing across enrolled courses.
type StudentDashboard struct {
	EnrolledCourses    int      `json:"enrolled_courses"`
	PendingAssignments int      `json:"pending_assignments"`
	SubmittedCount     int      `json:"submitted_count"`
	AverageQuizPct     *float64 `json:"average_quiz_pct,omitempty"`
}
