package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/learnhub/server/internal/model"
)

// NoteRepo defines the interface for shared course notes.
type NoteRepo interface {
	Create(ctx context.Context, n model.Note) (model.Note, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Note, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Note, error)
}

type noteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo instance
func NewNoteRepo(db *sql.DB) NoteRepo {
	return &noteRepo{db: db}
}

const noteColumns = `id, course_id, author_id, title, body, summary, created_at`

func (r *noteRepo) Create(ctx context.Context, n model.Note) (model.Note, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notes (course_id, author_id, title, body, summary)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+noteColumns,
		n.CourseID, n.AuthorID, n.Title, n.Body, n.Summary,
	).Scan(&n.ID, &n.CourseID, &n.AuthorID, &n.Title, &n.Body, &n.Summary, &n.CreatedAt)
	if err != nil {
		return model.Note{}, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

func (r *noteRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Note, error) {
	var n model.Note
	err := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id,
	).Scan(&n.ID, &n.CourseID, &n.AuthorID, &n.Title, &n.Body, &n.Summary, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Note{}, ErrNotFound
		}
		return model.Note{}, fmt.Errorf("query note: %w", err)
	}
	return n, nil
}

func (r *noteRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE course_id = $1 ORDER BY created_at DESC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.CourseID, &n.AuthorID, &n.Title, &n.Body, &n.Summary, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
