package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

// Migration dir candidates depending on the test working directory.
const (
	migrationDir             = "internal/db/migrations"
	migrationDirFromTestsPkg = "../../internal/db/migrations"
)

// ResolveMigrationDir returns the first existing migrations directory, or an
// empty string.
func ResolveMigrationDir() string {
	for _, dir := range []string{migrationDir, migrationDirFromTestsPkg} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return ""
}

// RunMigrations runs goose Up using the resolved migration directory.
func RunMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := ResolveMigrationDir()
	if dir == "" {
		return fmt.Errorf("migrations directory not found; run tests from the repo root")
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TruncateAll truncates all application tables for a clean test state.
func TruncateAll(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE TABLE notes, quiz_attempts, quiz_questions, quizzes,
			submissions, assignments, enrollments, courses, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
