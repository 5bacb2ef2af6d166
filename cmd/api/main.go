package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/learnhub/server/internal/ai"
	"github.com/learnhub/server/internal/auth"
	"github.com/learnhub/server/internal/config"
	"github.com/learnhub/server/internal/db"
	httphandler "github.com/learnhub/server/internal/http"
	"github.com/learnhub/server/internal/http/handlers"
	"github.com/learnhub/server/internal/mail"
	"github.com/learnhub/server/internal/repo"
	"github.com/learnhub/server/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	courseRepo := repo.NewCourseRepo(database)
	assignmentRepo := repo.NewAssignmentRepo(database)
	quizRepo := repo.NewQuizRepo(database)
	noteRepo := repo.NewNoteRepo(database)
	analyticsRepo := repo.NewAnalyticsRepo(database)

	// Collaborators
	var mailer mail.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		log.Println("SMTP_HOST not set, using console mailer")
		mailer = mail.NewConsoleMailer()
	}

	var summarizer ai.Summarizer = ai.Disabled{}
	if cfg.AIAPIURL != "" && cfg.AIAPIKey != "" {
		summarizer = ai.NewClient(cfg.AIAPIURL, cfg.AIAPIKey, cfg.AIModel)
	} else {
		log.Println("AI API not configured, note summaries disabled")
	}

	files, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	// Services and handlers
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewService(userRepo, mailer, jwtService, cfg.OTPSalt, cfg.OTPBypassEmail)

	h := httphandler.Handlers{
		Auth:       handlers.NewAuthHandler(authService, cfg.IsProduction()),
		Course:     handlers.NewCourseHandler(courseRepo),
		Assignment: handlers.NewAssignmentHandler(assignmentRepo, courseRepo, files),
		Quiz:       handlers.NewQuizHandler(quizRepo, courseRepo),
		Note:       handlers.NewNoteHandler(noteRepo, courseRepo, summarizer),
		Analytics:  handlers.NewAnalyticsHandler(analyticsRepo, userRepo),
	}

	router := httphandler.NewRouter(h, jwtService, userRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
