package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/learnhub/server/internal/ai"
	"github.com/learnhub/server/internal/auth"
	"github.com/learnhub/server/internal/db"
	httphandler "github.com/learnhub/server/internal/http"
	"github.com/learnhub/server/internal/http/handlers"
	"github.com/learnhub/server/internal/mail"
	"github.com/learnhub/server/internal/repo"
	"github.com/learnhub/server/internal/storage"
)

// The bypass address gets the fixed code, so tests know what to submit
// without intercepting email.
const (
	bypassTeacher = "teacher@learnhub.test"
	bypassCode    = "123456"
)

func TestMain(m *testing.M) {
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}
	if os.Getenv("OTP_SALT") == "" {
		os.Setenv("OTP_SALT", "test-otp-salt")
	}
	os.Exit(m.Run())
}

type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

// newTestServer skips the test when DATABASE_URL is unset.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	database, err := db.Open(ctx, dsn)
	require.NoError(t, err, "database open must succeed")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database))
	require.NoError(t, TruncateAll(ctx, database))

	userRepo := repo.NewUserRepo(database)
	courseRepo := repo.NewCourseRepo(database)
	assignmentRepo := repo.NewAssignmentRepo(database)
	quizRepo := repo.NewQuizRepo(database)
	noteRepo := repo.NewNoteRepo(database)
	analyticsRepo := repo.NewAnalyticsRepo(database)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	jwtService := auth.NewJWTService(os.Getenv("JWT_SECRET"))
	authService := auth.NewService(userRepo, mail.NewConsoleMailer(), jwtService, os.Getenv("OTP_SALT"), bypassTeacher)

	h := httphandler.Handlers{
		Auth:       handlers.NewAuthHandler(authService, false),
		Course:     handlers.NewCourseHandler(courseRepo),
		Assignment: handlers.NewAssignmentHandler(assignmentRepo, courseRepo, files),
		Quiz:       handlers.NewQuizHandler(quizRepo, courseRepo),
		Note:       handlers.NewNoteHandler(noteRepo, courseRepo, ai.Disabled{}),
		Analytics:  handlers.NewAnalyticsHandler(analyticsRepo, userRepo),
	}

	server := httptest.NewServer(httphandler.NewRouter(h, jwtService, userRepo))
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database}
}

func (s *testServer) postJSON(t *testing.T, path string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.Server.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *testServer) getJSON(t *testing.T, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.Server.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

// registerTeacher walks the full bypass-address OTP flow and returns the
// session cookie.
func registerTeacher(t *testing.T, s *testServer) *http.Cookie {
	t.Helper()

	resp := s.postJSON(t, "/auth/request_otp", map[string]string{
		"email": bypassTeacher, "role": "teacher", "name": "Prof",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": bypassCode, "password": "longenough",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := sessionCookie(resp)
	resp.Body.Close()
	require.NotNil(t, cookie, "verify with password must set the session cookie")
	return cookie
}

func TestAuthFlow_endToEnd(t *testing.T) {
	s := newTestServer(t)

	// Request a code for a fresh account.
	resp := s.postJSON(t, "/auth/request_otp", map[string]string{
		"email": bypassTeacher, "role": "teacher", "name": "Prof",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Role mismatch on a second request is a hard failure.
	resp = s.postJSON(t, "/auth/request_otp", map[string]string{
		"email": bypassTeacher, "role": "student",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Wrong code counts an attempt.
	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": "999999",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Correct code without a password answers needs_password and keeps the
	// code redeemable.
	var verify struct {
		Success       bool `json:"success"`
		NeedsPassword bool `json:"needs_password"`
	}
	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": bypassCode,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &verify)
	assert.True(t, verify.Success)
	assert.True(t, verify.NeedsPassword)

	// Short password is rejected.
	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": bypassCode, "password": "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Full finalization issues a session cookie.
	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": bypassCode, "password": "longenough",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	resp.Body.Close()
	require.NotNil(t, cookie)

	// The session works against a gated route.
	var me struct {
		Email    string `json:"email"`
		Role     string `json:"role"`
		Verified bool   `json:"verified"`
	}
	resp = s.getJSON(t, "/me", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &me)
	assert.Equal(t, bypassTeacher, me.Email)
	assert.Equal(t, "teacher", me.Role)
	assert.True(t, me.Verified)

	// The consumed code is gone.
	resp = s.postJSON(t, "/auth/verify_otp", map[string]string{
		"email": bypassTeacher, "code": bypassCode,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// No cookie means no session.
	resp = s.getJSON(t, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOTPRateLimit_perAccount(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{"email": bypassTeacher, "role": "teacher"}
	for i := 0; i < 3; i++ {
		resp := s.postJSON(t, "/auth/request_otp", body, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := s.postJSON(t, "/auth/request_otp", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestCourseFlow_createAndTeacherDashboard(t *testing.T) {
	s := newTestServer(t)
	cookie := registerTeacher(t, s)

	var course struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	resp := s.postJSON(t, "/courses", map[string]string{
		"title": "Intro to Go", "code": "GO101", "description": "basics",
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &course)
	require.NotEmpty(t, course.ID)
	assert.Equal(t, "GO101", course.Code)

	resp = s.postJSON(t, "/courses/"+course.ID+"/assignments", map[string]interface{}{
		"title":      "Homework 1",
		"due_at":     time.Now().Add(72 * time.Hour),
		"max_points": 100,
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var dash struct {
		Courses []struct {
			Title       string `json:"title"`
			Enrolled    int    `json:"enrolled"`
			Assignments int    `json:"assignments"`
		} `json:"courses"`
	}
	resp = s.getJSON(t, "/analytics/dashboard", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &dash)
	require.Len(t, dash.Courses, 1)
	assert.Equal(t, "Intro to Go", dash.Courses[0].Title)
	assert.Equal(t, 0, dash.Courses[0].Enrolled)
	assert.Equal(t, 1, dash.Courses[0].Assignments)
}
