package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"smarttest/internal/auth"
	"smarttest/internal/exam"
	"smarttest/internal/models"
	"smarttest/pkg/database"
	"smarttest/pkg/websocket"
)

type fixture struct {
	router http.Handler
	exams  *exam.Service
	tokens map[int64]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(&database.Config{
		Driver: "sqlite",
		DBName: filepath.Join(t.TempDir(), "dashboard.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	authService := auth.NewService(auth.NewRepository(db), "secret")
	exams := exam.NewService(exam.NewRepository(db), nil, nil)
	isAdmin := func(id int64) bool { return id == 99 }
	handler := NewHandler(exams, authService, isAdmin)
	hub := websocket.NewHub()
	hub.SetAuthorizer(handler.AuthorizeWatcher)

	f := &fixture{
		router: NewRouter(handler, auth.NewHandler(authService), authService, hub, nil),
		exams:  exams,
		tokens: make(map[int64]string),
	}
	for _, id := range []int64{1, 2, 99} {
		f.tokens[id] = login(t, db, authService, id)
	}
	return f
}

func login(t *testing.T, db *gorm.DB, svc *auth.Service, id int64) string {
	t.Helper()
	ctx := context.Background()
	if err := db.Create(&models.User{ID: id, FullName: "User"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := svc.SetPassword(ctx, id, "password123"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	token, err := svc.Login(ctx, id, "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return token
}

func (f *fixture) get(t *testing.T, path string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+f.tokens[userID])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestMyTests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.exams.CreateTest(ctx, 1, "file", models.FilePhoto, "abc", 30); err != nil {
		t.Fatalf("create test: %v", err)
	}
	if _, err := f.exams.CreateTest(ctx, 2, "file", models.FilePhoto, "ab", 0); err != nil {
		t.Fatalf("create test: %v", err)
	}

	rec := f.get(t, "/api/tests", 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tests []models.TestSummaryDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &tests); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tests) != 1 || tests[0].Code != 1001 || tests[0].Questions != 3 {
		t.Fatalf("unexpected tests: %+v", tests)
	}

	if rec := f.get(t, "/api/tests", 0); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestTestAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	test, err := f.exams.CreateTest(ctx, 1, "file", models.FilePhoto, "abc", 30)
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	if _, err := f.exams.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := f.exams.Submit(ctx, 2, "1001*abx"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if rec := f.get(t, "/api/tests/1001", 2); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a stranger, got %d", rec.Code)
	}
	if rec := f.get(t, "/api/tests/1001", 99); rec.Code != http.StatusOK {
		t.Fatalf("expected admin access, got %d", rec.Code)
	}
	if rec := f.get(t, "/api/tests/4242", 1); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec := f.get(t, "/api/tests/1001/results", 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Results []models.LeaderboardEntry `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].UserID != 2 || body.Results[0].Score != 2 {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}

func TestAuthorizeWatcher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.exams.CreateTest(ctx, 1, "file", models.FilePhoto, "abc", 30); err != nil {
		t.Fatalf("create test: %v", err)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/1001?token="+f.tokens[2], nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a stranger, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if rec := f.get(t, "/healthz", 0); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
