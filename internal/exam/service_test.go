package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smarttest/internal/models"
)

type fakeCache struct {
	tests   map[int]*models.Test
	results map[int][]models.LeaderboardEntry

	failSet    bool
	failDelete bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		tests:   make(map[int]*models.Test),
		results: make(map[int][]models.LeaderboardEntry),
	}
}

var errMiss = errors.New("miss")

func (c *fakeCache) GetTest(_ context.Context, code int) (*models.Test, error) {
	if test, ok := c.tests[code]; ok {
		copied := *test
		return &copied, nil
	}
	return nil, errMiss
}

var errCacheDown = errors.New("redis: connection refused")

func (c *fakeCache) SetTest(_ context.Context, test *models.Test) error {
	if c.failSet {
		return errCacheDown
	}
	copied := *test
	c.tests[test.Code] = &copied
	return nil
}

func (c *fakeCache) DeleteTest(_ context.Context, code int) error {
	if c.failDelete {
		return errCacheDown
	}
	delete(c.tests, code)
	delete(c.results, code)
	return nil
}

func (c *fakeCache) SetResults(_ context.Context, code int, entries []models.LeaderboardEntry) error {
	c.results[code] = entries
	return nil
}

func (c *fakeCache) GetResults(_ context.Context, code int) ([]models.LeaderboardEntry, error) {
	if entries, ok := c.results[code]; ok {
		return entries, nil
	}
	return nil, errMiss
}

type event struct {
	room string
	kind string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []event
}

func (e *fakeEvents) BroadcastMessage(room string, messageType string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event{room: room, kind: messageType})
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *clock, *fakeCache, *fakeEvents) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	cache := newFakeCache()
	events := &fakeEvents{}
	svc := NewService(NewRepository(newTestDB(t)), cache, events)
	svc.now = clk.Now
	return svc, clk, cache, events
}

func TestCreateTestValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _, cache, _ := newTestService(t)

	if _, err := svc.CreateTest(ctx, 1, "", models.FilePhoto, "abc", 30); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if _, err := svc.CreateTest(ctx, 1, "f", "video", "abc", 30); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile for video, got %v", err)
	}
	if _, err := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "1 2 3", 30); !errors.Is(err, ErrEmptyAnswerKey) {
		t.Fatalf("expected ErrEmptyAnswerKey, got %v", err)
	}
	if _, err := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "abc", -1); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}

	test, err := svc.CreateTest(ctx, 1, "f", models.FileDocument, "1-A 2-b 3-C", 60)
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	if test.AnswerKey != "abc" || test.QuestionCount() != 3 {
		t.Fatalf("expected normalized key abc, got %q", test.AnswerKey)
	}
	if _, ok := cache.tests[test.Code]; !ok {
		t.Fatalf("new test must be cached")
	}
}

func TestOpenAndSubmit(t *testing.T) {
	ctx := context.Background()
	svc, clk, _, events := newTestService(t)

	test, err := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "abcd", 30)
	if err != nil {
		t.Fatalf("create test: %v", err)
	}

	opened, err := svc.OpenSession(ctx, 2, test.Code)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if opened.Unlimited || !opened.Deadline.Equal(clk.now.Add(30*time.Minute)) {
		t.Fatalf("unexpected deadline: %+v", opened)
	}

	clk.now = clk.now.Add(10 * time.Minute)
	sub, err := svc.Submit(ctx, 2, "1001*AbCx")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != 3 || sub.Answers != "abcx" {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	if _, err := svc.Submit(ctx, 2, "1001*abcd"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	if _, err := svc.OpenSession(ctx, 2, test.Code); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected reopening to be rejected, got %v", err)
	}

	if len(events.events) != 1 || events.events[0].kind != "answer_submitted" || events.events[0].room != "1001" {
		t.Fatalf("expected one answer_submitted event, got %+v", events.events)
	}
}

func TestOpenSessionTwiceWithoutAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)

	if _, err := svc.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := svc.OpenSession(ctx, 2, test.Code); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestSubmitAfterDeadline(t *testing.T) {
	ctx := context.Background()
	svc, clk, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 30)

	if _, err := svc.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}

	clk.now = clk.now.Add(30 * time.Minute)
	if _, err := svc.Submit(ctx, 2, "1001*ab"); err != nil {
		t.Fatalf("submission exactly at the deadline must be accepted: %v", err)
	}

	if _, err := svc.OpenSession(ctx, 3, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	clk.now = clk.now.Add(31 * time.Minute)
	if _, err := svc.Submit(ctx, 3, "1001*ab"); !errors.Is(err, ErrTimeUp) {
		t.Fatalf("expected ErrTimeUp, got %v", err)
	}
}

func TestUnlimitedTestNeverExpires(t *testing.T) {
	ctx := context.Background()
	svc, clk, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)

	opened, err := svc.OpenSession(ctx, 2, test.Code)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if !opened.Unlimited {
		t.Fatalf("expected unlimited session")
	}

	clk.now = clk.now.Add(72 * time.Hour)
	if _, err := svc.Submit(ctx, 2, "1001*ab"); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "abcd", 0)

	if _, err := svc.Submit(ctx, 2, "1001*abcd"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Submit(ctx, 2, "9999*abcd"); !errors.Is(err, ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}

	if _, err := svc.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}

	var mismatch *CountMismatchError
	if _, err := svc.Submit(ctx, 2, "1001*abc"); !errors.As(err, &mismatch) {
		t.Fatalf("expected CountMismatchError, got %v", err)
	}
	if _, err := svc.Submit(ctx, 2, "1001*abcd"); err != nil {
		t.Fatalf("session must stay open after a count mismatch: %v", err)
	}
}

func TestClosedTestRejectsStudents(t *testing.T) {
	ctx := context.Background()
	svc, _, cache, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)

	if _, err := svc.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.repo.CloseTest(ctx, test.Code); err != nil {
		t.Fatalf("close test: %v", err)
	}
	svc.forgetTest(ctx, test.Code)

	if _, err := svc.OpenSession(ctx, 3, test.Code); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed, got %v", err)
	}
	if _, err := svc.Submit(ctx, 2, "1001*ab"); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed on submit, got %v", err)
	}
	if cached := cache.tests[test.Code]; cached == nil || cached.IsActive() {
		t.Fatalf("expected the closed test to be re-cached, got %+v", cached)
	}
}

func TestAnswerDetailsHiddenWhileActive(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "abcd", 0)

	if _, err := svc.OpenSession(ctx, 2, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := svc.Submit(ctx, 2, "1001*aaaa"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	details, err := svc.AnswerDetails(ctx, test.Code, 2)
	if !errors.Is(err, ErrResultsNotPublished) {
		t.Fatalf("expected ErrResultsNotPublished, got %v", err)
	}
	if details != nil {
		t.Fatalf("the answer key must not leak before closing, got %+v", details)
	}

	if err := svc.repo.CloseTest(ctx, test.Code); err != nil {
		t.Fatalf("close test: %v", err)
	}
	details, err = svc.AnswerDetails(ctx, test.Code, 2)
	if err != nil {
		t.Fatalf("answer details after closing: %v", err)
	}
	if details.AnswerKey != "abcd" || details.Submitted != "aaaa" {
		t.Fatalf("unexpected details: %+v", details)
	}

	if _, err := svc.AnswerDetails(ctx, 4242, 2); !errors.Is(err, ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}

func TestPurgeClosedEvictsCache(t *testing.T) {
	ctx := context.Background()
	svc, clk, cache, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)
	if err := svc.repo.CloseTest(ctx, test.Code); err != nil {
		t.Fatalf("close test: %v", err)
	}

	clk.now = clk.now.Add(5 * 24 * time.Hour)
	purged, err := svc.PurgeClosed(ctx, 4*24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged test, got %d", purged)
	}
	if _, ok := cache.tests[test.Code]; ok {
		t.Fatalf("purged test must be evicted")
	}
}

func TestAuthorize(t *testing.T) {
	test := &models.Test{OwnerID: 5}
	if err := Authorize(test, 5, false); err != nil {
		t.Fatalf("owner must be allowed: %v", err)
	}
	if err := Authorize(test, 6, true); err != nil {
		t.Fatalf("admin must be allowed: %v", err)
	}
	if err := Authorize(test, 6, false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
