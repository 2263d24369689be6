package exam

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/models"
)

type sent struct {
	to   string
	what interface{}
}

type fakeSender struct {
	sent   []sent
	failTo map[string]bool
}

func (s *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if s.failTo[to.Recipient()] {
		return nil, errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	}
	s.sent = append(s.sent, sent{to: to.Recipient(), what: what})
	return &tele.Message{}, nil
}

func (s *fakeSender) to(chat string) []interface{} {
	var out []interface{}
	for _, m := range s.sent {
		if m.to == chat {
			out = append(out, m.what)
		}
	}
	return out
}

func seedParticipants(t *testing.T, svc *Service, clk *clock, code int, answers map[int64]string) {
	t.Helper()
	ctx := context.Background()
	start := clk.now
	step := 0
	for _, id := range []int64{20, 21, 22, 23} {
		text, ok := answers[id]
		if !ok {
			continue
		}
		clk.now = start
		if _, err := svc.OpenSession(ctx, id, code); err != nil {
			t.Fatalf("open session for %d: %v", id, err)
		}
		step++
		clk.now = start.Add(time.Duration(step) * time.Minute)
		if _, err := svc.Submit(ctx, id, text); err != nil {
			t.Fatalf("submit for %d: %v", id, err)
		}
	}
}

func TestCloseTestDeliversResults(t *testing.T) {
	ctx := context.Background()
	svc, clk, cache, events := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "abcd", 0)

	seedParticipants(t, svc, clk, test.Code, map[int64]string{
		20: "1001*abcd",
		21: "1001*abcx",
		22: "1001*abxx",
		23: "1001*xxxx",
	})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "place-1.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write certificate: %v", err)
	}

	sender := &fakeSender{failTo: map[string]bool{"22": true}}
	results := NewResults(svc, sender, ResultsOptions{CertificatesDir: dir})

	report, err := results.CloseTest(ctx, 1, false, test.Code)
	if err != nil {
		t.Fatalf("close test: %v", err)
	}
	if report.Participants != 4 || report.Sent != 3 || report.Failed != 1 || !report.ExportSent {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, ok := sender.to("20")[0].(*tele.Photo); !ok {
		t.Fatalf("winner must get a certificate photo, got %T", sender.to("20")[0])
	}
	if text, ok := sender.to("21")[0].(string); !ok || !strings.Contains(text, "2ND PLACE") {
		t.Fatalf("second place without a certificate file must get a caption text, got %v", sender.to("21"))
	}
	if text, ok := sender.to("23")[0].(string); !ok || !strings.Contains(text, "Correct answers: <b>0 / 4</b>") {
		t.Fatalf("unexpected result text: %v", sender.to("23"))
	}
	if doc, ok := sender.to("1")[0].(*tele.Document); !ok || doc.FileName != "test_1001_results.xlsx" {
		t.Fatalf("owner must get the spreadsheet, got %v", sender.to("1"))
	}

	stored, err := svc.repo.GetTestByCode(ctx, test.Code)
	if err != nil || stored.IsActive() {
		t.Fatalf("test must be closed, got %+v (%v)", stored, err)
	}
	if cached, ok := cache.tests[test.Code]; !ok || cached.IsActive() {
		t.Fatalf("cache must hold the closed status, got %+v", cached)
	}
	if len(cache.results[test.Code]) != 4 {
		t.Fatalf("final ranking must be cached")
	}
	last := events.events[len(events.events)-1]
	if last.kind != "test_closed" {
		t.Fatalf("expected test_closed event, got %+v", last)
	}

	if _, err := results.CloseTest(ctx, 1, false, test.Code); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed on second close, got %v", err)
	}
}

func TestCloseTestWhenEvictionFails(t *testing.T) {
	ctx := context.Background()
	svc, _, cache, _ := newTestService(t)
	cache.failDelete = true
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)

	if _, err := svc.OpenSession(ctx, 20, test.Code); err != nil {
		t.Fatalf("open session: %v", err)
	}
	results := NewResults(svc, &fakeSender{}, ResultsOptions{})
	if _, err := results.CloseTest(ctx, 1, false, test.Code); err != nil {
		t.Fatalf("close test: %v", err)
	}

	if _, err := svc.OpenSession(ctx, 21, test.Code); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed on open, got %v", err)
	}
	if _, err := svc.Submit(ctx, 20, "1001*ab"); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed on submit, got %v", err)
	}
}

func TestCloseTestWhenCacheWriteFails(t *testing.T) {
	ctx := context.Background()
	svc, _, cache, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)
	if _, ok := cache.tests[test.Code]; !ok {
		t.Fatalf("new test must be cached")
	}

	cache.failSet = true
	results := NewResults(svc, &fakeSender{}, ResultsOptions{})
	if _, err := results.CloseTest(ctx, 1, false, test.Code); err != nil {
		t.Fatalf("close test: %v", err)
	}
	if _, ok := cache.tests[test.Code]; ok {
		t.Fatalf("active copy must be evicted when the closed status cannot be cached")
	}
	if _, err := svc.OpenSession(ctx, 21, test.Code); !errors.Is(err, ErrTestClosed) {
		t.Fatalf("expected ErrTestClosed on open, got %v", err)
	}
}

func TestCloseTestRequiresOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)
	results := NewResults(svc, &fakeSender{}, ResultsOptions{})

	if _, err := results.CloseTest(ctx, 2, false, test.Code); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := results.CloseTest(ctx, 2, true, test.Code); err != nil {
		t.Fatalf("admin must be able to close any test: %v", err)
	}
	if _, err := results.CloseTest(ctx, 1, false, 9999); !errors.Is(err, ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}

func TestCloseTestWithoutParticipants(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)
	sender := &fakeSender{}

	report, err := NewResults(svc, sender, ResultsOptions{}).CloseTest(ctx, 1, false, test.Code)
	if err != nil {
		t.Fatalf("close test: %v", err)
	}
	if report.Participants != 0 || report.ExportSent || len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent for an empty test: %+v, %v", report, sender.sent)
	}
}

func TestCloseTestReportsExportFailure(t *testing.T) {
	ctx := context.Background()
	svc, clk, _, _ := newTestService(t)
	test, _ := svc.CreateTest(ctx, 1, "f", models.FilePhoto, "ab", 0)
	seedParticipants(t, svc, clk, test.Code, map[int64]string{20: "1001*ab"})

	sender := &fakeSender{failTo: map[string]bool{"1": true}}
	report, err := NewResults(svc, sender, ResultsOptions{}).CloseTest(ctx, 1, false, test.Code)
	if err != nil {
		t.Fatalf("export failure must not abort closing: %v", err)
	}
	if report.ExportSent || report.Sent != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
