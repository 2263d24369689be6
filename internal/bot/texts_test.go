package bot

import (
	"strings"
	"testing"
	"time"

	"smarttest/internal/admin"
	"smarttest/internal/exam"
	"smarttest/internal/models"
)

func TestOpenedTextDeadline(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*3600)
	opened := &exam.Opened{
		Test:     &models.Test{Code: 1001, DurationMinutes: 30},
		Deadline: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}

	text := openedText(opened, tashkent)
	if !strings.Contains(text, "ends at 15:30") {
		t.Fatalf("expected the deadline in local time, got %q", text)
	}
	if !strings.Contains(text, "<b>30 minutes</b>") {
		t.Fatalf("expected the duration, got %q", text)
	}

	opened.Unlimited = true
	if text := openedText(opened, tashkent); !strings.Contains(text, "not limited") || strings.Contains(text, "ends at") {
		t.Fatalf("unexpected unlimited text %q", text)
	}
}

func TestReviewText(t *testing.T) {
	text := reviewText(1001, "abcd", "abx")
	for _, want := range []string{
		"✅ Question 1: A (correct)",
		"❌ Question 3: your answer X (correct: C)",
		"❌ Question 4: your answer ? (correct: D)",
		"Total: 2 correct (50.0%)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
}

func TestParseReferrer(t *testing.T) {
	cases := map[string]int64{
		"":       0,
		"42":     42,
		" 42 ":   42,
		"-5":     0,
		"friend": 0,
	}
	for payload, want := range cases {
		if got := parseReferrer(payload); got != want {
			t.Errorf("parseReferrer(%q) = %d, want %d", payload, got, want)
		}
	}
}

func TestRatingText(t *testing.T) {
	if ratingText(nil) != emptyRatingText {
		t.Fatalf("expected the empty rating text")
	}
	text := ratingText([]models.ReferralStat{
		{FullName: "Ann <3", ReferralCount: 5},
		{FullName: "Bob", ReferralCount: 2},
	})
	if !strings.Contains(text, "🥇 Ann &lt;3 - <b>5</b> friends") || !strings.Contains(text, "🥈 Bob - <b>2</b> friends") {
		t.Fatalf("unexpected rating %q", text)
	}
}

func TestChannelListText(t *testing.T) {
	text := channelListText([]admin.ChannelInfo{
		{Channel: models.Channel{ID: -1001, Username: "news"}, Title: "News", Reachable: true},
		{Channel: models.Channel{ID: -1002}},
	})
	if !strings.Contains(text, "1. <b>News</b>") || !strings.Contains(text, "https://t.me/news") {
		t.Fatalf("missing reachable channel in %q", text)
	}
	if !strings.Contains(text, "2. <b>Unknown channel</b>") {
		t.Fatalf("missing unreachable channel in %q", text)
	}
	if channelListText(nil) != noChannelsText {
		t.Fatalf("expected the empty list text")
	}
}

func TestCloseRejectionText(t *testing.T) {
	if closeRejectionText(1001, exam.ErrNotOwner) == "" {
		t.Fatalf("ownership errors must have a reply")
	}
	if closeRejectionText(1001, errDatabase) != "" {
		t.Fatalf("unexpected errors must not be described")
	}
}

var errDatabase = &databaseError{}

type databaseError struct{}

func (*databaseError) Error() string { return "database is locked" }
