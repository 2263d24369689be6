// internal/models/dto.go
package models

import "time"

// ResultRow is one participant of a test joined with their session and user.
type ResultRow struct {
	UserID      int64     `json:"user_id"`
	FullName    string    `json:"full_name"`
	Score       int       `json:"score"`
	StartedAt   time.Time `json:"started_at"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Elapsed is the time the participant spent between start and submission.
func (r ResultRow) Elapsed() time.Duration {
	return r.SubmittedAt.Sub(r.StartedAt)
}

type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	UserID     int64   `json:"user_id"`
	FullName   string  `json:"full_name"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Seconds    int64   `json:"seconds"`
}

type TestSummaryDTO struct {
	Code            int       `json:"code"`
	Status          string    `json:"status"`
	Questions       int       `json:"questions"`
	DurationMinutes int       `json:"duration_minutes"`
	Participants    int64     `json:"participants"`
	CreatedAt       time.Time `json:"created_at"`
}

// ToSummary strips the answer key and file reference from a test.
func (t Test) ToSummary(participants int64) TestSummaryDTO {
	return TestSummaryDTO{
		Code:            t.Code,
		Status:          t.Status,
		Questions:       t.QuestionCount(),
		DurationMinutes: t.DurationMinutes,
		Participants:    participants,
		CreatedAt:       t.CreatedAt,
	}
}

// AnswerDetails is what a participant needs to review their mistakes.
type AnswerDetails struct {
	AnswerKey string
	Submitted string
}
