// internal/models/test.go
package models

import (
	"time"
	"unicode/utf8"
)

const (
	TestActive = "active"
	TestClosed = "closed"

	FilePhoto    = "photo"
	FileDocument = "document"

	// FirstTestCode is handed out when no test exists yet.
	FirstTestCode = 1001
)

type Test struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Code            int       `json:"code" gorm:"uniqueIndex;not null"`
	OwnerID         int64     `json:"owner_id" gorm:"index;not null"`
	FileID          string    `json:"file_id"`
	FileKind        string    `json:"file_kind"`
	AnswerKey       string    `json:"answer_key" gorm:"not null"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status" gorm:"index;default:active"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
	Sessions        []Session `json:"-" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
}

func (t *Test) IsActive() bool {
	return t.Status == TestActive
}

// QuestionCount is the number of questions, one per answer-key letter.
func (t *Test) QuestionCount() int {
	return utf8.RuneCountInString(t.AnswerKey)
}

// Deadline returns the end of a personal answer window that started at start.
// The second value is false for unlimited tests.
func (t *Test) Deadline(start time.Time) (time.Time, bool) {
	if t.DurationMinutes <= 0 {
		return time.Time{}, false
	}
	return start.Add(time.Duration(t.DurationMinutes) * time.Minute), true
}

type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"uniqueIndex:idx_session_user_test;not null"`
	TestID    uint      `json:"test_id" gorm:"uniqueIndex:idx_session_user_test;not null"`
	StartedAt time.Time `json:"started_at" gorm:"not null"`
	Answer    *Answer   `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (Session) TableName() string {
	return "user_test_sessions"
}

type Answer struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	SessionID   uint      `json:"session_id" gorm:"uniqueIndex:idx_answer_session_user;not null"`
	UserID      int64     `json:"user_id" gorm:"uniqueIndex:idx_answer_session_user;not null"`
	Score       int       `json:"score"`
	Submitted   string    `json:"submitted"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"not null"`
}

func (Answer) TableName() string {
	return "user_answers"
}
