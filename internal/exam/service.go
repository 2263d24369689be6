// internal/exam/service.go
package exam

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"smarttest/internal/models"
)

// Cache keeps hot tests and final rankings out of the database. Optional.
type Cache interface {
	GetTest(ctx context.Context, code int) (*models.Test, error)
	SetTest(ctx context.Context, test *models.Test) error
	DeleteTest(ctx context.Context, code int) error
	SetResults(ctx context.Context, code int, entries []models.LeaderboardEntry) error
	GetResults(ctx context.Context, code int) ([]models.LeaderboardEntry, error)
}

// Events receives live updates for dashboards watching a test. Optional.
type Events interface {
	BroadcastMessage(room string, messageType string, data interface{})
}

type Service struct {
	repo   Store
	cache  Cache
	events Events
	now    func() time.Time
}

func NewService(repo Store, cache Cache, events Events) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		events: events,
		now:    time.Now,
	}
}

// Opened describes a freshly started session.
type Opened struct {
	Test      *models.Test
	Session   *models.Session
	Deadline  time.Time
	Unlimited bool
}

// Submission is an accepted, scored answer.
type Submission struct {
	Test    *models.Test
	Answers string
	Score   int
}

func Room(code int) string {
	return strconv.Itoa(code)
}

func (s *Service) CreateTest(ctx context.Context, ownerID int64, fileID, fileKind, rawKey string, duration int) (*models.Test, error) {
	if fileID == "" || (fileKind != models.FilePhoto && fileKind != models.FileDocument) {
		return nil, ErrUnsupportedFile
	}
	key := Normalize(rawKey)
	if key == "" {
		return nil, ErrEmptyAnswerKey
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}

	test := &models.Test{
		OwnerID:         ownerID,
		FileID:          fileID,
		FileKind:        fileKind,
		AnswerKey:       key,
		DurationMinutes: duration,
		Status:          models.TestActive,
		CreatedAt:       s.now(),
	}
	if err := s.repo.CreateTest(ctx, test); err != nil {
		return nil, err
	}
	s.cacheTest(ctx, test)
	return test, nil
}

// GetTestByCode reads through the cache.
func (s *Service) GetTestByCode(ctx context.Context, code int) (*models.Test, error) {
	if s.cache != nil {
		if test, err := s.cache.GetTest(ctx, code); err == nil && test != nil {
			return test, nil
		}
	}

	test, err := s.repo.GetTestByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cacheTest(ctx, test)
	return test, nil
}

// OpenSession handles a code typed by a student. Every rejection is a
// sentinel error the bot translates into a reply.
func (s *Service) OpenSession(ctx context.Context, userID int64, code int) (*Opened, error) {
	test, err := s.GetTestByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !test.IsActive() {
		return nil, ErrTestClosed
	}

	answered, err := s.repo.HasAnswered(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, ErrAlreadyAnswered
	}

	session, err := s.repo.StartSession(ctx, userID, test.ID, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("User %d started test %d", userID, code)

	deadline, limited := test.Deadline(session.StartedAt)
	return &Opened{
		Test:      test,
		Session:   session,
		Deadline:  deadline,
		Unlimited: !limited,
	}, nil
}

// Submit scores a "<code>*<answers>" message and stores it exactly once.
func (s *Service) Submit(ctx context.Context, userID int64, text string) (*Submission, error) {
	code, raw, err := ParseSubmission(text)
	if err != nil {
		return nil, err
	}

	test, err := s.GetTestByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !test.IsActive() {
		return nil, ErrTestClosed
	}

	session, err := s.repo.GetSession(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if deadline, limited := test.Deadline(session.StartedAt); limited && now.After(deadline) {
		return nil, ErrTimeUp
	}

	answers, score, err := Evaluate(test.AnswerKey, raw)
	if err != nil {
		return nil, err
	}

	answered, err := s.repo.HasAnswered(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, ErrAlreadyAnswered
	}

	answer := &models.Answer{
		SessionID:   session.ID,
		UserID:      userID,
		Score:       score,
		Submitted:   answers,
		SubmittedAt: now,
	}
	if err := s.repo.SaveAnswer(ctx, answer); err != nil {
		return nil, err
	}
	log.Printf("User %d submitted test %d: %d/%d", userID, code, score, test.QuestionCount())

	s.publishParticipants(ctx, test)
	return &Submission{Test: test, Answers: answers, Score: score}, nil
}

func (s *Service) MyActiveTests(ctx context.Context, ownerID int64) ([]models.Test, error) {
	return s.repo.GetTestsByOwner(ctx, ownerID, true)
}

func (s *Service) TestsByOwner(ctx context.Context, ownerID int64) ([]models.Test, error) {
	return s.repo.GetTestsByOwner(ctx, ownerID, false)
}

func (s *Service) ParticipantCount(ctx context.Context, code int) (int64, error) {
	test, err := s.repo.GetTestByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return s.repo.CountParticipants(ctx, test.ID)
}

// AnswerDetails returns the key next to a participant's answers. The key
// stays hidden until the owner closes the test.
func (s *Service) AnswerDetails(ctx context.Context, code int, userID int64) (*models.AnswerDetails, error) {
	test, err := s.repo.GetTestByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if test.IsActive() {
		return nil, ErrResultsNotPublished
	}
	return s.repo.GetAnswerDetails(ctx, code, userID)
}

// Authorize allows the owner of a test and super-administrators.
func Authorize(test *models.Test, actorID int64, isAdmin bool) error {
	if isAdmin || test.OwnerID == actorID {
		return nil
	}
	return ErrNotOwner
}

// Results returns the ranking of a test, from the cache for closed tests.
func (s *Service) Results(ctx context.Context, code int) (*models.Test, []models.LeaderboardEntry, error) {
	test, err := s.repo.GetTestByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if s.cache != nil && !test.IsActive() {
		if entries, err := s.cache.GetResults(ctx, code); err == nil {
			return test, entries, nil
		}
	}

	rows, err := s.repo.GetResults(ctx, test.ID)
	if err != nil {
		return nil, nil, err
	}
	RankResults(rows)
	return test, BuildLeaderboard(rows, test.QuestionCount()), nil
}

// PurgeClosed deletes closed tests older than age.
func (s *Service) PurgeClosed(ctx context.Context, age time.Duration) (int, error) {
	codes, err := s.repo.PurgeClosedBefore(ctx, s.now().Add(-age))
	if err != nil {
		return 0, err
	}
	for _, code := range codes {
		s.forgetTest(ctx, code)
	}
	return len(codes), nil
}

func (s *Service) cacheTest(ctx context.Context, test *models.Test) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetTest(ctx, test); err != nil {
		log.Printf("Error caching test %d: %v", test.Code, err)
	}
}

// markClosed overwrites the cached copy of a test that was just closed.
// The entry is evicted when the write fails.
func (s *Service) markClosed(ctx context.Context, test *models.Test) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetTest(ctx, test); err != nil {
		log.Printf("Error caching closed test %d: %v", test.Code, err)
		s.forgetTest(ctx, test.Code)
	}
}

func (s *Service) forgetTest(ctx context.Context, code int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteTest(ctx, code); err != nil {
		log.Printf("Error evicting test %d from cache: %v", code, err)
	}
}

func (s *Service) publishParticipants(ctx context.Context, test *models.Test) {
	if s.events == nil {
		return
	}
	count, err := s.repo.CountParticipants(ctx, test.ID)
	if err != nil {
		log.Printf("Error counting participants of test %d: %v", test.Code, err)
		return
	}
	s.events.BroadcastMessage(Room(test.Code), "answer_submitted", map[string]interface{}{
		"code":         test.Code,
		"participants": count,
	})
}

// IsRejection reports whether err is an expected outcome of the student flow
// rather than a failure.
func IsRejection(err error) bool {
	var mismatch *CountMismatchError
	switch {
	case errors.As(err, &mismatch),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrTestNotFound),
		errors.Is(err, ErrTestClosed),
		errors.Is(err, ErrSessionExists),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrAlreadyAnswered),
		errors.Is(err, ErrTimeUp),
		errors.Is(err, ErrMalformedAnswer):
		return true
	}
	return false
}
