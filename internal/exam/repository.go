// internal/exam/repository.go
package exam

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smarttest/internal/models"
)

// Store is the persistence the exam service needs.
type Store interface {
	CreateTest(ctx context.Context, test *models.Test) error
	GetTestByCode(ctx context.Context, code int) (*models.Test, error)
	GetTestsByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]models.Test, error)
	CloseTest(ctx context.Context, code int) error
	StartSession(ctx context.Context, userID int64, testID uint, at time.Time) (*models.Session, error)
	GetSession(ctx context.Context, userID int64, testID uint) (*models.Session, error)
	HasAnswered(ctx context.Context, userID int64, testID uint) (bool, error)
	SaveAnswer(ctx context.Context, answer *models.Answer) error
	GetResults(ctx context.Context, testID uint) ([]models.ResultRow, error)
	CountParticipants(ctx context.Context, testID uint) (int64, error)
	GetAnswerDetails(ctx context.Context, code int, userID int64) (*models.AnswerDetails, error)
	DeleteTest(ctx context.Context, testID uint) error
	PurgeClosedBefore(ctx context.Context, before time.Time) ([]int, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTest assigns the next free code (previous maximum + 1, starting at
// 1001) and inserts the test in one transaction.
func (r *Repository) CreateTest(ctx context.Context, test *models.Test) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		row := tx.Model(&models.Test{}).Select("COALESCE(MAX(code), 0)").Row()
		if err := row.Scan(&last); err != nil {
			return err
		}

		test.Code = models.FirstTestCode
		if last >= models.FirstTestCode {
			test.Code = int(last) + 1
		}
		if test.Status == "" {
			test.Status = models.TestActive
		}
		return tx.Create(test).Error
	})
	if err != nil {
		log.Printf("Error creating test: %v", err)
		return err
	}
	log.Printf("Created test %d for owner %d", test.Code, test.OwnerID)
	return nil
}

func (r *Repository) GetTestByCode(ctx context.Context, code int) (*models.Test, error) {
	var test models.Test
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		log.Printf("Error getting test by code %d: %v", code, err)
		return nil, err
	}
	return &test, nil
}

func (r *Repository) GetTestsByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]models.Test, error) {
	var tests []models.Test
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		query = query.Where("status = ?", models.TestActive)
	}
	if err := query.Order("id DESC").Find(&tests).Error; err != nil {
		log.Printf("Error getting tests for owner %d: %v", ownerID, err)
		return nil, err
	}
	return tests, nil
}

func (r *Repository) CloseTest(ctx context.Context, code int) error {
	result := r.db.WithContext(ctx).Model(&models.Test{}).
		Where("code = ?", code).
		Update("status", models.TestClosed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTestNotFound
	}
	return nil
}

// StartSession inserts a session unless one already exists for the pair, in
// which case ErrSessionExists is returned and the existing row is untouched.
func (r *Repository) StartSession(ctx context.Context, userID int64, testID uint, at time.Time) (*models.Session, error) {
	session := &models.Session{
		UserID:    userID,
		TestID:    testID,
		StartedAt: at,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrSessionExists
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrSessionExists
	}
	return session, nil
}

func (r *Repository) GetSession(ctx context.Context, userID int64, testID uint) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *Repository) HasAnswered(ctx context.Context, userID int64, testID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Joins("JOIN user_test_sessions uts ON uts.id = user_answers.session_id").
		Where("uts.user_id = ? AND uts.test_id = ?", userID, testID).
		Count(&count).Error
	return count > 0, err
}

// SaveAnswer is a guarded insert: a second answer for the same session is
// reported as ErrAlreadyAnswered.
func (r *Repository) SaveAnswer(ctx context.Context, answer *models.Answer) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(answer)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrAlreadyAnswered
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyAnswered
	}
	return nil
}

// GetResults returns every participant of a test; callers rank them.
func (r *Repository) GetResults(ctx context.Context, testID uint) ([]models.ResultRow, error) {
	var rows []models.ResultRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT ua.user_id, COALESCE(u.full_name, '') AS full_name, ua.score,
		       uts.started_at, ua.submitted_at
		FROM user_answers ua
		JOIN user_test_sessions uts ON ua.session_id = uts.id
		LEFT JOIN users u ON ua.user_id = u.id
		WHERE uts.test_id = ?
		ORDER BY ua.score DESC, ua.id ASC
	`, testID).Scan(&rows).Error
	if err != nil {
		log.Printf("Error getting results for test %d: %v", testID, err)
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CountParticipants(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Joins("JOIN user_test_sessions uts ON uts.id = user_answers.session_id").
		Where("uts.test_id = ?", testID).
		Count(&count).Error
	return count, err
}

func (r *Repository) GetAnswerDetails(ctx context.Context, code int, userID int64) (*models.AnswerDetails, error) {
	var details models.AnswerDetails
	result := r.db.WithContext(ctx).Raw(`
		SELECT t.answer_key, ua.submitted
		FROM tests t
		JOIN user_test_sessions uts ON t.id = uts.test_id
		JOIN user_answers ua ON uts.id = ua.session_id
		WHERE t.code = ? AND uts.user_id = ?
	`, code, userID).Scan(&details)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAnswerNotFound
	}
	return &details, nil
}

// DeleteTest removes a test with its sessions and answers.
func (r *Repository) DeleteTest(ctx context.Context, testID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTestTx(tx, testID)
	})
}

func deleteTestTx(tx *gorm.DB, testID uint) error {
	sessions := tx.Model(&models.Session{}).Select("id").Where("test_id = ?", testID)
	if err := tx.Where("session_id IN (?)", sessions).Delete(&models.Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("test_id = ?", testID).Delete(&models.Session{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Test{}, testID).Error
}

// PurgeClosedBefore deletes closed tests created before the threshold and
// returns their codes.
func (r *Repository) PurgeClosedBefore(ctx context.Context, before time.Time) ([]int, error) {
	var codes []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []models.Test
		if err := tx.Where("status = ? AND created_at < ?", models.TestClosed, before).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, test := range stale {
			if err := deleteTestTx(tx, test.ID); err != nil {
				return err
			}
			codes = append(codes, test.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}
