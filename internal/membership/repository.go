// internal/membership/repository.go
package membership

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smarttest/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// ContestSize is how many users the rating shows.
const ContestSize = 10

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Register creates the user on first contact and refreshes the name and
// status afterwards. The referrer is only recorded for new users.
func (r *Repository) Register(ctx context.Context, user *models.User) (bool, error) {
	isNew := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("id = ?", user.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			isNew = true
			user.Status = models.UserActive
			return tx.Create(user).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"username":  user.Username,
			"full_name": user.FullName,
			"status":    models.UserActive,
		}).Error
	})
	if err != nil {
		log.Printf("Error registering user %d: %v", user.ID, err)
		return false, err
	}
	if isNew {
		log.Printf("New user %d registered", user.ID)
	}
	return isNew, nil
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreditReferral marks the referral of userID as credited and increments the
// referrer's count. It returns the referrer, or 0 when there is nothing to
// credit.
func (r *Repository) CreditReferral(ctx context.Context, userID int64) (int64, error) {
	var referrer int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if user.ReferredByID == nil || user.ReferralCredited {
			return nil
		}

		result := tx.Model(&models.User{}).
			Where("id = ? AND referral_credited = ?", userID, false).
			Update("referral_credited", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", *user.ReferredByID).
			Update("referral_count", gorm.Expr("referral_count + 1")).Error; err != nil {
			return err
		}
		referrer = *user.ReferredByID
		return nil
	})
	if err != nil {
		log.Printf("Error crediting referral of user %d: %v", userID, err)
		return 0, err
	}
	return referrer, nil
}

func (r *Repository) ReferralCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("referral_count").
		Where("id = ?", userID).
		Scan(&count).Error
	return count, err
}

// ContestTop returns the users with the most referrals, best first.
func (r *Repository) ContestTop(ctx context.Context) ([]models.ReferralStat, error) {
	var stats []models.ReferralStat
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("full_name, referral_count").
		Where("referral_count > 0").
		Order("referral_count DESC").
		Limit(ContestSize).
		Scan(&stats).Error
	return stats, err
}

func (r *Repository) ResetReferrals(ctx context.Context) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("referral_count <> 0").
		Update("referral_count", 0).Error
}

func (r *Repository) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserActive).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserActive).
		Count(&count).Error
	return count, err
}

// MarkBlocked excludes a user from broadcasts until they write to the bot
// again.
func (r *Repository) MarkBlocked(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("status", models.UserBlocked).Error
}

// AddChannel inserts or refreshes a channel. It reports whether the channel
// is new.
func (r *Repository) AddChannel(ctx context.Context, channel *models.Channel) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Channel{}).Where("id = ?", channel.ID).Count(&count).Error; err != nil {
		return false, err
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "invite_link", "updated_at"}),
	}).Create(channel).Error
	if err != nil {
		log.Printf("Error saving channel %d: %v", channel.ID, err)
		return false, err
	}
	return count == 0, nil
}

func (r *Repository) GetChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).Order("created_at").Find(&channels).Error
	return channels, err
}

func (r *Repository) DeleteChannel(ctx context.Context, channelID int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Channel{}, channelID)
	return result.RowsAffected > 0, result.Error
}
