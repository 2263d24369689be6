// internal/auth/repository.go
package auth

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"smarttest/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("id = ?", userID).First(&user)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Printf("Error finding user %d: %v", userID, result.Error)
		}
		return nil, result.Error
	}
	return &user, nil
}

// SetPasswordHash stores a dashboard password for an existing user.
func (r *Repository) SetPasswordHash(ctx context.Context, userID int64, hash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
