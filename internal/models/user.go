// internal/models/user.go
package models

import "time"

const (
	UserActive  = "active"
	UserBlocked = "blocked"
)

// User is keyed by the Telegram user id.
type User struct {
	ID            int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	ReferredByID  *int64 `json:"referred_by_id,omitempty" gorm:"index"`
	ReferralCount int    `json:"referral_count" gorm:"default:0"`
	Status        string `json:"status" gorm:"index;default:active"`
	PasswordHash  string `json:"-"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// ReferralCredited is set once the referrer has been rewarded for this user.
	ReferralCredited bool `json:"-" gorm:"default:false"`
}

// Channel is a mandatory-subscription channel. Public channels carry a
// username, private ones an invite link.
type Channel struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username   string    `json:"username"`
	InviteLink string    `json:"invite_link"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Link returns the URL a user can follow to join the channel, or "".
func (c Channel) Link() string {
	if c.Username != "" {
		return "https://t.me/" + c.Username
	}
	return c.InviteLink
}

type ReferralStat struct {
	FullName      string `json:"full_name"`
	ReferralCount int    `json:"referral_count"`
}
