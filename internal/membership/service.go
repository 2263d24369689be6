// internal/membership/service.go
package membership

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/models"
	"smarttest/internal/notify"
)

// MemberChecker looks up a user's status in a chat.
type MemberChecker interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

type Service struct {
	repo    *Repository
	members MemberChecker
	sender  notify.Sender
}

func NewService(repo *Repository, members MemberChecker, sender notify.Sender) *Service {
	return &Service{repo: repo, members: members, sender: sender}
}

// Register records a user seen by the bot. referrerID is ignored when it is
// zero or the user themselves.
func (s *Service) Register(ctx context.Context, sender *tele.User, referrerID int64) (bool, error) {
	user := &models.User{
		ID:       sender.ID,
		Username: sender.Username,
		FullName: FullName(sender),
	}
	if referrerID != 0 && referrerID != sender.ID {
		user.ReferredByID = &referrerID
	}
	return s.repo.Register(ctx, user)
}

// IsSubscribed reports whether userID is a member of every mandatory
// channel. Any lookup failure counts as not subscribed.
func (s *Service) IsSubscribed(ctx context.Context, userID int64) bool {
	channels, err := s.repo.GetChannels(ctx)
	if err != nil {
		log.Printf("Error loading channels for subscription check: %v", err)
		return false
	}

	for _, ch := range channels {
		member, err := s.members.ChatMemberOf(tele.ChatID(ch.ID), tele.ChatID(userID))
		if err != nil {
			log.Printf("Subscription check error for user %d in channel %d: %v", userID, ch.ID, err)
			return false
		}
		if !IsMemberRole(member.Role) {
			log.Printf("User %d is not subscribed to channel %d: %s", userID, ch.ID, member.Role)
			return false
		}
	}
	return true
}

func IsMemberRole(role tele.MemberStatus) bool {
	switch role {
	case tele.Member, tele.Administrator, tele.Creator:
		return true
	}
	return false
}

func (s *Service) Channels(ctx context.Context) ([]models.Channel, error) {
	return s.repo.GetChannels(ctx)
}

// GrantReferralBonus credits the referrer of userID once and tells them.
func (s *Service) GrantReferralBonus(ctx context.Context, userID int64) {
	referrer, err := s.repo.CreditReferral(ctx, userID)
	if err != nil || referrer == 0 {
		return
	}

	name := "ID: " + strconv.FormatInt(userID, 10)
	if user, err := s.repo.GetUser(ctx, userID); err == nil && user.FullName != "" {
		name = user.FullName
	}
	log.Printf("Referral of user %d credited to %d", userID, referrer)

	text := fmt.Sprintf("🎉 Congratulations! <b>%s</b> joined the bot through your invitation.\n\n+1 point has been added to your score!", name)
	if _, err := s.sender.Send(tele.ChatID(referrer), text); err != nil {
		log.Printf("Error notifying referrer %d: %v", referrer, err)
	}
}

func (s *Service) ReferralCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.ReferralCount(ctx, userID)
}

func (s *Service) ContestTop(ctx context.Context) ([]models.ReferralStat, error) {
	return s.repo.ContestTop(ctx)
}

func (s *Service) ResetContest(ctx context.Context) error {
	if err := s.repo.ResetReferrals(ctx); err != nil {
		log.Printf("Error resetting referral counts: %v", err)
		return err
	}
	log.Printf("Referral contest reset")
	return nil
}

// FullName joins the first and last name of a Telegram user.
func FullName(u *tele.User) string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ReferralLink is the deep link that registers the caller as referrer.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}
