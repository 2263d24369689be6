package bot

import (
	"errors"
	"log"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/auth"
	"smarttest/internal/keyboards"
	"smarttest/internal/membership"
)

// Start registers the user, remembering who referred them, and either
// welcomes them or asks them to join the mandatory channels.
func (h *Handler) Start(c tele.Context) error {
	h.clearState(c)
	user := c.Sender()

	referrer := parseReferrer(c.Message().Payload)
	isNew, err := h.members.Register(h.ctx, user, referrer)
	if err != nil {
		log.Printf("Error registering user %d: %v", user.ID, err)
	}

	if h.isAdmin(user.ID) || h.members.IsSubscribed(h.ctx, user.ID) {
		if isNew {
			h.members.GrantReferralBonus(h.ctx, user.ID)
		}
		return h.welcome(c)
	}

	channels, err := h.members.Channels(h.ctx)
	if err != nil {
		log.Printf("Error loading channels: %v", err)
	}
	return c.Send(membership.SubscribeText, keyboards.Subscribe(channels))
}

// parseReferrer reads the deep-link payload of /start. Anything but a
// positive id is ignored.
func parseReferrer(payload string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (h *Handler) welcome(c tele.Context) error {
	user := c.Sender()
	return c.Send(welcomeText(membership.FullName(user)), keyboards.MainMenu(h.isAdmin(user.ID)))
}

// CheckSubscription is the recheck button under the subscribe prompt.
func (h *Handler) CheckSubscription(c tele.Context) error {
	userID := c.Sender().ID
	if !h.members.IsSubscribed(h.ctx, userID) {
		return h.alert(c, notSubscribedAlert)
	}

	h.members.GrantReferralBonus(h.ctx, userID)
	if err := c.Delete(); err != nil {
		log.Printf("Error deleting subscribe prompt: %v", err)
	}
	if err := h.welcome(c); err != nil {
		return err
	}
	return c.Respond()
}

func (h *Handler) Help(c tele.Context) error {
	return c.Send(helpText(h.isAdmin(c.Sender().ID)))
}

func (h *Handler) InviteFriend(c tele.Context) error {
	userID := c.Sender().ID
	count, err := h.members.ReferralCount(h.ctx, userID)
	if err != nil {
		log.Printf("Error loading referral count of %d: %v", userID, err)
	}
	link := membership.ReferralLink(h.username, userID)
	return c.Send(referralText(count), keyboards.Share(link))
}

func (h *Handler) Rating(c tele.Context) error {
	stats, err := h.members.ContestTop(h.ctx)
	if err != nil {
		log.Printf("Error loading contest rating: %v", err)
		return c.Send(genericFailureText)
	}
	return c.Send(ratingText(stats))
}

// Password stores the dashboard password of the caller. The command message
// is deleted so the secret does not stay in the chat.
func (h *Handler) Password(c tele.Context) error {
	secret := strings.TrimSpace(c.Message().Payload)
	if secret == "" {
		return c.Send(passwordUsageText)
	}
	if err := c.Delete(); err != nil {
		log.Printf("Error deleting password message: %v", err)
	}

	userID := c.Sender().ID
	if err := h.auth.SetPassword(h.ctx, userID, secret); err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return c.Send("❌ The password must be at least " + strconv.Itoa(auth.MinPasswordLength) + " characters long.")
		}
		log.Printf("Error setting dashboard password of %d: %v", userID, err)
		return c.Send(genericFailureText)
	}
	return c.Send(passwordSetText(userID))
}
