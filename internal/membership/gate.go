package membership

import (
	"context"
	"log"
	"strings"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/keyboards"
)

const (
	SubscribeText  = "❗️ To use the bot, please join the channels below and press «✅ I joined, check»."
	SubscribeAlert = "❗️ Please join the channels to use the bot."
)

// Gate blocks every update from private chats until the sender has joined
// all mandatory channels. /start and the recheck button always pass.
type Gate struct {
	ctx     context.Context
	svc     *Service
	isAdmin func(int64) bool
}

// NewGate builds a gate whose lookups are bound to ctx.
func NewGate(ctx context.Context, svc *Service, isAdmin func(int64) bool) *Gate {
	return &Gate{ctx: ctx, svc: svc, isAdmin: isAdmin}
}

// Middleware is a telebot middleware.
func (g *Gate) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if g.bypass(c) {
			return next(c)
		}

		if g.svc.IsSubscribed(g.ctx, c.Sender().ID) {
			return next(c)
		}

		channels, err := g.svc.Channels(g.ctx)
		if err != nil {
			log.Printf("Error loading channels for gate: %v", err)
		}
		if err == nil && len(channels) == 0 {
			return next(c)
		}

		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: SubscribeAlert, ShowAlert: true})
		}
		return c.Send(SubscribeText, keyboards.Subscribe(channels))
	}
}

func (g *Gate) bypass(c tele.Context) bool {
	chat := c.Chat()
	if chat == nil || chat.Type != tele.ChatPrivate || c.Sender() == nil {
		return true
	}
	if g.isAdmin(c.Sender().ID) {
		return true
	}
	if cb := c.Callback(); cb != nil {
		return cb.Data == keyboards.CheckSubscription
	}
	if msg := c.Message(); msg != nil {
		return msg.Text == "/start" || strings.HasPrefix(msg.Text, "/start ")
	}
	return false
}
