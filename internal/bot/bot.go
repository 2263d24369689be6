// Package bot wires the Telegram updates to the exam, membership and admin
// services.
package bot

import (
	"context"
	"log"
	"time"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/admin"
	"smarttest/internal/auth"
	"smarttest/internal/config"
	"smarttest/internal/conversation"
	"smarttest/internal/exam"
	"smarttest/internal/membership"
	"smarttest/internal/notify"
)

// NewBot creates the Telegram client. Updates are handled one at a time.
func NewBot(cfg *config.Config) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:       cfg.BotToken,
		Poller:      &tele.LongPoller{Timeout: 10 * time.Second},
		ParseMode:   tele.ModeHTML,
		Synchronous: true,
		OnError: func(err error, c tele.Context) {
			if c != nil && c.Sender() != nil {
				log.Printf("Error handling update from %d: %v", c.Sender().ID, err)
				return
			}
			log.Printf("Bot error: %v", err)
		},
	})
}

type Deps struct {
	// Context bounds long running work such as broadcasts.
	Context  context.Context
	Exams    *exam.Service
	Results  *exam.Results
	Members  *membership.Service
	Admin    *admin.Service
	Auth     *auth.Service
	States   conversation.Store
	Editor   notify.Editor
	IsAdmin  func(int64) bool
	Location *time.Location
}

type Handler struct {
	ctx      context.Context
	exams    *exam.Service
	results  *exam.Results
	members  *membership.Service
	admin    *admin.Service
	auth     *auth.Service
	states   conversation.Store
	editor   notify.Editor
	isAdmin  func(int64) bool
	loc      *time.Location
	username string
}

func New(d Deps) *Handler {
	ctx := d.Context
	if ctx == nil {
		ctx = context.Background()
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		ctx:     ctx,
		exams:   d.Exams,
		results: d.Results,
		members: d.Members,
		admin:   d.Admin,
		auth:    d.Auth,
		states:  d.States,
		editor:  d.Editor,
		isAdmin: d.IsAdmin,
		loc:     loc,
	}
}

// Register installs the subscription gate and every route on b.
func (h *Handler) Register(b *tele.Bot, gate *membership.Gate) {
	if b.Me != nil {
		h.username = b.Me.Username
	}

	b.Use(gate.Middleware)

	b.Handle("/start", h.Start)
	b.Handle("/help", h.Help)
	b.Handle("/add", h.AddChannelCommand)
	b.Handle("/del", h.DelChannelCommand)
	b.Handle("/password", h.Password)

	b.Handle(tele.OnText, h.OnText)
	b.Handle(tele.OnCallback, h.OnCallback)

	// Question files arrive as photos or documents; a broadcast can be any
	// kind of message.
	for _, event := range []string{
		tele.OnPhoto, tele.OnDocument, tele.OnVideo, tele.OnAnimation,
		tele.OnAudio, tele.OnVoice, tele.OnVideoNote, tele.OnSticker,
	} {
		b.Handle(event, h.OnMedia)
	}
}

func (h *Handler) state(c tele.Context) conversation.State {
	s, err := h.states.Get(h.ctx, c.Sender().ID)
	if err != nil {
		log.Printf("Error loading state of user %d: %v", c.Sender().ID, err)
		return conversation.Idle{}
	}
	return s
}

func (h *Handler) setState(c tele.Context, s conversation.State) {
	if err := h.states.Set(h.ctx, c.Sender().ID, s); err != nil {
		log.Printf("Error saving state of user %d: %v", c.Sender().ID, err)
	}
}

func (h *Handler) clearState(c tele.Context) {
	if err := h.states.Clear(h.ctx, c.Sender().ID); err != nil {
		log.Printf("Error clearing state of user %d: %v", c.Sender().ID, err)
	}
}

func (h *Handler) alert(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}
