// Package admin implements the super-administrator tools: mandatory channel
// management and broadcasts.
package admin

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/models"
	"smarttest/internal/notify"
)

var (
	ErrBadChannelRef    = errors.New("channel reference must look like @channel")
	ErrNothingToSend    = errors.New("broadcast message is missing")
	ErrChannelNotListed = errors.New("channel is not in the list")
)

// ProgressEvery is how often the broadcast status message is refreshed.
const ProgressEvery = 25

// ChatAPI is the part of the bot API used for channel administration.
type ChatAPI interface {
	ChatByUsername(name string) (*tele.Chat, error)
	ChatByID(id int64) (*tele.Chat, error)
	CreateInviteLink(chat tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error)
}

// Store is the persistence admin tools need.
type Store interface {
	AddChannel(ctx context.Context, channel *models.Channel) (bool, error)
	GetChannels(ctx context.Context) ([]models.Channel, error)
	DeleteChannel(ctx context.Context, channelID int64) (bool, error)
	ActiveUserIDs(ctx context.Context) ([]int64, error)
	ActiveCount(ctx context.Context) (int64, error)
	MarkBlocked(ctx context.Context, userID int64) error
}

type Service struct {
	store  Store
	chats  ChatAPI
	copier notify.Copier
	pace   time.Duration
}

func NewService(store Store, chats ChatAPI, copier notify.Copier, pace time.Duration) *Service {
	return &Service{store: store, chats: chats, copier: copier, pace: pace}
}

// AddedChannel describes the outcome of AddChannel.
type AddedChannel struct {
	Title   string
	Public  bool
	Created bool
}

// AddChannel resolves "@handle" and stores it. Private channels get a fresh
// invite link, which requires the bot to be an admin there.
func (s *Service) AddChannel(ctx context.Context, ref string) (*AddedChannel, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "@") || len(ref) < 2 {
		return nil, ErrBadChannelRef
	}

	chat, err := s.chats.ChatByUsername(ref)
	if err != nil {
		log.Printf("Error resolving channel %s: %v", ref, err)
		return nil, err
	}

	channel := &models.Channel{ID: chat.ID}
	public := chat.Username != ""
	if public {
		channel.Username = chat.Username
	} else {
		link, err := s.chats.CreateInviteLink(chat, &tele.ChatInviteLink{})
		if err != nil {
			log.Printf("Error creating invite link for %d: %v", chat.ID, err)
			return nil, err
		}
		channel.InviteLink = link.InviteLink
	}

	created, err := s.store.AddChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	log.Printf("Channel %d (%s) saved, new=%v", chat.ID, chat.Title, created)
	return &AddedChannel{Title: chat.Title, Public: public, Created: created}, nil
}

// RemoveChannel accepts a numeric id or an @handle.
func (s *Service) RemoveChannel(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrBadChannelRef
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		if !strings.HasPrefix(ref, "@") {
			return ErrBadChannelRef
		}
		chat, err := s.chats.ChatByUsername(ref)
		if err != nil {
			log.Printf("Error resolving channel %s: %v", ref, err)
			return err
		}
		id = chat.ID
	}

	deleted, err := s.store.DeleteChannel(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrChannelNotListed
	}
	log.Printf("Channel %d removed", id)
	return nil
}

// ChannelInfo is a stored channel with its current title, if the bot can
// still see it.
type ChannelInfo struct {
	models.Channel
	Title     string
	Reachable bool
}

func (s *Service) ListChannels(ctx context.Context) ([]ChannelInfo, error) {
	channels, err := s.store.GetChannels(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]ChannelInfo, len(channels))
	for i, ch := range channels {
		infos[i] = ChannelInfo{Channel: ch}
		chat, err := s.chats.ChatByID(ch.ID)
		if err != nil {
			log.Printf("Channel %d unreachable: %v", ch.ID, err)
			continue
		}
		infos[i].Title = chat.Title
		infos[i].Reachable = true
	}
	return infos, nil
}

func (s *Service) AudienceSize(ctx context.Context) (int64, error) {
	return s.store.ActiveCount(ctx)
}

// Broadcast copies one message to every active user. Users who blocked the
// bot are marked so later broadcasts skip them.
func (s *Service) Broadcast(ctx context.Context, fromChat int64, messageID int, onProgress func(done, total int)) (notify.Result, error) {
	if messageID == 0 {
		return notify.Result{}, ErrNothingToSend
	}

	ids, err := s.store.ActiveUserIDs(ctx)
	if err != nil {
		return notify.Result{}, err
	}
	log.Printf("Broadcast of message %d from %d to %d users started", messageID, fromChat, len(ids))

	source := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChat}
	result := notify.Bulk(ctx, ids, func(_ context.Context, id int64) error {
		_, err := s.copier.Copy(tele.ChatID(id), source)
		return err
	}, notify.Options{
		Pace:          s.pace,
		ProgressEvery: ProgressEvery,
		OnProgress:    onProgress,
		Label:         "broadcast",
		OnFailure: func(i int, err error) {
			if !notify.IsUnreachable(err) {
				return
			}
			if err := s.store.MarkBlocked(ctx, ids[i]); err != nil {
				log.Printf("Error marking user %d blocked: %v", ids[i], err)
			}
		},
	})

	log.Printf("Broadcast finished: %d sent, %d failed", result.Sent, result.Failed)
	return result, nil
}
