package bot

import (
	"errors"
	"log"
	"strings"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/admin"
	"smarttest/internal/conversation"
	"smarttest/internal/keyboards"
	"smarttest/internal/notify"
)

func (h *Handler) AdminPanel(c tele.Context) error {
	return c.Send(adminPanelText, keyboards.AdminPanel())
}

func (h *Handler) BackToMenu(c tele.Context) error {
	return c.Send(backToMenuText, keyboards.MainMenu(true))
}

func (h *Handler) AskAddChannel(c tele.Context) error {
	h.setState(c, conversation.AwaitingChannel{})
	return c.Send(addChannelHelpText)
}

func (h *Handler) AskDelChannel(c tele.Context) error {
	h.setState(c, conversation.AwaitingChannelRemoval{})
	return c.Send(delChannelHelpText)
}

// AddChannelCommand handles "/add @handle".
func (h *Handler) AddChannelCommand(c tele.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return nil
	}
	h.clearState(c)
	ref := strings.TrimSpace(c.Message().Payload)
	if ref == "" {
		return c.Send(addChannelHelpText)
	}
	return h.addChannel(c, ref)
}

// DelChannelCommand handles "/del @handle" and "/del <id>".
func (h *Handler) DelChannelCommand(c tele.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return nil
	}
	h.clearState(c)
	ref := strings.TrimSpace(c.Message().Payload)
	if ref == "" {
		return c.Send(delChannelHelpText)
	}
	return h.delChannel(c, ref)
}

func (h *Handler) addChannel(c tele.Context, ref string) error {
	added, err := h.admin.AddChannel(h.ctx, strings.TrimSpace(ref))
	if err != nil {
		if !errors.Is(err, admin.ErrBadChannelRef) {
			log.Printf("Error adding channel %q: %v", ref, err)
		}
		return c.Send(channelAddFailedText(err))
	}
	return c.Send(channelAddedText(added))
}

func (h *Handler) delChannel(c tele.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if err := h.admin.RemoveChannel(h.ctx, ref); err != nil {
		if !errors.Is(err, admin.ErrChannelNotListed) && !errors.Is(err, admin.ErrBadChannelRef) {
			log.Printf("Error removing channel %q: %v", ref, err)
		}
		return c.Send(channelRemoveFailedText(err))
	}
	return c.Send(channelRemovedText(ref))
}

func (h *Handler) ChannelList(c tele.Context) error {
	infos, err := h.admin.ListChannels(h.ctx)
	if err != nil {
		log.Printf("Error listing channels: %v", err)
		return c.Send(genericFailureText)
	}
	return c.Send(channelListText(infos), tele.NoPreview)
}

func (h *Handler) StartContest(c tele.Context) error {
	if err := h.members.ResetContest(h.ctx); err != nil {
		return c.Send(genericFailureText)
	}
	return c.Send(contestStartedText)
}

func (h *Handler) ClearContest(c tele.Context) error {
	if err := h.members.ResetContest(h.ctx); err != nil {
		return c.Send(genericFailureText)
	}
	return c.Send(contestClearedText)
}

func (h *Handler) StartBroadcast(c tele.Context) error {
	h.setState(c, conversation.AwaitingBroadcast{})
	return c.Send(askBroadcastText)
}

// composeBroadcast remembers the admin's message and asks for confirmation.
func (h *Handler) composeBroadcast(c tele.Context) error {
	msg := c.Message()
	h.setState(c, conversation.ConfirmingBroadcast{ChatID: msg.Chat.ID, MessageID: msg.ID})

	users, err := h.admin.AudienceSize(h.ctx)
	if err != nil {
		log.Printf("Error counting active users: %v", err)
	}
	return c.Send(confirmBroadcastText(users), keyboards.ConfirmBroadcast())
}

func (h *Handler) sendBroadcast(c tele.Context) error {
	s, ok := h.state(c).(conversation.ConfirmingBroadcast)
	if !ok || !h.isAdmin(c.Sender().ID) {
		return h.alert(c, broadcastLostText)
	}
	h.clearState(c)
	if err := c.Respond(&tele.CallbackResponse{Text: "Sending..."}); err != nil {
		log.Printf("Error answering broadcast callback: %v", err)
	}

	status := c.Message()
	if err := c.Edit(broadcastStartText); err != nil {
		log.Printf("Error editing broadcast status: %v", err)
	}

	progress := notify.NewProgress(h.editor, status)
	result, err := h.admin.Broadcast(h.ctx, s.ChatID, s.MessageID, progress.Report)
	if err != nil {
		log.Printf("Error broadcasting message %d: %v", s.MessageID, err)
		return c.Send(broadcastLostText, keyboards.AdminPanel())
	}

	if err := c.Delete(); err != nil {
		log.Printf("Error deleting broadcast status: %v", err)
	}
	return c.Send(broadcastDoneText(result), keyboards.AdminPanel())
}

func (h *Handler) cancelBroadcast(c tele.Context) error {
	h.clearState(c)
	if err := c.Edit(broadcastCancelText); err != nil {
		log.Printf("Error editing cancelled broadcast: %v", err)
	}
	return h.alert(c, "Cancelled.")
}
