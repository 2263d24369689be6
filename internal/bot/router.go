package bot

import (
	"log"
	"strings"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/conversation"
	"smarttest/internal/exam"
	"smarttest/internal/keyboards"
)

// OnText routes a plain text message. Menu buttons always win and reset the
// conversation. Answer submissions are recognized in any state except while
// an admin composes a broadcast.
func (h *Handler) OnText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())

	if handler, ok := h.menuButton(c.Sender().ID, text); ok {
		h.clearState(c)
		return handler(c)
	}

	state := h.state(c)
	if _, composing := state.(conversation.AwaitingBroadcast); !composing && exam.IsSubmission(text) {
		return h.submitAnswers(c, text)
	}
	return h.dispatchText(c, state, text)
}

func (h *Handler) menuButton(userID int64, text string) (tele.HandlerFunc, bool) {
	switch text {
	case keyboards.BtnCreateTest:
		return h.StartCreation, true
	case keyboards.BtnSolveTest:
		return h.StartSolving, true
	case keyboards.BtnMyTests:
		return h.MyTests, true
	case keyboards.BtnInviteFriend:
		return h.InviteFriend, true
	case keyboards.BtnRating:
		return h.Rating, true
	}

	if !h.isAdmin(userID) {
		return nil, false
	}
	switch text {
	case keyboards.BtnAdminPanel:
		return h.AdminPanel, true
	case keyboards.BtnBack:
		return h.BackToMenu, true
	case keyboards.BtnAddChannel:
		return h.AskAddChannel, true
	case keyboards.BtnDelChannel:
		return h.AskDelChannel, true
	case keyboards.BtnChannelList:
		return h.ChannelList, true
	case keyboards.BtnStartContest:
		return h.StartContest, true
	case keyboards.BtnClearContest:
		return h.ClearContest, true
	case keyboards.BtnBroadcast:
		return h.StartBroadcast, true
	}
	return nil, false
}

func (h *Handler) dispatchText(c tele.Context, state conversation.State, text string) error {
	switch s := state.(type) {
	case conversation.AwaitingCode:
		return h.enterCode(c, text)
	case conversation.AwaitingQuestionFile:
		return c.Send(badQuestionFileText)
	case conversation.AwaitingAnswerKey:
		return h.enterAnswerKey(c, s, text)
	case conversation.AwaitingDuration:
		return c.Send(pickDurationText)
	case conversation.AwaitingChannel:
		h.clearState(c)
		return h.addChannel(c, text)
	case conversation.AwaitingChannelRemoval:
		h.clearState(c)
		return h.delChannel(c, text)
	case conversation.AwaitingBroadcast:
		return h.composeBroadcast(c)
	case conversation.ConfirmingBroadcast:
		return c.Send(confirmButtonsText)
	}
	return c.Send(useMenuText)
}

// OnMedia handles every non-text message.
func (h *Handler) OnMedia(c tele.Context) error {
	switch s := h.state(c).(type) {
	case conversation.AwaitingQuestionFile:
		return h.receiveQuestionFile(c)
	case conversation.AwaitingBroadcast:
		return h.composeBroadcast(c)
	case conversation.Idle:
		return nil
	default:
		log.Printf("Unexpected media from user %d in state %s", c.Sender().ID, s.Kind())
		return c.Send(useMenuText)
	}
}

// OnCallback routes inline button presses by their data.
func (h *Handler) OnCallback(c tele.Context) error {
	data := c.Callback().Data

	switch data {
	case keyboards.CheckSubscription:
		return h.CheckSubscription(c)
	case keyboards.BackToTestList:
		return h.backToTestList(c)
	case keyboards.BroadcastSend:
		return h.sendBroadcast(c)
	case keyboards.BroadcastCancel:
		return h.cancelBroadcast(c)
	}

	routes := []struct {
		prefix string
		handle func(tele.Context, int) error
	}{
		{keyboards.DurationPrefix, h.chooseDuration},
		{keyboards.ViewTestPrefix, h.viewTest},
		{keyboards.ParticipantsPrefix, h.participants},
		{keyboards.ConfirmClosePrefix, h.confirmClose},
		{keyboards.CloseTestPrefix, h.closeTest},
		{keyboards.ShowErrorsPrefix, h.showMistakes},
	}
	for _, r := range routes {
		if !strings.HasPrefix(data, r.prefix) {
			continue
		}
		n, ok := keyboards.CodeFromData(data, r.prefix)
		if !ok {
			return h.alert(c, notFoundAlert)
		}
		return r.handle(c, n)
	}

	log.Printf("Unknown callback %q from user %d", data, c.Sender().ID)
	return c.Respond()
}
