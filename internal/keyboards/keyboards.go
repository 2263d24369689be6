// Package keyboards renders the reply and inline keyboards of the bot.
package keyboards

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/models"
)

// Main menu buttons.
const (
	BtnCreateTest   = "✍️ Create test"
	BtnSolveTest    = "✅ Solve test"
	BtnMyTests      = "📋 My tests"
	BtnInviteFriend = "🔗 Invite a friend"
	BtnRating       = "🏆 Rating"
	BtnAdminPanel   = "👑 Admin panel"
)

// Admin panel buttons.
const (
	BtnAddChannel   = "➕ Add channel"
	BtnDelChannel   = "🗑️ Delete channel"
	BtnChannelList  = "📋 Channel list"
	BtnStartContest = "🚀 Start contest"
	BtnClearContest = "🔄 Clear contest"
	BtnBroadcast    = "📢 Broadcast"
	BtnBack         = "⬅️ Back"
)

// Callback data values and prefixes.
const (
	CheckSubscription = "check_subscription"
	BroadcastSend     = "confirm_broadcast_send"
	BroadcastCancel   = "confirm_broadcast_cancel"
	BackToTestList    = "back_to_test_list"

	DurationPrefix     = "duration_"
	ViewTestPrefix     = "view_test_"
	ParticipantsPrefix = "participants_"
	ConfirmClosePrefix = "confirm_close_"
	CloseTestPrefix    = "close_test_"
	ShowErrorsPrefix   = "show_errors_"
)

// Durations offered when a test is created, in minutes. 0 is unlimited.
var Durations = []int{30, 60, 90}

func replyRow(labels ...string) []tele.ReplyButton {
	row := make([]tele.ReplyButton, len(labels))
	for i, l := range labels {
		row[i] = tele.ReplyButton{Text: l}
	}
	return row
}

func dataButton(text, data string) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: data}
}

func MainMenu(isAdmin bool) *tele.ReplyMarkup {
	rows := [][]tele.ReplyButton{
		replyRow(BtnCreateTest, BtnSolveTest),
		replyRow(BtnMyTests, BtnInviteFriend),
		replyRow(BtnRating),
	}
	if isAdmin {
		rows = append(rows, replyRow(BtnAdminPanel))
	}
	return &tele.ReplyMarkup{
		ReplyKeyboard:  rows,
		ResizeKeyboard: true,
		Placeholder:    "Choose a section...",
	}
}

func AdminPanel() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		ReplyKeyboard: [][]tele.ReplyButton{
			replyRow(BtnAddChannel, BtnDelChannel),
			replyRow(BtnChannelList),
			replyRow(BtnStartContest, BtnClearContest),
			replyRow(BtnBroadcast),
			replyRow(BtnBack),
		},
		ResizeKeyboard: true,
		Placeholder:    "Choose an admin command...",
	}
}

func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Subscribe lists a join button per channel that has a link, followed by the
// recheck button.
func Subscribe(channels []models.Channel) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	for i, ch := range channels {
		link := ch.Link()
		if link == "" {
			continue
		}
		rows = append(rows, []tele.InlineButton{{
			Text: fmt.Sprintf("📢 Join channel %d", i+1),
			URL:  link,
		}})
	}
	rows = append(rows, []tele.InlineButton{dataButton("✅ I joined, check", CheckSubscription)})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func Share(referralLink string) *tele.ReplyMarkup {
	text := "Hi! 👋\n\n" +
		"I found SmartTest, a bot where teachers create tests and students solve them in minutes.\n\n" +
		"Invite friends, climb the rating and win prizes! 🚀\n\n" +
		"Join through the link below 👇"
	shareURL := "https://t.me/share/url?url=" + url.QueryEscape(text+"\n\n"+referralLink)
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		{Text: "🚀 Share with friends", URL: shareURL},
	}}}
}

func TestDuration() *tele.ReplyMarkup {
	row := make([]tele.InlineButton, 0, len(Durations))
	for _, d := range Durations {
		row = append(row, dataButton(fmt.Sprintf("%d minutes", d), DurationPrefix+strconv.Itoa(d)))
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		row,
		{dataButton("♾️ Unlimited", DurationPrefix+"0")},
	}}
}

func ShowMistakes(code int) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		dataButton("🔑 Show my mistakes", ShowErrorsPrefix+strconv.Itoa(code)),
	}}}
}

func ConfirmBroadcast() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		dataButton("✅ Yes, send it", BroadcastSend),
		dataButton("❌ Cancel", BroadcastCancel),
	}}}
}

func MyTests(tests []models.Test) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, []tele.InlineButton{
			dataButton(fmt.Sprintf("📝 Test #%d", t.Code), ViewTestPrefix+strconv.Itoa(t.Code)),
		})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func TestManagement(code int) *tele.ReplyMarkup {
	c := strconv.Itoa(code)
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{
			dataButton("👥 Participants", ParticipantsPrefix+c),
			dataButton("🏁 Close test", ConfirmClosePrefix+c),
		},
		{dataButton("⬅️ Back to list", BackToTestList)},
	}}
}

func ConfirmClose(code int) *tele.ReplyMarkup {
	c := strconv.Itoa(code)
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{dataButton("✅ Yes, close it", CloseTestPrefix+c)},
		{dataButton("⬅️ No, go back", ViewTestPrefix+c)},
	}}
}

// CodeFromData extracts the numeric suffix of callback data with prefix.
func CodeFromData(data, prefix string) (int, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return 0, false
	}
	return code, true
}
