package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"smarttest/internal/admin"
	"smarttest/internal/exam"
	"smarttest/internal/models"
	"smarttest/internal/notify"
)

const (
	useMenuText         = "Please use the menu buttons below."
	genericFailureText  = "❗️ Something went wrong. Please try again later."
	askCodeText         = "Please enter the test code your teacher gave you:"
	badCodeText         = "❌ The test code must contain digits only. Please enter it again."
	askQuestionFileText = "Great, let's create a new test.\n\n<b>Step 1:</b> send the file with the test questions (PDF, DOCX, JPG, PNG)."
	badQuestionFileText = "Please send a supported file: a photo or a document."
	askAnswerKeyText    = "✅ File received.\n\n<b>Step 2:</b> now send the answer key. Only letters count.\n\nFor example: <code>1a2b3c4d...</code> or simply <code>abcd...</code>"
	badAnswerKeyText    = "❌ The answer key is not valid. Please send a key made of letters (for example <code>abcd...</code>)."
	pickDurationText    = "Please choose the time limit with the buttons above."
	sessionLostText     = "This step has expired. Please start again from the menu."
	noActiveTestsText   = "You have no active tests at the moment."
	activeTestsText     = "Your active tests:"
	acceptedText        = "✅ <b>Your answers have been accepted!</b>\n\nAll results will be announced once the test is closed."
	fileFailureText     = "❗️ Could not send the test file. Please contact the test owner."
	emptyRatingText     = "Nobody is in the rating yet. Be the first!"
	notSubscribedAlert  = "❌ Sorry, you have not joined all the channels yet. Please check again."
	adminPanelText      = "Hello, Super Admin! You are in the command panel."
	backToMenuText      = "You are back in the main menu."
	addChannelHelpText  = "To add a channel send its handle:\n\n<code>/add @channel_handle</code>"
	delChannelHelpText  = "To delete a channel send its handle or id:\n\n<code>/del @channel_handle</code> or <code>/del CHANNEL_ID</code>"
	noChannelsText      = "No mandatory channels have been added."
	contestStartedText  = "✅ A new referral contest has started! Every user's score is back to 0."
	contestClearedText  = "✅ Contest statistics have been cleared."
	askBroadcastText    = "Send the message (or ad) for all users.\nIt can be text, a photo, a video or any other kind of message."
	confirmButtonsText  = "Please confirm or cancel the broadcast with the buttons above."
	broadcastStartText  = "Broadcast started..."
	broadcastLostText   = "Error: the message to send was not found. Please start again."
	broadcastCancelText = "The broadcast has been cancelled."
	passwordUsageText   = "Send <code>/password your-secret</code> to set the dashboard password."
	notFoundAlert       = "Error: the test code was not found."
	notPublishedAlert   = "⏳ Results are published after the test owner closes the test."
)

func welcomeText(name string) string {
	return fmt.Sprintf("🎉 Hello, <b>%s</b>!\n\nWelcome to the <b>SmartTest</b> bot!", html.EscapeString(name))
}

func helpText(isAdmin bool) string {
	if isAdmin {
		return "👑 <b>Admin guide:</b>\n\n" +
			"<code>/add @channel</code> - add a mandatory channel.\n" +
			"<code>/del @channel</code> - delete a channel.\n" +
			"Everything else is done with the admin panel buttons."
	}
	return "ℹ️ <b>User guide:</b>\n\n" +
		"Use the menu buttons:\n" +
		"<b>✍️ Create test</b> - create your own test.\n" +
		"<b>✅ Solve test</b> - enter someone's test code and solve it.\n" +
		"<b>📋 My tests</b> - manage the tests you created.\n" +
		"<b>🔗 Invite a friend</b> - invite friends and climb the rating.\n\n" +
		"<code>/password secret</code> - set a password for the web dashboard."
}

func durationText(minutes int) string {
	if minutes > 0 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	return "Unlimited"
}

func answerKeyAcceptedText(questions int) string {
	return fmt.Sprintf("✅ Answer key accepted. Your test has <b>%d</b> questions.\n\n"+
		"<b>Step 3:</b> choose how much time each student gets to solve the test.", questions)
}

func createdText(test *models.Test) string {
	return fmt.Sprintf("<b>✅ Test created!</b>\n\n"+
		"<b>🔑 Test code:</b> <code>%d</code> (copy it and share it with your students)\n"+
		"<b>⏳ Time per student:</b> %s\n\n"+
		"Use «📋 My tests» to follow the results and close the test.",
		test.Code, durationText(test.DurationMinutes))
}

// openedText announces a started session. The deadline is shown in loc.
func openedText(o *exam.Opened, loc *time.Location) string {
	var limit string
	if o.Unlimited {
		limit = "Your time is not limited."
	} else {
		limit = fmt.Sprintf("You have <b>%d minutes</b> to solve the test.\n<b>Your personal time ends at %s.</b>",
			o.Test.DurationMinutes, o.Deadline.In(loc).Format("15:04"))
	}
	return fmt.Sprintf("<b>Test #%d has started.</b>\n\n⏳ %s\n\n"+
		"Attention! Send your answers in this format (no spaces between answers):\n"+
		"👉 <code>%d*abcd...</code>", o.Test.Code, limit, o.Test.Code)
}

// openRejectionText maps a refused session to a reply. It returns "" for
// errors that are not expected rejections.
func openRejectionText(err error) string {
	switch {
	case errors.Is(err, exam.ErrTestNotFound):
		return "❌ No test with this code was found. Check the code and try again."
	case errors.Is(err, exam.ErrTestClosed):
		return "❌ Sorry, this test is closed and no longer accepts answers."
	case errors.Is(err, exam.ErrAlreadyAnswered):
		return "❗️ You have already submitted answers for this test!"
	case errors.Is(err, exam.ErrSessionExists):
		return "You have already started this test! Please send your answers."
	}
	return ""
}

func submitRejectionText(err error) string {
	var mismatch *exam.CountMismatchError
	switch {
	case errors.As(err, &mismatch):
		return fmt.Sprintf("❗️ <b>Attention! Error!</b>\n\n"+
			"The test has <b>%d</b> questions.\n"+
			"You sent <b>%d</b> answers.\n\n"+
			"Please send all answers again in the <code>code*answers...</code> format.",
			mismatch.Expected, mismatch.Received)
	case errors.Is(err, exam.ErrTestNotFound):
		return "The test code you entered does not exist."
	case errors.Is(err, exam.ErrTestClosed):
		return "❌ Sorry, the test was closed before your answers arrived."
	case errors.Is(err, exam.ErrSessionNotFound):
		return "You have not started this test or your time is over. Please enter the code again."
	case errors.Is(err, exam.ErrTimeUp):
		return "❌ Sorry, the time given to you is over..."
	case errors.Is(err, exam.ErrAlreadyAnswered):
		return "You have already answered this test."
	}
	return ""
}

func testDetailsText(code int) string {
	return fmt.Sprintf("Selected test code: <code>%d</code>\n\nChoose one of the actions below:", code)
}

func confirmCloseText(code int) string {
	return fmt.Sprintf("<b>ATTENTION!</b>\n\nYou are about to close test <code>%d</code>. "+
		"This cannot be undone. Every participant receives their result and you get a spreadsheet report.", code)
}

func closingText(code int) string {
	return fmt.Sprintf("⏳ Closing test #%d... Sending results.", code)
}

func closedText(r *exam.CloseReport) string {
	text := fmt.Sprintf("✅ Test #%d has been closed.\n\nResults were sent to %d participants.",
		r.Test.Code, r.Sent)
	if r.Failed > 0 {
		text += fmt.Sprintf("\n%d participants could not be reached.", r.Failed)
	}
	if r.ExportSent {
		text += "\n\n📊 The detailed spreadsheet report was sent to you in a private message."
	}
	return text
}

func closeRejectionText(code int, err error) string {
	switch {
	case errors.Is(err, exam.ErrTestNotFound):
		return fmt.Sprintf("❌ Test #%d was not found.", code)
	case errors.Is(err, exam.ErrNotOwner):
		return "❌ You cannot close this test."
	case errors.Is(err, exam.ErrTestClosed):
		return fmt.Sprintf("Test #%d is already closed.", code)
	}
	return ""
}

func participantsText(code int, count int64) string {
	return fmt.Sprintf("Test #%d\nParticipants: %d", code, count)
}

// reviewText lists every question with the participant's answer next to the
// correct one.
func reviewText(code int, key, submitted string) string {
	lines, correct := exam.Review(key, submitted)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Review of test #%d:</b>\n\n", code)
	for _, l := range lines {
		if l.OK {
			fmt.Fprintf(&b, "✅ Question %d: %s (correct)\n", l.Number, l.Given)
		} else {
			fmt.Fprintf(&b, "❌ Question %d: your answer %s (correct: %s)\n", l.Number, l.Given, l.Correct)
		}
	}
	fmt.Fprintf(&b, "\n📊 <b>Total: %d correct (%.1f%%)</b>", correct, exam.Percentage(correct, len(lines)))
	return b.String()
}

func referralText(count int) string {
	return fmt.Sprintf("Friends you invited: <b>%d</b>.\n\nInvite your friends with the link below and climb the rating!", count)
}

var ratingEmojis = []string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

func ratingText(stats []models.ReferralStat) string {
	if len(stats) == 0 {
		return emptyRatingText
	}
	var b strings.Builder
	b.WriteString("🏆 <b>Most active users (TOP-10)</b>:\n\n")
	for i, s := range stats {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(ratingEmojis) {
			place = ratingEmojis[i]
		}
		fmt.Fprintf(&b, "%s %s - <b>%d</b> friends\n", place, html.EscapeString(s.FullName), s.ReferralCount)
	}
	return b.String()
}

func channelAddedText(added *admin.AddedChannel) string {
	title := html.EscapeString(added.Title)
	switch {
	case added.Public && added.Created:
		return fmt.Sprintf("✅ Public channel (<b>%s</b>) added to the list.", title)
	case added.Public:
		return fmt.Sprintf("Channel (<b>%s</b>) was already listed. Its details were updated.", title)
	case added.Created:
		return fmt.Sprintf("✅ Private channel (<b>%s</b>) added to the list and an invite link was created.", title)
	}
	return fmt.Sprintf("Channel (<b>%s</b>) was already listed. Its invite link was refreshed.", title)
}

func channelAddFailedText(err error) string {
	if errors.Is(err, admin.ErrBadChannelRef) {
		return "❌ Wrong format. Example: <code>/add @channel_handle</code>"
	}
	return "❌ Could not add the channel. Make sure the handle is right and the bot is an admin of the channel."
}

func channelRemovedText(ref string) string {
	return fmt.Sprintf("✅ Channel (<code>%s</code>) removed from the list.", html.EscapeString(ref))
}

func channelRemoveFailedText(err error) string {
	switch {
	case errors.Is(err, admin.ErrChannelNotListed):
		return "❌ This channel is not in the list."
	case errors.Is(err, admin.ErrBadChannelRef):
		return "❌ Wrong format. Example: <code>/del @channel_handle</code> or <code>/del -100123456</code>"
	}
	return genericFailureText
}

func channelListText(infos []admin.ChannelInfo) string {
	if len(infos) == 0 {
		return noChannelsText
	}
	var b strings.Builder
	b.WriteString("Mandatory channels:\n\n")
	for i, ch := range infos {
		if !ch.Reachable {
			fmt.Fprintf(&b, "%d. <b>Unknown channel</b>\n   - ID: <code>%d</code> (the bot was probably removed from it)\n\n", i+1, ch.ID)
			continue
		}
		link := ch.Link()
		if link == "" {
			link = "no link"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>\n   - ID: <code>%d</code>\n   - Link: %s\n\n", i+1, html.EscapeString(ch.Title), ch.ID, link)
	}
	return b.String()
}

func confirmBroadcastText(users int64) string {
	return fmt.Sprintf("Message received. Send it to <b>%d</b> users?", users)
}

func broadcastDoneText(r notify.Result) string {
	return fmt.Sprintf("✅ Broadcast finished!\n\n🟢 Delivered: %d users\n🔴 Failed: %d users", r.Sent, r.Failed)
}

func passwordSetText(userID int64) string {
	return fmt.Sprintf("✅ Dashboard password saved. Log in with your Telegram ID <code>%d</code>.", userID)
}
