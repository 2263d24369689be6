package bot

import (
	"errors"
	"log"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/conversation"
	"smarttest/internal/exam"
	"smarttest/internal/models"
	"smarttest/internal/notify"
)

func (h *Handler) StartSolving(c tele.Context) error {
	h.setState(c, conversation.AwaitingCode{})
	return c.Send(askCodeText)
}

// enterCode opens a session for the typed code. A non-numeric code keeps the
// user in the same step; any other outcome ends it.
func (h *Handler) enterCode(c tele.Context, text string) error {
	code, err := exam.ParseCode(text)
	if err != nil {
		return c.Send(badCodeText)
	}
	h.clearState(c)

	opened, err := h.exams.OpenSession(h.ctx, c.Sender().ID, code)
	if err != nil {
		if reply := openRejectionText(err); reply != "" {
			return c.Send(reply)
		}
		log.Printf("Error opening test %d for user %d: %v", code, c.Sender().ID, err)
		return c.Send(genericFailureText)
	}

	if err := c.Send(questionFile(opened.Test)); err != nil {
		log.Printf("Error sending file %s of test %d: %v", opened.Test.FileID, code, err)
		if err := c.Send(fileFailureText); err != nil {
			return err
		}
	}
	return c.Send(openedText(opened, h.loc))
}

func questionFile(test *models.Test) interface{} {
	file := tele.File{FileID: test.FileID}
	if test.FileKind == models.FileDocument {
		return &tele.Document{File: file}
	}
	return &tele.Photo{File: file}
}

func (h *Handler) submitAnswers(c tele.Context, text string) error {
	sub, err := h.exams.Submit(h.ctx, c.Sender().ID, text)
	if err != nil {
		if errors.Is(err, exam.ErrMalformedAnswer) {
			return nil
		}
		if reply := submitRejectionText(err); reply != "" {
			return c.Send(reply)
		}
		log.Printf("Error saving answers of user %d: %v", c.Sender().ID, err)
		return c.Send(genericFailureText)
	}
	log.Printf("Answers of user %d for test %d accepted", c.Sender().ID, sub.Test.Code)
	return c.Send(acceptedText)
}

// showMistakes replaces a result message with the per-question review.
func (h *Handler) showMistakes(c tele.Context, code int) error {
	details, err := h.exams.AnswerDetails(h.ctx, code, c.Sender().ID)
	if err != nil {
		switch {
		case errors.Is(err, exam.ErrAnswerNotFound), errors.Is(err, exam.ErrTestNotFound):
			return h.alert(c, "❌ Your answers to this test were not found.")
		case errors.Is(err, exam.ErrResultsNotPublished):
			return h.alert(c, notPublishedAlert)
		}
		log.Printf("Error loading answers of user %d for test %d: %v", c.Sender().ID, code, err)
		return h.alert(c, genericFailureText)
	}

	text := reviewText(code, details.AnswerKey, details.Submitted)
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		err = c.EditCaption(text)
	} else {
		err = c.Edit(text)
	}
	if err != nil {
		if notify.IsNotModified(err) {
			return c.Respond(&tele.CallbackResponse{Text: "You have already seen your mistakes."})
		}
		log.Printf("Error showing mistakes of user %d for test %d: %v", c.Sender().ID, code, err)
		return h.alert(c, "Could not update the message.")
	}
	return c.Respond()
}
