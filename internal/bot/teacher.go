package bot

import (
	"log"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/conversation"
	"smarttest/internal/exam"
	"smarttest/internal/keyboards"
	"smarttest/internal/models"
)

func (h *Handler) StartCreation(c tele.Context) error {
	h.setState(c, conversation.AwaitingQuestionFile{})
	return c.Send(askQuestionFileText)
}

func (h *Handler) receiveQuestionFile(c tele.Context) error {
	msg := c.Message()
	next := conversation.AwaitingAnswerKey{}
	switch {
	case msg.Document != nil:
		next.FileID, next.FileKind = msg.Document.FileID, models.FileDocument
	case msg.Photo != nil:
		next.FileID, next.FileKind = msg.Photo.FileID, models.FilePhoto
	default:
		return c.Send(badQuestionFileText)
	}

	h.setState(c, next)
	return c.Send(askAnswerKeyText)
}

func (h *Handler) enterAnswerKey(c tele.Context, s conversation.AwaitingAnswerKey, text string) error {
	key := exam.Normalize(text)
	if key == "" {
		return c.Send(badAnswerKeyText)
	}

	h.setState(c, conversation.AwaitingDuration{
		FileID:    s.FileID,
		FileKind:  s.FileKind,
		AnswerKey: key,
	})
	return c.Send(answerKeyAcceptedText(len([]rune(key))), keyboards.TestDuration())
}

func (h *Handler) chooseDuration(c tele.Context, minutes int) error {
	s, ok := h.state(c).(conversation.AwaitingDuration)
	if !ok {
		return h.alert(c, sessionLostText)
	}

	test, err := h.exams.CreateTest(h.ctx, c.Sender().ID, s.FileID, s.FileKind, s.AnswerKey, minutes)
	if err != nil {
		log.Printf("Error creating test for user %d: %v", c.Sender().ID, err)
		return h.alert(c, genericFailureText)
	}
	h.clearState(c)
	log.Printf("User %d created test %d", c.Sender().ID, test.Code)

	if err := c.Delete(); err != nil {
		log.Printf("Error deleting duration prompt: %v", err)
	}
	if err := c.Send(createdText(test), keyboards.MainMenu(h.isAdmin(c.Sender().ID))); err != nil {
		return err
	}
	return c.Respond()
}

func (h *Handler) MyTests(c tele.Context) error {
	tests, err := h.exams.MyActiveTests(h.ctx, c.Sender().ID)
	if err != nil {
		log.Printf("Error listing tests of user %d: %v", c.Sender().ID, err)
		return c.Send(genericFailureText)
	}
	if len(tests) == 0 {
		return c.Send(noActiveTestsText)
	}
	return c.Send(activeTestsText, keyboards.MyTests(tests))
}

func (h *Handler) backToTestList(c tele.Context) error {
	if err := c.Delete(); err != nil {
		log.Printf("Error deleting test view: %v", err)
	}
	if err := h.MyTests(c); err != nil {
		return err
	}
	return c.Respond()
}

// ownTest loads a test the caller may manage. On failure it has already
// answered the callback.
func (h *Handler) ownTest(c tele.Context, code int) (*models.Test, bool) {
	test, err := h.exams.GetTestByCode(h.ctx, code)
	if err != nil {
		if reply := closeRejectionText(code, err); reply != "" {
			h.alert(c, reply)
		} else {
			log.Printf("Error loading test %d: %v", code, err)
			h.alert(c, genericFailureText)
		}
		return nil, false
	}
	if err := exam.Authorize(test, c.Sender().ID, h.isAdmin(c.Sender().ID)); err != nil {
		h.alert(c, closeRejectionText(code, err))
		return nil, false
	}
	return test, true
}

func (h *Handler) viewTest(c tele.Context, code int) error {
	if _, ok := h.ownTest(c, code); !ok {
		return nil
	}
	if err := c.Edit(testDetailsText(code), keyboards.TestManagement(code)); err != nil {
		return err
	}
	return c.Respond()
}

func (h *Handler) participants(c tele.Context, code int) error {
	if _, ok := h.ownTest(c, code); !ok {
		return nil
	}
	count, err := h.exams.ParticipantCount(h.ctx, code)
	if err != nil {
		log.Printf("Error counting participants of test %d: %v", code, err)
		return h.alert(c, genericFailureText)
	}
	return h.alert(c, participantsText(code, count))
}

func (h *Handler) confirmClose(c tele.Context, code int) error {
	if _, ok := h.ownTest(c, code); !ok {
		return nil
	}
	if err := c.Edit(confirmCloseText(code), keyboards.ConfirmClose(code)); err != nil {
		return err
	}
	return c.Respond()
}

// closeTest fans the results out and reports the outcome in the same
// message that held the confirmation.
func (h *Handler) closeTest(c tele.Context, code int) error {
	userID := c.Sender().ID
	if err := c.Edit(closingText(code)); err != nil {
		log.Printf("Error editing close status of test %d: %v", code, err)
	}

	report, err := h.results.CloseTest(h.ctx, userID, h.isAdmin(userID), code)
	if err != nil {
		reply := closeRejectionText(code, err)
		if reply == "" {
			log.Printf("Error closing test %d: %v", code, err)
			reply = genericFailureText
		}
		if err := c.Edit(reply); err != nil {
			log.Printf("Error editing close status of test %d: %v", code, err)
		}
		return h.alert(c, reply)
	}

	if err := c.Edit(closedText(report)); err != nil {
		log.Printf("Error editing close status of test %d: %v", code, err)
	}
	return h.alert(c, "Test closed!")
}
