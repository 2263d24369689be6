package notify

import (
	"fmt"
	"log"

	tele "gopkg.in/telebot.v3"
)

// Progress keeps a single status message up to date, skipping edits that
// would not change its text.
type Progress struct {
	editor Editor
	msg    tele.Editable
	last   string
}

func NewProgress(editor Editor, msg tele.Editable) *Progress {
	return &Progress{editor: editor, msg: msg}
}

func ProgressText(done, total int) string {
	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	return fmt.Sprintf("⏳ Sending: %.1f%% (%d/%d)", percent, done, total)
}

// Report is shaped to be used as Options.OnProgress.
func (p *Progress) Report(done, total int) {
	text := ProgressText(done, total)
	if text == p.last {
		return
	}
	if _, err := p.editor.Edit(p.msg, text); err != nil {
		if !IsNotModified(err) {
			log.Printf("Error updating progress message: %v", err)
		}
		return
	}
	p.last = text
}
