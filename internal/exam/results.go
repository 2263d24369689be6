// internal/exam/results.go
package exam

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/keyboards"
	"smarttest/internal/models"
	"smarttest/internal/notify"
)

// Prizes is how many top participants get a certificate.
const Prizes = 3

type ResultsOptions struct {
	// CertificatesDir holds place-1.png .. place-3.png.
	CertificatesDir string
	Pace            time.Duration
}

// Results closes tests and tells every participant how they did.
type Results struct {
	svc    *Service
	sender notify.Sender
	opts   ResultsOptions
}

func NewResults(svc *Service, sender notify.Sender, opts ResultsOptions) *Results {
	return &Results{svc: svc, sender: sender, opts: opts}
}

type CloseReport struct {
	Test         *models.Test
	Participants int
	Sent         int
	Failed       int
	ExportSent   bool
}

// CloseTest ranks the participants, notifies each of them, sends the
// spreadsheet to the owner and marks the test closed. Delivery and export
// failures do not stop the closure.
func (r *Results) CloseTest(ctx context.Context, actorID int64, isAdmin bool, code int) (*CloseReport, error) {
	test, err := r.svc.repo.GetTestByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := Authorize(test, actorID, isAdmin); err != nil {
		log.Printf("User %d tried to close test %d owned by %d", actorID, code, test.OwnerID)
		return nil, err
	}
	if !test.IsActive() {
		return nil, ErrTestClosed
	}

	rows, err := r.svc.repo.GetResults(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	RankResults(rows)
	entries := BuildLeaderboard(rows, test.QuestionCount())

	delivery := notify.Bulk(ctx, entries, func(_ context.Context, e models.LeaderboardEntry) error {
		return r.deliverResult(test.Code, e)
	}, notify.Options{
		Pace:  r.opts.Pace,
		Label: fmt.Sprintf("results of test %d", test.Code),
	})

	report := &CloseReport{
		Test:         test,
		Participants: len(entries),
		Sent:         delivery.Sent,
		Failed:       delivery.Failed,
	}
	if len(entries) > 0 {
		report.ExportSent = r.sendExport(test, entries)
	}

	if err := r.svc.repo.CloseTest(ctx, test.Code); err != nil {
		log.Printf("Error closing test %d: %v", test.Code, err)
		return report, err
	}
	test.Status = models.TestClosed
	log.Printf("Test %d closed by %d: %d sent, %d failed", test.Code, actorID, report.Sent, report.Failed)

	r.svc.markClosed(ctx, test)
	if r.svc.cache != nil {
		if err := r.svc.cache.SetResults(ctx, test.Code, entries); err != nil {
			log.Printf("Error caching results of test %d: %v", test.Code, err)
		}
	}
	if r.svc.events != nil {
		r.svc.events.BroadcastMessage(Room(test.Code), "test_closed", map[string]interface{}{
			"code":    test.Code,
			"results": entries,
		})
	}
	return report, nil
}

func (r *Results) deliverResult(code int, e models.LeaderboardEntry) error {
	to := tele.ChatID(e.UserID)
	markup := keyboards.ShowMistakes(code)

	if e.Rank <= Prizes {
		caption := CertificateCaption(code, e)
		if path, ok := r.certificate(e.Rank); ok {
			photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
			_, err := r.sender.Send(to, photo, markup)
			return err
		}
		_, err := r.sender.Send(to, caption, markup)
		return err
	}

	_, err := r.sender.Send(to, ResultText(code, e), markup)
	return err
}

func (r *Results) certificate(rank int) (string, bool) {
	path := filepath.Join(r.opts.CertificatesDir, fmt.Sprintf("place-%d.png", rank))
	if _, err := os.Stat(path); err != nil {
		log.Printf("Certificate for place %d unavailable: %v", rank, err)
		return "", false
	}
	return path, true
}

func (r *Results) sendExport(test *models.Test, entries []models.LeaderboardEntry) bool {
	owner := tele.ChatID(test.OwnerID)

	data, err := BuildReport(test.Code, entries)
	if err == nil {
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(data)),
			FileName: ReportFileName(test.Code),
			Caption:  fmt.Sprintf("✅ Final report for <b>Test #%d</b>.", test.Code),
		}
		_, err = r.sender.Send(owner, doc)
	}
	if err != nil {
		log.Printf("Error sending report of test %d: %v", test.Code, err)
		if _, sendErr := r.sender.Send(owner, fmt.Sprintf("❗️ Could not build the spreadsheet report for Test #%d.", test.Code)); sendErr != nil {
			log.Printf("Error telling owner %d about the report: %v", test.OwnerID, sendErr)
		}
		return false
	}
	return true
}

func CertificateCaption(code int, e models.LeaderboardEntry) string {
	var title string
	switch e.Rank {
	case 1:
		title = "🏆 CONGRATULATIONS, YOU ARE THE WINNER! 🏆"
	case 2:
		title = "🥈 CONGRATULATIONS, YOU TOOK 2ND PLACE! 🥈"
	default:
		title = "🥉 CONGRATULATIONS, YOU TOOK 3RD PLACE! 🥉"
	}
	return fmt.Sprintf("<b>%s</b>\n\nYou took <b>place %d</b> in <b>Test #%d</b>!\n\nYour result: <b>%d/%d</b> (%.1f%%)",
		title, e.Rank, code, e.Score, e.Total, e.Percentage)
}

func ResultText(code int, e models.LeaderboardEntry) string {
	return fmt.Sprintf("<b>Test #%d result</b>\n\nParticipant: <b>%s</b>\nCorrect answers: <b>%d / %d</b>\nScore: <b>%.1f%%</b>",
		code, e.FullName, e.Score, e.Total, e.Percentage)
}
