// Package notify sends one message per recipient while tolerating individual
// delivery failures.
package notify

import (
	"context"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Sender is the part of *tele.Bot used to deliver messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Copier forwards an existing message without the "forwarded" header.
type Copier interface {
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// Editor edits a message in place.
type Editor interface {
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Options struct {
	// Pace is the pause after every delivery attempt but the last.
	Pace time.Duration
	// ProgressEvery triggers OnProgress every N attempts and once at the end.
	ProgressEvery int
	OnProgress    func(done, total int)
	// OnFailure is called for every failed delivery after it is logged.
	OnFailure func(index int, err error)
	// Label prefixes log lines.
	Label string
}

type Result struct {
	Sent   int
	Failed int
}

// Bulk calls deliver for every item in order. A failed delivery is logged,
// counted and skipped. Cancelling ctx stops the loop; items not attempted
// are counted in neither field.
func Bulk[T any](ctx context.Context, items []T, deliver func(context.Context, T) error, opts Options) Result {
	var result Result
	total := len(items)

	for i, item := range items {
		if ctx.Err() != nil {
			log.Printf("%s: stopped after %d/%d: %v", opts.label(), i, total, ctx.Err())
			return result
		}

		if err := deliver(ctx, item); err != nil {
			result.Failed++
			log.Printf("%s: delivery %d/%d failed: %v", opts.label(), i+1, total, err)
			if opts.OnFailure != nil {
				opts.OnFailure(i, err)
			}
		} else {
			result.Sent++
		}

		done := i + 1
		if opts.OnProgress != nil && ((opts.ProgressEvery > 0 && done%opts.ProgressEvery == 0) || done == total) {
			opts.OnProgress(done, total)
		}

		if opts.Pace > 0 && done < total {
			select {
			case <-ctx.Done():
			case <-time.After(opts.Pace):
			}
		}
	}
	return result
}

func (o Options) label() string {
	if o.Label == "" {
		return "bulk"
	}
	return o.Label
}

// IsUnreachable reports errors meaning the chat will never accept messages
// from the bot again.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bot was blocked") ||
		strings.Contains(msg, "user is deactivated") ||
		strings.Contains(msg, "chat not found")
}

// IsNotModified reports Telegram's refusal to apply an edit that changes
// nothing.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
