// Package conversation tracks which multi-step dialog each user is in.
package conversation

import (
	"encoding/json"
	"fmt"
)

// State is one step of a dialog. Each step carries exactly the data collected
// so far; Idle means no dialog is in progress.
type State interface {
	Kind() string
}

const (
	KindIdle                   = "idle"
	KindAwaitingCode           = "awaiting_code"
	KindAwaitingQuestionFile   = "awaiting_question_file"
	KindAwaitingAnswerKey      = "awaiting_answer_key"
	KindAwaitingDuration       = "awaiting_duration"
	KindAwaitingChannel        = "awaiting_channel"
	KindAwaitingChannelRemoval = "awaiting_channel_removal"
	KindAwaitingBroadcast      = "awaiting_broadcast"
	KindConfirmingBroadcast    = "confirming_broadcast"
)

type Idle struct{}

// AwaitingCode waits for a student to type a test code.
type AwaitingCode struct{}

// AwaitingQuestionFile waits for the photo or document with the questions.
type AwaitingQuestionFile struct{}

type AwaitingAnswerKey struct {
	FileID   string `json:"file_id"`
	FileKind string `json:"file_kind"`
}

type AwaitingDuration struct {
	FileID    string `json:"file_id"`
	FileKind  string `json:"file_kind"`
	AnswerKey string `json:"answer_key"`
}

// AwaitingChannel waits for an admin to send a channel reference to add.
type AwaitingChannel struct{}

type AwaitingChannelRemoval struct{}

type AwaitingBroadcast struct{}

// ConfirmingBroadcast holds the message an admin wants copied to every user.
type ConfirmingBroadcast struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

func (Idle) Kind() string                   { return KindIdle }
func (AwaitingCode) Kind() string           { return KindAwaitingCode }
func (AwaitingQuestionFile) Kind() string   { return KindAwaitingQuestionFile }
func (AwaitingAnswerKey) Kind() string      { return KindAwaitingAnswerKey }
func (AwaitingDuration) Kind() string       { return KindAwaitingDuration }
func (AwaitingChannel) Kind() string        { return KindAwaitingChannel }
func (AwaitingChannelRemoval) Kind() string { return KindAwaitingChannelRemoval }
func (AwaitingBroadcast) Kind() string      { return KindAwaitingBroadcast }
func (ConfirmingBroadcast) Kind() string    { return KindConfirmingBroadcast }

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serializes a state with its kind so Decode can restore the type.
func Encode(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: s.Kind(), Data: data})
}

func Decode(raw []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	var s State
	switch env.Kind {
	case KindIdle:
		return Idle{}, nil
	case KindAwaitingCode:
		return AwaitingCode{}, nil
	case KindAwaitingQuestionFile:
		return AwaitingQuestionFile{}, nil
	case KindAwaitingChannel:
		return AwaitingChannel{}, nil
	case KindAwaitingChannelRemoval:
		return AwaitingChannelRemoval{}, nil
	case KindAwaitingBroadcast:
		return AwaitingBroadcast{}, nil
	case KindAwaitingAnswerKey:
		var v AwaitingAnswerKey
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		s = v
	case KindAwaitingDuration:
		var v AwaitingDuration
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		s = v
	case KindConfirmingBroadcast:
		var v ConfirmingBroadcast
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		s = v
	default:
		return nil, fmt.Errorf("unknown conversation state %q", env.Kind)
	}
	return s, nil
}
