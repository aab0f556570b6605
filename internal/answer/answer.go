// Package answer holds committed candidate answers.
package answer

import (
	"strings"
	"time"
)

type Kind string

const (
	KindText   Kind = "text"
	KindAudio  Kind = "audio"
	KindChoice Kind = "choice"
)

// Answer is immutable once committed. Audio carries a WAV recording
// when Kind is KindAudio; Text then holds the transcript.
type Answer struct {
	QuestionID string
	Kind       Kind
	Text       string
	Audio      []byte
	Choice     string
	CapturedAt time.Time
	Forced     bool
}

// Empty reports whether the answer carries no candidate content.
func (a Answer) Empty() bool {
	switch a.Kind {
	case KindChoice:
		return strings.TrimSpace(a.Choice) == ""
	case KindAudio:
		return strings.TrimSpace(a.Text) == "" && len(a.Audio) == 0
	default:
		return strings.TrimSpace(a.Text) == ""
	}
}

// Value is the answer in the form reviewers read.
func (a Answer) Value() string {
	if a.Kind == KindChoice {
		return a.Choice
	}
	return a.Text
}

// Input is what the candidate explicitly submits with an advance. Empty
// fields fall back to captured buffers.
type Input struct {
	Text   string
	Choice string
}

func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Choice) == ""
}
