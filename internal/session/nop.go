package session

import (
	"context"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/question"
)

// nopCapture keeps typed-answer sessions working when no devices are
// wired.
type nopCapture struct {
	draft string
}

func (*nopCapture) SetListener(capture.Listener)                      {}
func (*nopCapture) RequestMedia(context.Context) capture.Capabilities { return capture.Capabilities{} }
func (*nopCapture) Capabilities() capture.Capabilities                { return capture.Capabilities{} }
func (*nopCapture) StartListening(context.Context) error              { return capture.ErrRecognitionUnavailable }
func (*nopCapture) StopListening()                                    {}
func (*nopCapture) Speak(context.Context, string) error               { return capture.ErrSynthesisUnavailable }
func (*nopCapture) CancelSpeech()                                     {}
func (*nopCapture) Transcript() string                                { return "" }
func (*nopCapture) Teardown()                                         {}

func (*nopCapture) EffectiveMode(q question.Question) (question.AnswerMode, error) {
	switch {
	case q.IsChoice(), q.AnswerMode == question.AnswerHybrid:
		return question.AnswerWrite, nil
	case q.AnswerMode == question.AnswerSpeak:
		return question.AnswerSpeak, capture.ErrRecognitionUnavailable
	default:
		return q.AnswerMode, nil
	}
}

func (n *nopCapture) SetDraft(text string) { n.draft = text }
func (n *nopCapture) Draft() string        { return n.draft }
func (n *nopCapture) ClearBuffers()        { n.draft = "" }

func (n *nopCapture) CommitAnswer(q question.Question, in answer.Input, capturedAt time.Time) answer.Answer {
	out := answer.Answer{QuestionID: q.ID, Kind: answer.KindText, Text: in.Text, CapturedAt: capturedAt}
	if out.Text == "" {
		out.Text = n.draft
	}
	if q.IsChoice() {
		out.Kind = answer.KindChoice
		out.Text = ""
		out.Choice = in.Choice
	}
	n.draft = ""
	return out
}
