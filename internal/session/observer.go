package session

import (
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/result"
)

// Trigger names what caused an answer commit or the session's end.
type Trigger string

const (
	TriggerCandidate       Trigger = "candidate"
	TriggerSilence         Trigger = "silence"
	TriggerQuestionTimeout Trigger = "question_timeout"
	TriggerDeadline        Trigger = "deadline"
	TriggerFinished        Trigger = "finished"
)

// Completion describes a finished session.
type Completion struct {
	Result    result.SessionResult
	Trigger   Trigger
	SubmitErr error
	Duration  time.Duration
	Mode      question.Mode
}

// Observer is notified of session progress. Calls are made without the
// controller's lock held and may arrive from timer goroutines.
type Observer interface {
	SessionStarted(Snapshot)
	QuestionPresented(Snapshot)
	Prompted(text string)
	AnswerCommitted(ans answer.Answer, trigger Trigger)
	CapabilityDegraded(caps capture.Capabilities, reason string)
	SessionCompleted(Completion)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SessionStarted(Snapshot)                         {}
func (NopObserver) QuestionPresented(Snapshot)                      {}
func (NopObserver) Prompted(string)                                 {}
func (NopObserver) AnswerCommitted(answer.Answer, Trigger)          {}
func (NopObserver) CapabilityDegraded(capture.Capabilities, string) {}
func (NopObserver) SessionCompleted(Completion)                     {}

// Observers fans events out in order.
type Observers []Observer

func (o Observers) SessionStarted(s Snapshot) {
	for _, obs := range o {
		obs.SessionStarted(s)
	}
}

func (o Observers) QuestionPresented(s Snapshot) {
	for _, obs := range o {
		obs.QuestionPresented(s)
	}
}

func (o Observers) Prompted(text string) {
	for _, obs := range o {
		obs.Prompted(text)
	}
}

func (o Observers) AnswerCommitted(ans answer.Answer, trigger Trigger) {
	for _, obs := range o {
		obs.AnswerCommitted(ans, trigger)
	}
}

func (o Observers) CapabilityDegraded(caps capture.Capabilities, reason string) {
	for _, obs := range o {
		obs.CapabilityDegraded(caps, reason)
	}
}

func (o Observers) SessionCompleted(c Completion) {
	for _, obs := range o {
		obs.SessionCompleted(c)
	}
}
