package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/capture/capturetest"
	"github.com/rbright/proctor/internal/clock"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/result"
)

var epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type harnessOptions struct {
	recognition bool
	synthesis   bool
	submitErr   error
}

type harness struct {
	clock      *clock.FakeClock
	media      *capturetest.Media
	recognizer *capturetest.Recognizer
	synth      *capturetest.Synthesizer
	adapter    *capture.Adapter
	submitter  *recordingSubmitter
	observer   *recordingObserver
	ctrl       *Controller

	mu          sync.Mutex
	completions []result.SessionResult
	completedAt []time.Time
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	h := &harness{
		clock:     clock.Fake(epoch),
		media:     &capturetest.Media{Tracks: capture.Tracks{Camera: true, Microphone: true}},
		submitter: &recordingSubmitter{err: opts.submitErr},
		observer:  &recordingObserver{},
	}
	cfg := capture.Config{Media: h.media, Clock: h.clock}
	if opts.recognition {
		h.recognizer = &capturetest.Recognizer{}
		cfg.Recognizer = h.recognizer
	}
	if opts.synthesis {
		h.synth = &capturetest.Synthesizer{}
		cfg.Synthesizer = h.synth
	}
	h.adapter = capture.NewAdapter(cfg)
	h.ctrl = NewController(Config{
		Clock:     h.clock,
		Capture:   h.adapter,
		Observer:  h.observer,
		Submitter: h.submitter,
		Pacing:    DefaultPacing(),
		NewID:     func() string { return "session-1" },
		OnComplete: func(res result.SessionResult) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completions = append(h.completions, res)
			h.completedAt = append(h.completedAt, h.clock.Now())
		},
	})
	t.Cleanup(h.ctrl.Teardown)
	return h
}

func (h *harness) completionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.completions)
}

func (h *harness) lastCompletedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completedAt[len(h.completedAt)-1]
}

func (h *harness) index() int {
	return h.ctrl.Snapshot().CurrentQuestionIndex
}

func writeQuestions(n, seconds int) []question.Question {
	return makeQuestions(n, seconds, question.AnswerWrite)
}

func makeQuestions(n, seconds int, mode question.AnswerMode) []question.Question {
	out := make([]question.Question, 0, n)
	for i := range n {
		out = append(out, question.Question{
			ID:              fmt.Sprintf("q%d", i+1),
			Text:            fmt.Sprintf("Question %d?", i+1),
			Type:            question.TypeGeneral,
			AnswerMode:      mode,
			DurationSeconds: seconds,
		})
	}
	return out
}

type recordingSubmitter struct {
	err error

	mu    sync.Mutex
	calls []result.SessionResult
}

func (s *recordingSubmitter) Submit(_ context.Context, res result.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, res)
	return s.err
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSubmitter) only(t *testing.T) result.SessionResult {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.calls, 1)
	return s.calls[0]
}

type committed struct {
	answer  answer.Answer
	trigger Trigger
}

type recordingObserver struct {
	NopObserver

	mu          sync.Mutex
	started     int
	prompts     []string
	presented   []Snapshot
	committed   []committed
	degraded    []string
	completions []Completion
}

func (o *recordingObserver) SessionStarted(Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) Prompted(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, text)
}

func (o *recordingObserver) QuestionPresented(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.presented = append(o.presented, s)
}

func (o *recordingObserver) AnswerCommitted(ans answer.Answer, trigger Trigger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.committed = append(o.committed, committed{answer: ans, trigger: trigger})
}

func (o *recordingObserver) CapabilityDegraded(_ capture.Capabilities, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, reason)
}

func (o *recordingObserver) SessionCompleted(c Completion) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completions = append(o.completions, c)
}

func (o *recordingObserver) commits() []committed {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]committed(nil), o.committed...)
}

func (o *recordingObserver) promptList() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}

func (o *recordingObserver) completionList() []Completion {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Completion(nil), o.completions...)
}
