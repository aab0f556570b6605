package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/timing"
)

// Advance commits the current answer and moves forward one step. In a
// conversation it also acknowledges the greeting and ends the closing.
// Calls made while a previous advance is still being paced return
// ErrAdvanceInProgress and change nothing.
func (c *Controller) Advance(in answer.Input) error {
	return c.advance(in, false, TriggerCandidate)
}

// ForceTimeout commits whatever partial answer exists, including none,
// and moves on.
func (c *Controller) ForceTimeout() error {
	return c.advance(answer.Input{}, true, TriggerQuestionTimeout)
}

// Skip moves past the current question without requiring an answer.
func (c *Controller) Skip() error {
	return c.advance(answer.Input{}, true, TriggerCandidate)
}

func (c *Controller) advance(in answer.Input, forced bool, trigger Trigger) error {
	var fx effects
	c.mu.Lock()
	err := c.advanceLocked(&fx, in, forced, trigger)
	c.mu.Unlock()
	fx.run()
	return err
}

func (c *Controller) advanceLocked(fx *effects, in answer.Input, forced bool, trigger Trigger) error {
	switch {
	case c.tornDown:
		return ErrTornDown
	case c.completing:
		return ErrAlreadyCompleted
	case c.state == fsm.StateNotStarted:
		return ErrNotStarted
	case c.turn == fsm.TurnThinking:
		return ErrAdvanceInProgress
	}

	switch c.state {
	case fsm.StateGreeting:
		c.acknowledgeLocked(fx)
		return nil
	case fsm.StateClosing:
		c.finishLocked(fx, fsm.EventFinish, TriggerCandidate)
		return nil
	}

	if !c.questionOpenLocked() {
		return ErrNoResponseWindow
	}
	if !forced {
		q := c.questions[c.index]
		mode, err := c.capture.EffectiveMode(q)
		if mode == question.AnswerSpeak && strings.TrimSpace(c.capture.Transcript()) == "" {
			if err != nil {
				return fmt.Errorf("%w: %w", ErrTranscriptRequired, err)
			}
			return ErrTranscriptRequired
		}
	}
	c.commitAndMoveLocked(fx, in, forced, trigger)
	return nil
}

// commitAndMoveLocked closes the open question, records its answer, and
// schedules whatever comes next.
func (c *Controller) commitAndMoveLocked(fx *effects, in answer.Input, forced bool, trigger Trigger) {
	q := c.questions[c.index]
	c.closeWindowLocked()
	c.commitLocked(fx, q, in, forced, trigger)

	last := c.index == len(c.questions)-1
	c.index++

	if c.mode == question.ModeTimed {
		if last {
			c.finishLocked(fx, fsm.EventLast, TriggerFinished)
			return
		}
		c.transitionLocked(fsm.EventNext)
		c.presentTimedLocked(fx, c.index)
		return
	}

	c.turn = fsm.TurnThinking
	if last {
		c.transitionLocked(fsm.EventLast)
		c.scheduleLocked(c.pacing.Thinking, func(fx *effects) {
			c.turn = fsm.TurnSpeaking
			c.sayLocked(fx, closingPhrase, c.pacing.Closing, func(fx *effects) {
				c.finishLocked(fx, fsm.EventFinish, TriggerFinished)
			})
		})
		return
	}

	c.transitionLocked(fsm.EventNext)
	phrase := acknowledgment(c.index - 1)
	c.scheduleLocked(c.pacing.Thinking, func(fx *effects) {
		c.sayLocked(fx, phrase, c.pacing.Acknowledge, c.presentConversationalLocked)
	})
}

func (c *Controller) commitLocked(fx *effects, q question.Question, in answer.Input, forced bool, trigger Trigger) {
	ans := c.capture.CommitAnswer(q, in, c.clock.Now())
	ans.Forced = forced
	if err := c.assembler.Record(ans); err != nil {
		c.logger.Error("record answer failed", "session_id", c.id, "question_id", q.ID, "error", err.Error())
		return
	}
	c.logger.Info("answer committed",
		"session_id", c.id,
		"question_id", q.ID,
		"kind", string(ans.Kind),
		"trigger", string(trigger),
		"forced", forced,
		"empty", ans.Empty(),
	)
	fx.add(func() { c.observer.AnswerCommitted(ans, trigger) })
}

func (c *Controller) acknowledgeLocked(fx *effects) {
	c.closeWindowLocked()
	c.capture.ClearBuffers()
	c.transitionLocked(fsm.EventAcknowledge)
	c.turn = fsm.TurnThinking
	c.scheduleLocked(c.pacing.Thinking, func(fx *effects) {
		c.sayLocked(fx, transitionPhrase, c.pacing.Acknowledge, c.presentConversationalLocked)
	})
}

func (c *Controller) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Warn("session transition rejected", "session_id", c.id, "error", err.Error())
		return
	}
	c.state = next
}

// presentConversationalLocked speaks the current question and opens its
// response window once speech has settled.
func (c *Controller) presentConversationalLocked(fx *effects) {
	c.turn = fsm.TurnSpeaking
	c.notice = ""
	snap := c.snapshotLocked()
	snap.Prompt = c.questions[c.index].Text
	fx.add(func() { c.observer.QuestionPresented(snap) })
	c.sayLocked(fx, c.questions[c.index].Text, c.pacing.Settle, c.openQuestionWindowLocked)
}

func (c *Controller) presentTimedLocked(fx *effects, index int) {
	c.index = index
	c.prompt = c.questions[index].Text
	c.openQuestionWindowLocked(fx)
	snap := c.snapshotLocked()
	fx.add(func() { c.observer.QuestionPresented(snap) })
}

func (c *Controller) openGreetingLocked(fx *effects) {
	c.turn = fsm.TurnAwaiting
	c.windowGen++
	if c.caps.Recognition {
		fx.add(c.listen(c.ctx))
	}
	if c.pacing.Greeting > 0 {
		c.scheduleLocked(c.pacing.Greeting, c.acknowledgeLocked)
	}
}

func (c *Controller) openQuestionWindowLocked(fx *effects) {
	q := c.questions[c.index]
	c.turn = fsm.TurnAwaiting
	c.windowGen++
	gen := c.windowGen

	mode, err := c.capture.EffectiveMode(q)
	switch {
	case err != nil:
		c.notice = "Speech recognition is unavailable. This question needs a spoken answer and can only be skipped."
	case q.AnswerMode == question.AnswerHybrid && mode == question.AnswerWrite:
		c.notice = "Speech recognition is unavailable. Type your answer instead."
	default:
		c.notice = ""
	}

	if c.mode == question.ModeConversational || c.limit == 0 {
		c.perQuestion = timing.NewCountdown(c.clock, q.Duration(), nil, func() { c.onQuestionExpired(gen) })
		c.perQuestion.Start()
	}
	if err == nil && (mode == question.AnswerSpeak || mode == question.AnswerHybrid) {
		fx.add(c.listen(c.ctx))
	}
}

// closeWindowLocked ends the open response window and anything pending
// against it.
func (c *Controller) closeWindowLocked() {
	c.windowGen++
	c.cancelPacingLocked()
	if c.perQuestion != nil {
		c.perQuestion.Stop()
		c.perQuestion = nil
	}
	c.silence.Stop()
	if c.turn == fsm.TurnSpeaking {
		c.capture.CancelSpeech()
	}
	c.capture.StopListening()
	c.notice = ""
}

// listen opens recognition outside the lock. A stream that comes up
// after its window closed is stopped again.
func (c *Controller) listen(ctx context.Context) func() {
	return func() {
		err := c.capture.StartListening(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			if errors.Is(err, capture.ErrAlreadyListening) || errors.Is(err, capture.ErrTornDown) {
				return
			}
			c.logger.Warn("start listening failed", "session_id", c.id, "error", err.Error())
			if c.turn == fsm.TurnAwaiting {
				c.notice = "Speech recognition could not start. Type your answer instead."
			}
			return
		}
		if c.turn != fsm.TurnAwaiting || c.completing || c.tornDown {
			c.capture.StopListening()
		}
	}
}

// sayLocked speaks text and runs next once speech has ended and wait has
// passed. Without synthesis the text is shown and next follows wait.
func (c *Controller) sayLocked(fx *effects, text string, wait time.Duration, next func(*effects)) {
	c.prompt = text
	c.afterSpeech = next
	c.settleAfter = wait
	fx.add(func() { c.observer.Prompted(text) })

	if err := c.capture.Speak(c.ctx, text); err != nil {
		if !errors.Is(err, capture.ErrSynthesisUnavailable) {
			c.logger.Warn("speak failed", "session_id", c.id, "error", err.Error())
		}
		c.speechFinishedLocked()
	}
}

func (c *Controller) speechFinishedLocked() {
	next := c.afterSpeech
	if next == nil {
		return
	}
	c.afterSpeech = nil
	c.scheduleLocked(c.settleAfter, next)
}

// scheduleLocked replaces the pending pacing step with f after d.
func (c *Controller) scheduleLocked(d time.Duration, f func(*effects)) {
	if c.pacer != nil {
		c.pacer.Stop()
	}
	c.step++
	step := c.step
	c.pacer = c.clock.AfterFunc(max(d, time.Nanosecond), func() { c.runStep(step, f) })
}

func (c *Controller) runStep(step uint64, f func(*effects)) {
	var fx effects
	c.mu.Lock()
	if step != c.step || c.completing || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.pacer = nil
	f(&fx)
	c.mu.Unlock()
	fx.run()
}

func (c *Controller) cancelPacingLocked() {
	c.step++
	c.afterSpeech = nil
	if c.pacer != nil {
		c.pacer.Stop()
		c.pacer = nil
	}
}

// questionOpenLocked reports whether a question is on screen and can
// still take an answer.
func (c *Controller) questionOpenLocked() bool {
	if c.state != fsm.StateQuestioning && c.state != fsm.StateInProgress {
		return false
	}
	if c.index >= len(c.questions) {
		return false
	}
	return c.turn == fsm.TurnAwaiting || c.turn == fsm.TurnSpeaking
}

func (c *Controller) onQuestionExpired(gen uint64) {
	var fx effects
	c.mu.Lock()
	if gen != c.windowGen || c.completing || c.tornDown || !c.questionOpenLocked() {
		c.mu.Unlock()
		return
	}
	c.logger.Info("question timed out", "session_id", c.id, "question_id", c.questions[c.index].ID)
	c.commitAndMoveLocked(&fx, answer.Input{}, true, TriggerQuestionTimeout)
	c.mu.Unlock()
	fx.run()
}

func (c *Controller) onSilence() {
	var fx effects
	c.mu.Lock()
	if c.completing || c.tornDown || c.turn != fsm.TurnAwaiting || !c.questionOpenLocked() {
		c.mu.Unlock()
		return
	}
	if !timing.LongEnough(c.capture.Transcript(), c.pacing.MinTranscriptChars) {
		c.mu.Unlock()
		return
	}
	c.commitAndMoveLocked(&fx, answer.Input{}, false, TriggerSilence)
	c.mu.Unlock()
	fx.run()
}

// onDeadline ends the session when the overall budget runs out,
// committing the open question's partial answer first.
func (c *Controller) onDeadline() {
	var fx effects
	c.mu.Lock()
	if c.completing || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.logger.Info("session deadline reached", "session_id", c.id)
	if c.questionOpenLocked() {
		q := c.questions[c.index]
		c.closeWindowLocked()
		c.commitLocked(&fx, q, answer.Input{}, true, TriggerDeadline)
		c.index++
	}
	c.finishLocked(&fx, fsm.EventDeadline, TriggerDeadline)
	c.mu.Unlock()
	fx.run()
}
