package session

import (
	"context"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/result"
)

// Complete ends the session now. The open question keeps whatever the
// candidate has entered so far. The result is submitted exactly once and
// the submission error, if any, is returned; later calls return
// ErrAlreadyCompleted without submitting again.
func (c *Controller) Complete() error {
	var fx effects
	c.mu.Lock()
	switch {
	case c.completing:
		c.mu.Unlock()
		return ErrAlreadyCompleted
	case c.tornDown:
		c.mu.Unlock()
		return ErrTornDown
	case c.state == fsm.StateNotStarted:
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.questionOpenLocked() {
		q := c.questions[c.index]
		c.closeWindowLocked()
		c.commitLocked(&fx, q, answer.Input{}, false, TriggerCandidate)
		c.index++
	}
	c.finishLocked(&fx, fsm.EventFinish, TriggerCandidate)
	c.mu.Unlock()

	fx.run()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitErr
}

// finishLocked moves to completed, releases every timer and device, and
// queues the single submission.
func (c *Controller) finishLocked(fx *effects, event fsm.Event, trigger Trigger) {
	if c.completing {
		return
	}
	c.completing = true

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Warn("session transition rejected", "session_id", c.id, "error", err.Error())
		next = fsm.StateCompleted
	}
	c.state = next
	c.stopTimersLocked()
	c.turn = fsm.TurnIdle
	c.capture.Teardown()
	if c.stopContext != nil {
		c.stopContext()
	}

	now := c.clock.Now()
	c.completedAt = now
	res := c.assembler.Finalize(c.remainingLocked(), now)
	c.result = &res

	completion := Completion{
		Result:   res,
		Trigger:  trigger,
		Duration: now.Sub(c.startedAt),
		Mode:     c.mode,
	}
	assembler := c.assembler
	ctx := context.WithoutCancel(c.ctx)
	fx.add(func() { c.submit(ctx, assembler, completion) })
}

func (c *Controller) submit(ctx context.Context, assembler *result.Assembler, completion Completion) {
	err := assembler.Submit(ctx, completion.Result)

	c.mu.Lock()
	c.submitErr = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("result submission failed",
			"session_id", completion.Result.SessionID,
			"error", err.Error(),
		)
	} else {
		c.logger.Info("session completed",
			"session_id", completion.Result.SessionID,
			"trigger", string(completion.Trigger),
			"answered", completion.Result.AnsweredQuestions,
			"total", completion.Result.TotalQuestions,
			"time_taken_s", completion.Result.TimeTakenSeconds,
		)
	}

	completion.SubmitErr = err
	c.observer.SessionCompleted(completion)
	if c.onComplete != nil {
		c.onComplete(completion.Result)
	}
	c.closeDone.Do(func() { close(c.done) })
}

// Teardown releases camera, microphone, recognition, synthesis, and
// every timer. A session torn down before completing is abandoned and
// never submitted. Teardown is idempotent.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	abandoned := !c.completing
	if abandoned {
		c.stopTimersLocked()
		c.turn = fsm.TurnIdle
	}
	stop := c.stopContext
	id := c.id
	c.mu.Unlock()

	c.capture.Teardown()
	if stop != nil {
		stop()
	}
	if abandoned {
		c.logger.Info("session abandoned", "session_id", id)
		c.closeDone.Do(func() { close(c.done) })
	}
}

func (c *Controller) stopTimersLocked() {
	c.windowGen++
	c.cancelPacingLocked()
	if c.perQuestion != nil {
		c.perQuestion.Stop()
		c.perQuestion = nil
	}
	if c.global != nil {
		c.global.Stop()
	}
	if c.silence != nil {
		c.silence.Stop()
	}
}

// remainingLocked is the unused part of the overall budget.
func (c *Controller) remainingLocked() time.Duration {
	switch {
	case c.global != nil:
		return c.global.Remaining()
	case c.startedAt.IsZero():
		return c.budget
	}
	end := c.clock.Now()
	if !c.completedAt.IsZero() {
		end = c.completedAt
	}
	return max(c.budget-end.Sub(c.startedAt), 0)
}
