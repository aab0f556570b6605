package session

import (
	"strings"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/fsm"
)

// OnFragment reacts to recognized speech. Any final phrase acknowledges
// the greeting; during a question, speech re-arms the silence detector.
func (c *Controller) OnFragment(text string, final bool) {
	var fx effects
	c.mu.Lock()
	if c.completing || c.tornDown || c.turn != fsm.TurnAwaiting {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case fsm.StateGreeting:
		if final && strings.TrimSpace(text) != "" {
			c.acknowledgeLocked(&fx)
		}
	case fsm.StateQuestioning, fsm.StateInProgress:
		// Interim results only postpone a silence window already opened
		// by a final one.
		if final || c.silence.Armed() {
			c.silence.Reset()
		}
	}
	c.mu.Unlock()
	fx.run()
}

func (c *Controller) OnSpeechFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completing || c.tornDown {
		return
	}
	c.speechFinishedLocked()
}

func (c *Controller) OnDegraded(caps capture.Capabilities, reason string) {
	c.mu.Lock()
	if c.completing || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.caps = caps
	if c.questionOpenLocked() {
		if _, err := c.capture.EffectiveMode(c.questions[c.index]); err != nil {
			c.notice = "Speech recognition stopped. This question needs a spoken answer and can only be skipped."
		} else if !caps.Recognition {
			c.notice = "Speech recognition stopped. Type your answer instead."
		}
	}
	c.logger.Warn("capability degraded", "session_id", c.id, "reason", reason, "capabilities", caps.String())
	c.mu.Unlock()

	c.observer.CapabilityDegraded(caps, reason)
}
