// Package indicator surfaces session progress as desktop notifications
// and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/hypr"
	"github.com/rbright/proctor/internal/session"
)

const (
	colorInfo  = "rgb(89b4fa)"
	colorDone  = "rgb(a6e3a1)"
	colorError = "rgb(f38ba8)"

	progressTimeoutMS = 300000
	doneTimeoutMS     = 5000
)

// Notifier is a session.Observer that routes notifications through
// Hyprland or desktop DBus based on config backend.
type Notifier struct {
	session.NopObserver

	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	player   *cuePlayer
	play     func(context.Context, cueKind) error

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	player := newCuePlayer()
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		player:   player,
		play:     player.play,
	}
}

func (n *Notifier) SessionStarted(s session.Snapshot) {
	if !n.cfg.Enable {
		return
	}
	n.run(func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconInfo, doneTimeoutMS, colorInfo, n.messages.started(s.TotalQuestions))
	})
}

func (n *Notifier) QuestionPresented(s session.Snapshot) {
	n.playCue(cueQuestion)
	if !n.cfg.Enable {
		return
	}
	timeout := progressTimeoutMS
	if s.Question != nil && s.Question.DurationSeconds > 0 {
		timeout = s.Question.DurationSeconds * 1000
	}
	n.run(func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconInfo, timeout, colorInfo, n.messages.progress(s.CurrentQuestionIndex+1, s.TotalQuestions))
	})
}

func (n *Notifier) AnswerCommitted(_ answer.Answer, trigger session.Trigger) {
	if trigger == session.TriggerCandidate {
		n.playCue(cueAnswer)
		return
	}
	n.playCue(cueAutoSubmit)
}

func (n *Notifier) CapabilityDegraded(caps capture.Capabilities, _ string) {
	text := n.messages.unavailable(caps)
	if text == "" {
		return
	}
	n.showError(text)
}

func (n *Notifier) SessionCompleted(c session.Completion) {
	if c.SubmitErr != nil {
		n.playCue(cueAlert)
		n.showError(n.messages.submitFailed)
		return
	}
	n.playCue(cueFinish)
	if !n.cfg.Enable {
		return
	}
	n.run(func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconOK, doneTimeoutMS, colorDone, n.messages.finished)
	})
}

// Hide dismisses the active notification.
func (n *Notifier) Hide() {
	if !n.cfg.Enable {
		return
	}
	n.run(n.dismiss)
}

// Wait blocks until queued cues have played.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

// Close waits for queued cues and releases the audio connection.
func (n *Notifier) Close() {
	n.cues.Wait()
	if n.player != nil {
		n.player.close()
	}
}

func (n *Notifier) showError(text string) {
	if !n.cfg.Enable {
		return
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.run(func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconError, timeout, colorError, text)
	})
}

// notify dispatches indicator output through the configured backend.
func (n *Notifier) notify(ctx context.Context, icon hypr.Icon, timeoutMS int, color string, text string) error {
	if n.desktop() {
		urgency := urgencyNormal
		if icon == hypr.IconError {
			urgency = urgencyCritical
		}
		return n.notifyDesktop(ctx, timeoutMS, text, urgency)
	}
	return hypr.Notify(ctx, hypr.Notification{Icon: icon, TimeoutMS: timeoutMS, Color: color, Text: text})
}

// dismiss removes indicator output from the configured backend.
func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktop() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string, urgency byte) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "proctor"
	}

	id, err := desktopNotify(ctx, desktopNotification{
		AppName:   appName,
		ReplaceID: replaceID,
		Summary:   "Assessment",
		Body:      text,
		TimeoutMS: timeoutMS,
		Urgency:   urgency,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	if err := fn(ctx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := n.play(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
