package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
)

// CommandSynthesizer speaks by running a TTS command (espeak-ng by
// default). The prompt replaces the {text} placeholder, or is appended
// as the final argument when there is none.
type CommandSynthesizer struct {
	Argv   []string
	Logger *slog.Logger
}

func (s CommandSynthesizer) Speak(ctx context.Context, text string) (capture.Utterance, error) {
	if len(s.Argv) == 0 || strings.TrimSpace(s.Argv[0]) == "" {
		return nil, errors.New("tts command is empty")
	}
	if strings.TrimSpace(text) == "" {
		return finishedUtterance(), nil
	}

	speakCtx, cancel := context.WithCancel(ctx)
	args := commandArgs(s.Argv[1:], text)
	cmd := exec.CommandContext(speakCtx, s.Argv[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start tts command %q: %w", s.Argv[0], err)
	}

	u := &commandUtterance{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(u.done)
		defer cancel()
		err := cmd.Wait()
		if err != nil && speakCtx.Err() == nil && s.Logger != nil {
			s.Logger.Warn("tts command failed", "command", s.Argv[0], "error", err.Error())
		}
	}()
	return u, nil
}

func commandArgs(base []string, text string) []string {
	args := make([]string, 0, len(base)+1)
	substituted := false
	for _, arg := range base {
		if strings.Contains(arg, config.TextPlaceholder) {
			arg = strings.ReplaceAll(arg, config.TextPlaceholder, text)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, text)
	}
	return args
}

// Available reports whether the TTS binary resolves on PATH.
func (s CommandSynthesizer) Available() error {
	if len(s.Argv) == 0 {
		return errors.New("tts command is empty")
	}
	if _, err := exec.LookPath(s.Argv[0]); err != nil {
		return fmt.Errorf("tts command %q not found: %w", s.Argv[0], err)
	}
	return nil
}

type commandUtterance struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (u *commandUtterance) Done() <-chan struct{} { return u.done }

func (u *commandUtterance) Cancel() {
	u.once.Do(u.cancel)
}

func finishedUtterance() *commandUtterance {
	u := &commandUtterance{cancel: func() {}, done: make(chan struct{})}
	close(u.done)
	return u
}
