package indicator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/session"
)

type cueRecorder struct {
	mu    sync.Mutex
	kinds []cueKind
}

func (r *cueRecorder) play(_ context.Context, kind cueKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	return nil
}

func (r *cueRecorder) played() []cueKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cueKind(nil), r.kinds...)
}

func TestNotifierDispatchesSessionProgress(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.Enable = true

	notify := New(cfg, nil)
	notify.SessionStarted(session.Snapshot{TotalQuestions: 3})
	notify.QuestionPresented(session.Snapshot{
		CurrentQuestionIndex: 1,
		TotalQuestions:       3,
		Question:             &session.QuestionView{ID: "q2", DurationSeconds: 60},
	})
	notify.CapabilityDegraded(capture.Capabilities{Microphone: true, Recognition: true}, "media unavailable")
	notify.SessionCompleted(session.Completion{})
	notify.Hide()

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "--quiet dispatch notify 1 5000 rgb(89b4fa) Assessment started: 3 questions", lines[0])
	require.Equal(t, "--quiet dispatch notify 1 60000 rgb(89b4fa) Question 2 of 3", lines[1])
	require.Equal(t, "--quiet dispatch notify 3 1600 rgb(f38ba8) Camera not available", lines[2])
	require.Equal(t, "--quiet dispatch notify 5 5000 rgb(a6e3a1) Assessment complete", lines[3])
	require.Equal(t, "--quiet dispatch dismissnotify", lines[4])
}

func TestNotifierSubmissionFailureUsesErrorTimeoutFallback(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 0

	notify := New(cfg, nil)
	notify.SessionCompleted(session.Completion{SubmitErr: errors.New("backend down")})

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch notify 3 1200 rgb(f38ba8) Could not submit your responses\n", string(data))
}

func TestNotifierDisabledSkipsHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.SessionStarted(session.Snapshot{TotalQuestions: 1})
	notify.QuestionPresented(session.Snapshot{TotalQuestions: 1})
	notify.CapabilityDegraded(capture.Capabilities{}, "ignored")
	notify.SessionCompleted(session.Completion{})
	notify.Hide()

	_, err := os.Stat(argsFile)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierDispatchFailureIsAbsorbed(t *testing.T) {
	installHyprctlStub(t, `
exit 1
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	require.NotPanics(t, func() {
		notify.QuestionPresented(session.Snapshot{TotalQuestions: 1})
	})
}

func TestNotifierCuesFollowTriggers(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = true

	rec := &cueRecorder{}
	notify := New(cfg, nil)
	notify.play = rec.play

	notify.QuestionPresented(session.Snapshot{TotalQuestions: 2})
	notify.Wait()
	notify.AnswerCommitted(answer.Answer{Kind: answer.KindText, Text: "x"}, session.TriggerCandidate)
	notify.Wait()
	notify.AnswerCommitted(answer.Answer{}, session.TriggerQuestionTimeout)
	notify.Wait()
	notify.SessionCompleted(session.Completion{SubmitErr: errors.New("boom")})
	notify.Wait()
	notify.SessionCompleted(session.Completion{})
	notify.Wait()

	require.Equal(t, []cueKind{cueQuestion, cueAnswer, cueAutoSubmit, cueAlert, cueFinish}, rec.played())
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
