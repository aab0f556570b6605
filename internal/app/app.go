// Package app wires the command line to the session engine and its
// collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/proctor/internal/audio"
	"github.com/rbright/proctor/internal/cli"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/doctor"
	"github.com/rbright/proctor/internal/ipc"
	"github.com/rbright/proctor/internal/logging"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/session"
	"github.com/rbright/proctor/internal/version"
)

const binaryName = "proctor"

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Debug: parsed.Debug})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	if parsed.IsRemote() {
		return r.commandRemote(ctx, parsed)
	}

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandQuestions:
		return r.commandQuestions(ctx, parsed, cfgLoaded.Config, logger)
	case cli.CommandRun:
		return r.commandRun(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandQuestions(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	source, err := questionSource(parsed, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	bank, err := source.Load(ctx, parsed.Token)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "%s assessment (%s), %d questions, %s total\n",
		bank.AssessmentType, bank.Mode(), len(bank.Questions), question.TotalDuration(bank.Questions))
	if bank.CandidateName != "" || bank.JobTitle != "" {
		fmt.Fprintf(r.Stdout, "candidate=%q job=%q\n", bank.CandidateName, bank.JobTitle)
	}
	for i, q := range bank.Questions {
		fmt.Fprintf(r.Stdout, "%2d. [%s/%s %ds] %s\n", i+1, q.Type, q.AnswerMode, q.DurationSeconds, q.Text)
		for _, opt := range q.Options {
			fmt.Fprintf(r.Stdout, "      %s) %s\n", opt.Key, opt.Text)
		}
	}
	return 0
}

// commandRemote forwards a session command to the running owner.
func (r Runner) commandRemote(ctx context.Context, parsed cli.Parsed) int {
	req := ipc.Request{Command: string(parsed.Command)}
	switch parsed.Command {
	case cli.CommandAnswer, cli.CommandDraft:
		req.Text = parsed.Text
	case cli.CommandChoose:
		req.Command = ipc.CommandAnswer
		req.Choice = parsed.Operand
	case cli.CommandFlag:
		req.QuestionID = parsed.Operand
		req.On = !parsed.Unflag
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if parsed.Command == cli.CommandStatus {
		fmt.Fprintln(r.Stdout, describeStatus(resp))
		return 0
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func describeStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	var snap session.Snapshot
	if ok, err := resp.DecodeSnapshot(&snap); !ok || err != nil {
		return state
	}

	parts := []string{state}
	if snap.TotalQuestions > 0 {
		parts = append(parts, fmt.Sprintf("question %d/%d", min(snap.CurrentQuestionIndex+1, snap.TotalQuestions), snap.TotalQuestions))
	}
	if snap.QuestionRemainingSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds left on question", snap.QuestionRemainingSeconds))
	}
	if snap.TimeRemainingSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds left overall", snap.TimeRemainingSeconds))
	}
	if snap.Notice != "" {
		parts = append(parts, snap.Notice)
	}
	return strings.Join(parts, " | ")
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
