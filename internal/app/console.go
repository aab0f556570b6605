package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/ipc"
	"github.com/rbright/proctor/internal/session"
)

// console renders session progress for the candidate's terminal.
type console struct {
	session.NopObserver

	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) SessionStarted(s session.Snapshot) {
	c.printf("assessment started: %d questions (%s)\n", s.TotalQuestions, s.Mode)
	if s.TimeRemainingSeconds > 0 {
		c.printf("time limit: %s\n", formatSeconds(s.TimeRemainingSeconds))
	}
	if s.Notice != "" {
		c.printf("notice: %s\n", s.Notice)
	}
}

func (c *console) Prompted(text string) {
	c.printf("» %s\n", text)
}

func (c *console) QuestionPresented(s session.Snapshot) {
	q := s.Question
	if q == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nQuestion %d of %d [%s, %s, %s]\n", s.CurrentQuestionIndex+1, s.TotalQuestions, q.Type, q.AnswerMode, formatSeconds(q.DurationSeconds))
	fmt.Fprintf(&b, "%s\n", q.Text)
	if q.CodeSnippet != "" {
		fmt.Fprintf(&b, "\n%s\n\n", strings.TrimRight(q.CodeSnippet, "\n"))
	}
	for _, opt := range q.Options {
		fmt.Fprintf(&b, "  %s) %s\n", opt.Key, opt.Text)
	}
	if s.Notice != "" {
		fmt.Fprintf(&b, "notice: %s\n", s.Notice)
	}
	c.printf("%s", b.String())
}

func (c *console) AnswerCommitted(ans answer.Answer, trigger session.Trigger) {
	switch {
	case trigger != session.TriggerCandidate:
		c.printf("time is up (%s); answer recorded\n", trigger)
	case ans.Empty():
		c.printf("question skipped\n")
	default:
		c.printf("answer recorded\n")
	}
}

func (c *console) CapabilityDegraded(caps capture.Capabilities, reason string) {
	c.printf("notice: %s (%s)\n", reason, caps.String())
}

func (c *console) SessionCompleted(done session.Completion) {
	res := done.Result
	c.printf("\nassessment complete: %d of %d answered", res.AnsweredQuestions, res.TotalQuestions)
	if len(res.FlaggedQuestions) > 0 {
		c.printf(", %d flagged", len(res.FlaggedQuestions))
	}
	c.printf("\n")
	if done.SubmitErr != nil {
		c.printf("could not submit responses: %v\n", done.SubmitErr)
	}
}

func formatSeconds(total int) string {
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	if total%60 == 0 {
		return fmt.Sprintf("%dm", total/60)
	}
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}

// handler is the slice of the controller the terminal reader drives.
type handler interface {
	Handle(ctx context.Context, req ipc.Request) ipc.Response
}

// readAnswers turns terminal lines into session commands until ctx is
// done or input ends. A bare line answers the open question.
func readAnswers(ctx context.Context, in io.Reader, h handler, errOut io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		req, ok := parseConsoleLine(scanner.Text())
		if !ok {
			continue
		}
		resp := h.Handle(ctx, req)
		if !resp.OK && resp.Error != "" {
			fmt.Fprintf(errOut, "error: %s\n", resp.Error)
		}
	}
}

func parseConsoleLine(line string) (ipc.Request, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		if trimmed == "" {
			return ipc.Request{}, false
		}
		return ipc.Request{Command: ipc.CommandAnswer, Text: trimmed}, true
	}

	command, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case ipc.CommandSkip, ipc.CommandFinish, ipc.CommandStatus:
		return ipc.Request{Command: command}, true
	case "flag":
		return ipc.Request{Command: ipc.CommandFlag, On: arg != "off"}, true
	case "choose":
		if arg == "" {
			return ipc.Request{}, false
		}
		return ipc.Request{Command: ipc.CommandAnswer, Choice: arg}, true
	case "draft":
		return ipc.Request{Command: ipc.CommandDraft, Text: arg}, true
	case "submit":
		return ipc.Request{Command: ipc.CommandAnswer}, true
	default:
		return ipc.Request{Command: ipc.CommandAnswer, Text: trimmed}, true
	}
}
