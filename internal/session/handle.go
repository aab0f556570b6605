package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/ipc"
)

// Handle serves IPC commands for the running session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	var (
		err     error
		message string
	)
	switch req.Command {
	case ipc.CommandStatus:
		message = "status"
	case ipc.CommandAnswer:
		err = c.Advance(answer.Input{Text: req.Text, Choice: req.Choice})
		message = "answer submitted"
	case ipc.CommandDraft:
		err = c.UpdateDraft(req.Text)
		message = "draft updated"
	case ipc.CommandFlag:
		id := req.QuestionID
		if id == "" {
			id = c.currentQuestionID()
		}
		err = c.Flag(id, req.On)
		message = "flag updated"
	case ipc.CommandSkip:
		err = c.Skip()
		message = "question skipped"
	case ipc.CommandFinish:
		err = c.Complete()
		message = "session completed"
	case ipc.CommandAbort:
		c.Teardown()
		message = "session aborted"
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
	return c.respond(message, err)
}

func (c *Controller) respond(message string, err error) ipc.Response {
	snap := c.Snapshot()
	resp := ipc.Response{OK: err == nil, State: string(snap.Phase)}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Message = message
	}
	if raw, marshalErr := json.Marshal(snap); marshalErr == nil {
		resp.Snapshot = raw
	}
	return resp
}

func (c *Controller) currentQuestionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index < len(c.questions) {
		return c.questions[c.index].ID
	}
	return ""
}
