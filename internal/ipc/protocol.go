package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Commands understood by the session owner.
const (
	CommandStatus = "status"
	CommandAnswer = "answer"
	CommandDraft  = "draft"
	CommandFlag   = "flag"
	CommandSkip   = "skip"
	CommandFinish = "finish"
	CommandAbort  = "abort"
)

// maxMessageBytes bounds one newline-terminated request or response.
const maxMessageBytes = 1 << 20

var (
	ErrUnknownCommand  = errors.New("unknown command")
	errMessageTooLarge = fmt.Errorf("message exceeds %d bytes", maxMessageBytes)
)

// Request is one command sent to the running session owner.
type Request struct {
	Command    string `json:"command"`
	Text       string `json:"text,omitempty"`
	Choice     string `json:"choice,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	// On selects flag (true) or unflag (false) for the flag command.
	On bool `json:"on,omitempty"`
}

// Validate rejects requests the owner would never act on.
func (r Request) Validate() error {
	switch r.Command {
	case CommandStatus, CommandAnswer, CommandDraft, CommandFlag, CommandSkip, CommandFinish, CommandAbort:
		return nil
	case "":
		return fmt.Errorf("%w: empty", ErrUnknownCommand)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, r.Command)
	}
}

// Response carries the owner's phase and, when available, a JSON session snapshot.
type Response struct {
	OK       bool            `json:"ok"`
	State    string          `json:"state,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// DecodeSnapshot unmarshals the attached snapshot into v. It reports
// false when the response carries none.
func (r Response) DecodeSnapshot(v any) (bool, error) {
	if len(r.Snapshot) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(r.Snapshot, v); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	return true, nil
}
