// Package result accumulates committed answers into the record submitted
// when a session completes.
package result

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/question"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrNoSubmitter     = errors.New("no submitter configured")
)

// AnswerRecord is one answer in submission form.
type AnswerRecord struct {
	QuestionID string      `json:"question_id"`
	Kind       answer.Kind `json:"kind"`
	Answer     string      `json:"answer"`
	Choice     string      `json:"choice,omitempty"`
	AudioURL   string      `json:"audio_url,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Forced     bool        `json:"forced"`

	// Audio is uploaded by the submitter and replaced by AudioURL.
	Audio []byte `json:"-"`
}

// SessionResult is the immutable outcome of one completed session.
type SessionResult struct {
	SessionID         string                  `json:"session_id"`
	Answers           []AnswerRecord          `json:"answers"`
	TotalQuestions    int                     `json:"total_questions"`
	AnsweredQuestions int                     `json:"answered_questions"`
	TimeTakenSeconds  int                     `json:"time_taken"`
	FlaggedQuestions  []string                `json:"flagged_questions"`
	AssessmentType    question.AssessmentType `json:"assessment_type,omitempty"`
	CompletedAt       time.Time               `json:"completed_at"`
}

// Submitter delivers a finalized result to the backend.
type Submitter interface {
	Submit(ctx context.Context, res SessionResult) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, res SessionResult) error

func (f SubmitterFunc) Submit(ctx context.Context, res SessionResult) error { return f(ctx, res) }

// Assembler collects answers keyed by question id and finalizes them in
// presentation order.
type Assembler struct {
	sessionID      string
	assessmentType question.AssessmentType
	budget         time.Duration
	order          []string
	known          map[string]struct{}
	submitter      Submitter

	mu      sync.Mutex
	answers map[string]answer.Answer
	flagged map[string]bool
}

// NewAssembler prepares an assembler for questions. budget is the total
// session time used to compute time taken.
func NewAssembler(sessionID string, assessmentType question.AssessmentType, questions []question.Question, budget time.Duration, submitter Submitter) *Assembler {
	a := &Assembler{
		sessionID:      sessionID,
		assessmentType: assessmentType,
		budget:         budget,
		order:          make([]string, 0, len(questions)),
		known:          make(map[string]struct{}, len(questions)),
		submitter:      submitter,
		answers:        make(map[string]answer.Answer, len(questions)),
		flagged:        make(map[string]bool),
	}
	for _, q := range questions {
		a.order = append(a.order, q.ID)
		a.known[q.ID] = struct{}{}
	}
	return a
}

// Record stores ans for its question, replacing any earlier record.
func (a *Assembler) Record(ans answer.Answer) error {
	if _, ok := a.known[ans.QuestionID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, ans.QuestionID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers[ans.QuestionID] = ans
	return nil
}

// Flag marks or unmarks a question for review.
func (a *Assembler) Flag(id string, on bool) error {
	if _, ok := a.known[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.flagged[id] = true
	} else {
		delete(a.flagged, id)
	}
	return nil
}

// Flagged lists flagged ids in presentation order.
func (a *Assembler) Flagged() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flaggedLocked()
}

func (a *Assembler) flaggedLocked() []string {
	out := make([]string, 0, len(a.flagged))
	for _, id := range a.order {
		if a.flagged[id] {
			out = append(out, id)
		}
	}
	return out
}

// Answered counts recorded answers that carry content.
func (a *Assembler) Answered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answeredLocked()
}

func (a *Assembler) answeredLocked() int {
	count := 0
	for _, ans := range a.answers {
		if !ans.Empty() {
			count++
		}
	}
	return count
}

// Finalize builds the result. Questions with no recorded answer are
// omitted from Answers but still counted in TotalQuestions.
func (a *Assembler) Finalize(remaining time.Duration, completedAt time.Time) SessionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	remaining = max(remaining, 0)
	taken := max(a.budget-remaining, 0)

	res := SessionResult{
		SessionID:         a.sessionID,
		Answers:           make([]AnswerRecord, 0, len(a.answers)),
		TotalQuestions:    len(a.order),
		AnsweredQuestions: a.answeredLocked(),
		TimeTakenSeconds:  int(taken.Round(time.Second) / time.Second),
		FlaggedQuestions:  a.flaggedLocked(),
		AssessmentType:    a.assessmentType,
		CompletedAt:       completedAt.UTC(),
	}
	for _, id := range a.order {
		ans, ok := a.answers[id]
		if !ok {
			continue
		}
		res.Answers = append(res.Answers, AnswerRecord{
			QuestionID: ans.QuestionID,
			Kind:       ans.Kind,
			Answer:     ans.Value(),
			Choice:     ans.Choice,
			Timestamp:  ans.CapturedAt.UTC(),
			Forced:     ans.Forced,
			Audio:      ans.Audio,
		})
	}
	return res
}

// Submit hands res to the configured submitter once. Failures are
// returned as-is; nothing is retried or queued.
func (a *Assembler) Submit(ctx context.Context, res SessionResult) error {
	if a.submitter == nil {
		return ErrNoSubmitter
	}
	return a.submitter.Submit(ctx, res)
}
