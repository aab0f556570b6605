package session

import (
	"time"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/question"
)

// Snapshot is the session as presentation layers render it.
type Snapshot struct {
	SessionID                string                  `json:"session_id,omitempty"`
	Status                   fsm.Status              `json:"status"`
	Phase                    fsm.State               `json:"phase"`
	Turn                     fsm.Turn                `json:"turn"`
	Mode                     question.Mode           `json:"mode,omitempty"`
	AssessmentType           question.AssessmentType `json:"assessment_type,omitempty"`
	CurrentQuestionIndex     int                     `json:"current_question_index"`
	TotalQuestions           int                     `json:"total_questions"`
	TimeRemainingSeconds     int                     `json:"time_remaining_seconds"`
	QuestionRemainingSeconds int                     `json:"question_remaining_seconds,omitempty"`
	Question                 *QuestionView           `json:"question,omitempty"`
	Answered                 int                     `json:"answered"`
	Flagged                  []string                `json:"flagged,omitempty"`
	Capabilities             capture.Capabilities    `json:"capabilities"`
	Transcript               string                  `json:"transcript,omitempty"`
	Draft                    string                  `json:"draft,omitempty"`
	Prompt                   string                  `json:"prompt,omitempty"`
	Notice                   string                  `json:"notice,omitempty"`
	StartedAt                *time.Time              `json:"started_at,omitempty"`
	CompletedAt              *time.Time              `json:"completed_at,omitempty"`
	SubmitError              string                  `json:"submit_error,omitempty"`
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	ID              string              `json:"id"`
	Text            string              `json:"text"`
	Type            question.Type       `json:"type"`
	AnswerMode      question.AnswerMode `json:"answer_mode"`
	DurationSeconds int                 `json:"duration_seconds"`
	CodeSnippet     string              `json:"code_snippet,omitempty"`
	Options         []question.Option   `json:"options,omitempty"`
}

func viewOf(q question.Question) *QuestionView {
	return &QuestionView{
		ID:              q.ID,
		Text:            q.Text,
		Type:            q.Type,
		AnswerMode:      q.AnswerMode,
		DurationSeconds: q.DurationSeconds,
		CodeSnippet:     q.CodeSnippet,
		Options:         append([]question.Option(nil), q.Options...),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:            c.id,
		Status:               fsm.StatusOf(c.state),
		Phase:                c.state,
		Turn:                 c.turn,
		Mode:                 c.mode,
		AssessmentType:       c.assessmentType,
		CurrentQuestionIndex: c.index,
		TotalQuestions:       len(c.questions),
		TimeRemainingSeconds: seconds(c.remainingLocked()),
		Capabilities:         c.caps,
		Prompt:               c.prompt,
		Notice:               c.notice,
	}
	if c.perQuestion != nil {
		s.QuestionRemainingSeconds = seconds(c.perQuestion.Remaining())
	}
	if c.assembler != nil {
		s.Answered = c.assembler.Answered()
		s.Flagged = c.assembler.Flagged()
	}
	if (c.state == fsm.StateQuestioning || c.state == fsm.StateInProgress) && c.index < len(c.questions) {
		s.Question = viewOf(c.questions[c.index])
	}
	if c.questionOpenLocked() && !c.completing {
		s.Transcript = c.capture.Transcript()
		s.Draft = c.capture.Draft()
	}
	if !c.startedAt.IsZero() {
		started := c.startedAt
		s.StartedAt = &started
	}
	if !c.completedAt.IsZero() {
		completed := c.completedAt
		s.CompletedAt = &completed
	}
	if c.submitErr != nil {
		s.SubmitError = c.submitErr.Error()
	}
	return s
}

// seconds rounds up so a countdown shows 1 until it reaches zero.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
