// Package question defines assessment questions and the sources that
// load them for a candidate token.
package question

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeReading    Type = "reading"
	TypeListening  Type = "listening"
	TypeGrammar    Type = "grammar"
	TypeTechnical  Type = "technical"
	TypeBehavioral Type = "behavioral"
	TypeCoding     Type = "coding"
	TypeGeneral    Type = "general"
)

// AnswerMode is how a candidate is expected to respond.
type AnswerMode string

const (
	AnswerWrite  AnswerMode = "write"
	AnswerSpeak  AnswerMode = "speak"
	AnswerHybrid AnswerMode = "hybrid"
)

// Option is one choice of a multiple-choice question.
type Option struct {
	Key  string `yaml:"key" json:"key"`
	Text string `yaml:"text" json:"text"`
}

type Question struct {
	ID              string     `yaml:"id" json:"id"`
	Text            string     `yaml:"text" json:"text"`
	Type            Type       `yaml:"type" json:"type"`
	AnswerMode      AnswerMode `yaml:"answer_mode" json:"answer_mode"`
	DurationSeconds int        `yaml:"duration_seconds" json:"duration_seconds"`
	CodeSnippet     string     `yaml:"code_snippet,omitempty" json:"code_snippet,omitempty"`
	Options         []Option   `yaml:"options,omitempty" json:"options,omitempty"`
	CorrectAnswer   string     `yaml:"correct_answer,omitempty" json:"correct_answer,omitempty"`
	ExpectedAnswer  string     `yaml:"expected_answer,omitempty" json:"expected_answer,omitempty"`
}

var (
	ErrNoQuestions           = errors.New("no questions available")
	ErrInvalidToken          = errors.New("interview not found or link has expired")
	ErrAlreadyCompleted      = errors.New("assessment already completed")
	ErrMissingAssessmentType = errors.New("assessment type is required")
)

// Duration returns the response window for the question.
func (q Question) Duration() time.Duration {
	return time.Duration(q.DurationSeconds) * time.Second
}

// IsChoice reports whether the question is answered by picking an option.
func (q Question) IsChoice() bool {
	return len(q.Options) > 0
}

// HasOption reports whether key names one of the question's options.
func (q Question) HasOption(key string) bool {
	for _, option := range q.Options {
		if option.Key == key {
			return true
		}
	}
	return false
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("question id is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question %s: text is required", q.ID)
	}
	switch q.Type {
	case TypeReading, TypeListening, TypeGrammar, TypeTechnical, TypeBehavioral, TypeCoding, TypeGeneral:
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	switch q.AnswerMode {
	case AnswerWrite, AnswerSpeak, AnswerHybrid:
	default:
		return fmt.Errorf("question %s: unknown answer mode %q", q.ID, q.AnswerMode)
	}
	if q.DurationSeconds <= 0 {
		return fmt.Errorf("question %s: duration must be > 0", q.ID)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, option := range q.Options {
		if strings.TrimSpace(option.Key) == "" {
			return fmt.Errorf("question %s: option key is required", q.ID)
		}
		if _, ok := seen[option.Key]; ok {
			return fmt.Errorf("question %s: duplicate option %q", q.ID, option.Key)
		}
		seen[option.Key] = struct{}{}
	}
	if q.CorrectAnswer != "" && q.IsChoice() && !q.HasOption(q.CorrectAnswer) {
		return fmt.Errorf("question %s: correct answer %q is not an option", q.ID, q.CorrectAnswer)
	}
	return nil
}

// ValidateList checks every question and rejects empty lists and
// duplicate ids.
func ValidateList(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question[%d]: %w", i, err)
		}
		if _, ok := seen[q.ID]; ok {
			return fmt.Errorf("question[%d]: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// TotalDuration sums per-question durations.
func TotalDuration(questions []Question) time.Duration {
	var total time.Duration
	for _, q := range questions {
		total += q.Duration()
	}
	return total
}
