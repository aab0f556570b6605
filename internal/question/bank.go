package question

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AssessmentType selects the session flavor. It must be explicit; it is
// never inferred from free-text notes.
type AssessmentType string

const (
	AssessmentInterview     AssessmentType = "interview"
	AssessmentAptitude      AssessmentType = "aptitude"
	AssessmentCoding        AssessmentType = "coding"
	AssessmentCommunication AssessmentType = "communication"
)

// Mode is the session flavor driven by the controller.
type Mode string

const (
	ModeConversational Mode = "conversational"
	ModeTimed          Mode = "timed"
)

const (
	DefaultInterviewDuration = 180
	DefaultTimedDuration     = 60
)

// Bank is everything a source returns for one candidate.
type Bank struct {
	AssessmentType   AssessmentType `yaml:"assessment_type" json:"assessment_type"`
	CandidateName    string         `yaml:"candidate_name,omitempty" json:"candidate_name,omitempty"`
	JobTitle         string         `yaml:"job_title,omitempty" json:"job_title,omitempty"`
	TimeLimitSeconds int            `yaml:"time_limit_seconds,omitempty" json:"time_limit_seconds,omitempty"`
	Questions        []Question     `yaml:"questions" json:"questions"`
}

// Source loads the question bank bound to a candidate token.
type Source interface {
	Load(ctx context.Context, token string) (Bank, error)
}

func ParseAssessmentType(raw string) (AssessmentType, error) {
	switch AssessmentType(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", ErrMissingAssessmentType
	case AssessmentInterview:
		return AssessmentInterview, nil
	case AssessmentAptitude:
		return AssessmentAptitude, nil
	case AssessmentCoding:
		return AssessmentCoding, nil
	case AssessmentCommunication:
		return AssessmentCommunication, nil
	default:
		return "", fmt.Errorf("unknown assessment type %q", raw)
	}
}

func (b Bank) Mode() Mode {
	if b.AssessmentType == AssessmentInterview {
		return ModeConversational
	}
	return ModeTimed
}

// TimeLimit is the overall budget override; zero means the sum of
// question durations.
func (b Bank) TimeLimit() time.Duration {
	return time.Duration(b.TimeLimitSeconds) * time.Second
}

// Normalize fills per-question defaults for the bank's assessment type.
func (b Bank) Normalize() Bank {
	out := b
	out.Questions = make([]Question, len(b.Questions))
	for i, q := range b.Questions {
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		q.Type = Type(strings.ToLower(strings.TrimSpace(string(q.Type))))
		q.AnswerMode = AnswerMode(strings.ToLower(strings.TrimSpace(string(q.AnswerMode))))
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if q.Type == "" {
			q.Type = b.defaultType()
		}
		if q.AnswerMode == "" {
			q.AnswerMode = b.defaultAnswerMode(q)
		}
		if q.DurationSeconds <= 0 {
			q.DurationSeconds = b.defaultDuration()
		}
		out.Questions[i] = q
	}
	return out
}

func (b Bank) Validate() error {
	if _, err := ParseAssessmentType(string(b.AssessmentType)); err != nil {
		return err
	}
	if b.TimeLimitSeconds < 0 {
		return fmt.Errorf("time_limit_seconds must be >= 0")
	}
	return ValidateList(b.Questions)
}

func (b Bank) defaultType() Type {
	switch b.AssessmentType {
	case AssessmentCoding:
		return TypeCoding
	case AssessmentInterview:
		return TypeBehavioral
	default:
		return TypeGeneral
	}
}

func (b Bank) defaultAnswerMode(q Question) AnswerMode {
	switch {
	case q.IsChoice(), q.Type == TypeCoding:
		return AnswerWrite
	case b.Mode() == ModeConversational:
		return AnswerHybrid
	default:
		return AnswerWrite
	}
}

func (b Bank) defaultDuration() int {
	if b.Mode() == ModeConversational {
		return DefaultInterviewDuration
	}
	return DefaultTimedDuration
}
