package question

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validQuestion(id string) Question {
	return Question{
		ID:              id,
		Text:            "Describe a recent project.",
		Type:            TypeBehavioral,
		AnswerMode:      AnswerHybrid,
		DurationSeconds: 60,
	}
}

func TestValidateListRejectsEmpty(t *testing.T) {
	require.ErrorIs(t, ValidateList(nil), ErrNoQuestions)
}

func TestValidateListRejectsDuplicateIDs(t *testing.T) {
	err := ValidateList([]Question{validQuestion("q1"), validQuestion("q1")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate id")
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Question)
		wantErr string
	}{
		{name: "valid", mutate: func(*Question) {}},
		{name: "missing text", mutate: func(q *Question) { q.Text = " " }, wantErr: "text is required"},
		{name: "unknown type", mutate: func(q *Question) { q.Type = "essay" }, wantErr: "unknown type"},
		{name: "unknown mode", mutate: func(q *Question) { q.AnswerMode = "sing" }, wantErr: "unknown answer mode"},
		{name: "zero duration", mutate: func(q *Question) { q.DurationSeconds = 0 }, wantErr: "duration must be > 0"},
		{
			name: "duplicate option",
			mutate: func(q *Question) {
				q.Options = []Option{{Key: "a", Text: "x"}, {Key: "a", Text: "y"}}
			},
			wantErr: "duplicate option",
		},
		{
			name: "correct answer not an option",
			mutate: func(q *Question) {
				q.Options = []Option{{Key: "a", Text: "x"}}
				q.CorrectAnswer = "b"
			},
			wantErr: "is not an option",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := validQuestion("q1")
			tc.mutate(&q)
			err := q.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTotalDuration(t *testing.T) {
	a := validQuestion("a")
	b := validQuestion("b")
	b.DurationSeconds = 30
	require.Equal(t, 90*time.Second, TotalDuration([]Question{a, b}))
}

func TestBankModeFollowsAssessmentType(t *testing.T) {
	require.Equal(t, ModeConversational, Bank{AssessmentType: AssessmentInterview}.Mode())
	require.Equal(t, ModeTimed, Bank{AssessmentType: AssessmentAptitude}.Mode())
	require.Equal(t, ModeTimed, Bank{AssessmentType: AssessmentCoding}.Mode())
	require.Equal(t, ModeTimed, Bank{AssessmentType: AssessmentCommunication}.Mode())
}

func TestParseAssessmentType(t *testing.T) {
	got, err := ParseAssessmentType(" Aptitude ")
	require.NoError(t, err)
	require.Equal(t, AssessmentAptitude, got)

	_, err = ParseAssessmentType("")
	require.ErrorIs(t, err, ErrMissingAssessmentType)

	_, err = ParseAssessmentType("[APTITUDE Interview]")
	require.Error(t, err)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	interview := Bank{
		AssessmentType: AssessmentInterview,
		Questions:      []Question{{Text: "Tell me about yourself."}},
	}.Normalize()
	require.Equal(t, "q1", interview.Questions[0].ID)
	require.Equal(t, TypeBehavioral, interview.Questions[0].Type)
	require.Equal(t, AnswerHybrid, interview.Questions[0].AnswerMode)
	require.Equal(t, DefaultInterviewDuration, interview.Questions[0].DurationSeconds)

	aptitude := Bank{
		AssessmentType: AssessmentAptitude,
		Questions: []Question{{
			ID:      "a1",
			Text:    "Pick one",
			Options: []Option{{Key: "a", Text: "yes"}},
		}},
	}.Normalize()
	require.Equal(t, TypeGeneral, aptitude.Questions[0].Type)
	require.Equal(t, AnswerWrite, aptitude.Questions[0].AnswerMode)
	require.Equal(t, DefaultTimedDuration, aptitude.Questions[0].DurationSeconds)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := Bank{AssessmentType: AssessmentAptitude, Questions: []Question{{Text: "x"}}}
	_ = in.Normalize()
	require.Empty(t, in.Questions[0].ID)
}
