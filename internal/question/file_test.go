package question

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBankYAML(t *testing.T) {
	bank, err := ParseBank([]byte(`
assessment_type: aptitude
time_limit_seconds: 300
questions:
  - id: g1
    text: Choose the correct form.
    type: grammar
    options:
      - {key: a, text: "He go"}
      - {key: b, text: "He goes"}
    correct_answer: b
  - id: l1
    text: Repeat the sentence you hear.
    type: listening
    answer_mode: speak
    duration_seconds: 45
`))
	require.NoError(t, err)
	require.Equal(t, AssessmentAptitude, bank.AssessmentType)
	require.Equal(t, ModeTimed, bank.Mode())
	require.Len(t, bank.Questions, 2)
	require.Equal(t, AnswerWrite, bank.Questions[0].AnswerMode)
	require.Equal(t, DefaultTimedDuration, bank.Questions[0].DurationSeconds)
	require.Equal(t, AnswerSpeak, bank.Questions[1].AnswerMode)
	require.Equal(t, 45, bank.Questions[1].DurationSeconds)
}

func TestParseBankRequiresAssessmentType(t *testing.T) {
	_, err := ParseBank([]byte("questions:\n  - text: hello\n"))
	require.ErrorIs(t, err, ErrMissingAssessmentType)
}

func TestParseBankRejectsEmptyQuestions(t *testing.T) {
	_, err := ParseBank([]byte("assessment_type: interview\nquestions: []\n"))
	require.ErrorIs(t, err, ErrNoQuestions)

	_, err = ParseBank([]byte("  \n"))
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestParseBankRejectsUnknownFields(t *testing.T) {
	_, err := ParseBank([]byte("assessment_type: interview\nquestionz: []\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse question bank")
}

func TestParseBankAcceptsJSON(t *testing.T) {
	bank, err := ParseBank([]byte(`{"assessment_type":"interview","questions":[{"id":"q1","text":"Why us?"}]}`))
	require.NoError(t, err)
	require.Equal(t, ModeConversational, bank.Mode())
	require.Equal(t, DefaultInterviewDuration, bank.Questions[0].DurationSeconds)
}

func TestFileSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assessment_type: coding\nquestions:\n  - text: Reverse a list.\n"), 0o600))

	bank, err := FileSource{Path: path}.Load(context.Background(), "ignored")
	require.NoError(t, err)
	require.Equal(t, TypeCoding, bank.Questions[0].Type)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "read question bank")
}
