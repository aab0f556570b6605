package result

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/question"
	"github.com/stretchr/testify/require"
)

func testQuestions() []question.Question {
	return []question.Question{
		{ID: "q1", Text: "One", DurationSeconds: 60},
		{ID: "q2", Text: "Two", DurationSeconds: 60},
		{ID: "q3", Text: "Three", DurationSeconds: 60},
	}
}

func TestFinalizeOrdersAnswersAndCountsAnswered(t *testing.T) {
	a := NewAssembler("sess-1", question.AssessmentAptitude, testQuestions(), 180*time.Second, nil)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.Record(answer.Answer{QuestionID: "q3", Kind: answer.KindText, Text: "C", CapturedAt: at.Add(2 * time.Second)}))
	require.NoError(t, a.Record(answer.Answer{QuestionID: "q1", Kind: answer.KindChoice, Choice: "b", CapturedAt: at}))
	require.NoError(t, a.Record(answer.Answer{QuestionID: "q2", Kind: answer.KindText, Forced: true, CapturedAt: at.Add(time.Second)}))
	require.NoError(t, a.Flag("q3", true))
	require.NoError(t, a.Flag("q1", true))
	require.NoError(t, a.Flag("q1", false))

	res := a.Finalize(60*time.Second, at.Add(2*time.Minute))

	require.Equal(t, "sess-1", res.SessionID)
	require.Equal(t, 3, res.TotalQuestions)
	require.Equal(t, 2, res.AnsweredQuestions)
	require.Equal(t, 120, res.TimeTakenSeconds)
	require.Equal(t, []string{"q3"}, res.FlaggedQuestions)
	require.Equal(t, question.AssessmentAptitude, res.AssessmentType)
	require.Len(t, res.Answers, 3)
	require.Equal(t, "q1", res.Answers[0].QuestionID)
	require.Equal(t, "b", res.Answers[0].Answer)
	require.Equal(t, "b", res.Answers[0].Choice)
	require.True(t, res.Answers[1].Forced)
	require.Equal(t, "C", res.Answers[2].Answer)
}

func TestRecordReplacesAndRejectsUnknown(t *testing.T) {
	a := NewAssembler("s", question.AssessmentCoding, testQuestions(), time.Minute, nil)

	require.NoError(t, a.Record(answer.Answer{QuestionID: "q1", Kind: answer.KindText, Text: "first"}))
	require.NoError(t, a.Record(answer.Answer{QuestionID: "q1", Kind: answer.KindText, Text: "second"}))
	require.ErrorIs(t, a.Record(answer.Answer{QuestionID: "nope"}), ErrUnknownQuestion)
	require.ErrorIs(t, a.Flag("nope", true), ErrUnknownQuestion)

	res := a.Finalize(0, time.Now())
	require.Len(t, res.Answers, 1)
	require.Equal(t, "second", res.Answers[0].Answer)
	require.Equal(t, 1, a.Answered())
}

func TestFinalizeClampsTimeTaken(t *testing.T) {
	a := NewAssembler("s", question.AssessmentCoding, testQuestions(), time.Minute, nil)
	require.Equal(t, 0, a.Finalize(2*time.Minute, time.Now()).TimeTakenSeconds)
	require.Equal(t, 60, a.Finalize(-time.Second, time.Now()).TimeTakenSeconds)
	require.Empty(t, a.Finalize(0, time.Now()).FlaggedQuestions)
}

func TestSubmitDelegatesAndReturnsFailure(t *testing.T) {
	calls := 0
	boom := errors.New("offline")
	a := NewAssembler("s", question.AssessmentCoding, testQuestions(), time.Minute, SubmitterFunc(func(context.Context, SessionResult) error {
		calls++
		return boom
	}))

	err := a.Submit(context.Background(), a.Finalize(0, time.Now()))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)

}

func TestSubmitWithoutSubmitterFails(t *testing.T) {
	err := NewAssembler("s", question.AssessmentCoding, nil, 0, nil).Submit(context.Background(), SessionResult{})
	require.ErrorIs(t, err, ErrNoSubmitter)
}
