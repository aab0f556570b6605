package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/capture/capturetest"
	"github.com/rbright/proctor/internal/clock"
	"github.com/rbright/proctor/internal/question"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	adapter  *capture.Adapter
	media    *capturetest.Media
	rec      *capturetest.Recognizer
	synth    *capturetest.Synthesizer
	listener *capturetest.Listener
	clock    *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		media:    &capturetest.Media{Tracks: capture.Tracks{Camera: true, Microphone: true}},
		rec:      &capturetest.Recognizer{},
		synth:    &capturetest.Synthesizer{},
		listener: &capturetest.Listener{},
		clock:    clock.Fake(epoch),
	}
	h.adapter = capture.NewAdapter(capture.Config{
		Media:       h.media,
		Recognizer:  h.rec,
		Synthesizer: h.synth,
		Clock:       h.clock,
	})
	h.adapter.SetListener(h.listener)
	return h
}

func speakQuestion(mode question.AnswerMode) question.Question {
	return question.Question{ID: "q1", Text: "Tell me about you.", Type: question.TypeBehavioral, AnswerMode: mode, DurationSeconds: 60}
}

func TestRequestMediaReportsCapabilities(t *testing.T) {
	h := newHarness(t)
	caps := h.adapter.RequestMedia(context.Background())
	require.Equal(t, capture.Capabilities{Camera: true, Microphone: true, Recognition: true, Synthesis: true}, caps)
	require.Empty(t, caps.Missing())
}

func TestRequestMediaDenialDegradesWithoutError(t *testing.T) {
	h := newHarness(t)
	h.media.Err = errors.New("permission denied")

	caps := h.adapter.RequestMedia(context.Background())
	require.False(t, caps.Camera)
	require.False(t, caps.Microphone)
	require.False(t, caps.Recognition)
	require.True(t, caps.Synthesis)
	require.Equal(t, []string{"camera", "microphone", "recognition"}, caps.Missing())
}

func TestRequestMediaCameraOnlyDenied(t *testing.T) {
	h := newHarness(t)
	h.media.Tracks = capture.Tracks{Microphone: true}

	caps := h.adapter.RequestMedia(context.Background())
	require.False(t, caps.Camera)
	require.True(t, caps.Recognition)
	require.Equal(t, "unavailable: camera", caps.String())
}

func TestRequestMediaWithoutMediaPortAssumesRecognizerMicrophone(t *testing.T) {
	adapter := capture.NewAdapter(capture.Config{Recognizer: &capturetest.Recognizer{}})
	caps := adapter.RequestMedia(context.Background())
	require.True(t, caps.Microphone)
	require.True(t, caps.Recognition)
	require.False(t, caps.Synthesis)
}

func TestStartListeningRejectsSecondStream(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())

	require.NoError(t, h.adapter.StartListening(context.Background()))
	require.ErrorIs(t, h.adapter.StartListening(context.Background()), capture.ErrAlreadyListening)
	require.Equal(t, 1, h.rec.Started())
	require.Equal(t, 1, h.rec.ActiveCount())
}

func TestStartListeningUnavailable(t *testing.T) {
	adapter := capture.NewAdapter(capture.Config{})
	adapter.RequestMedia(context.Background())
	require.ErrorIs(t, adapter.StartListening(context.Background()), capture.ErrRecognitionUnavailable)
}

func TestStartListeningFailureLeavesAdapterIdle(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	h.rec.FailNext(1)

	require.Error(t, h.adapter.StartListening(context.Background()))
	require.False(t, h.adapter.Listening())
	require.NoError(t, h.adapter.StartListening(context.Background()))
}

func TestFragmentsMergeIntoTranscript(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	stream := h.rec.Active()
	stream.Say("I built", false)
	stream.Say("I built a scheduler", true)
	stream.Say("for our batch jobs", true)

	require.Equal(t, "I built a scheduler for our batch jobs", h.adapter.Transcript())
	require.Len(t, h.listener.Fragments, 3)
}

func TestFragmentsAfterStopAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))
	stream := h.rec.Active()

	h.adapter.StopListening()
	stream.Say("late words", true)

	require.Empty(t, h.adapter.Transcript())
	require.Empty(t, h.listener.Fragments)
	require.True(t, stream.Stopped())
}

func TestRecognitionRestartsWhileResponseExpected(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	h.rec.Active().Drop(errors.New("network reset"))
	require.Equal(t, 1, h.rec.Started())

	h.clock.Advance(capture.DefaultRestartDelay)
	require.Equal(t, 2, h.rec.Started())
	require.True(t, h.adapter.Listening())
	require.Zero(t, h.listener.DegradedCount())
}

func TestRecognitionRestartsAreBounded(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	for i := 0; i < capture.DefaultMaxRestarts; i++ {
		h.rec.Active().Drop(nil)
		h.clock.Advance(capture.DefaultRestartDelay)
	}
	require.Equal(t, capture.DefaultMaxRestarts+1, h.rec.Started())

	h.rec.Active().Drop(nil)
	h.clock.Advance(capture.DefaultRestartDelay)

	require.Equal(t, capture.DefaultMaxRestarts+1, h.rec.Started())
	require.False(t, h.adapter.Listening())
	require.False(t, h.adapter.Capabilities().Recognition)
	require.Equal(t, 1, h.listener.DegradedCount())
}

func TestRecognitionRestartCountResetsOnFinalFragment(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	for i := 0; i < capture.DefaultMaxRestarts*2; i++ {
		h.rec.Active().Say("still talking", true)
		h.rec.Active().Drop(nil)
		h.clock.Advance(capture.DefaultRestartDelay)
	}
	require.True(t, h.adapter.Listening())
	require.Zero(t, h.listener.DegradedCount())
}

func TestNoRestartAfterStopListening(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	stream := h.rec.Active()
	h.adapter.StopListening()
	stream.Drop(nil)
	h.clock.Advance(time.Second)

	require.Equal(t, 1, h.rec.Started())
}

func TestRestartFailuresCountTowardBound(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))

	h.rec.FailNext(capture.DefaultMaxRestarts)
	h.rec.Active().Drop(nil)
	h.clock.Advance(10 * time.Second)

	require.False(t, h.adapter.Listening())
	require.Equal(t, 1, h.listener.DegradedCount())
}

func TestSpeakCancelsPreviousUtterance(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())

	require.NoError(t, h.adapter.Speak(context.Background(), "first"))
	first := h.synth.Last()
	require.NoError(t, h.adapter.Speak(context.Background(), "second"))
	second := h.synth.Last()

	require.True(t, first.Cancelled())
	require.False(t, second.Cancelled())
	require.True(t, h.adapter.Speaking())

	second.Finish()
	require.Eventually(t, func() bool { return h.listener.FinishedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, h.adapter.Speaking())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, h.listener.FinishedCount())
}

func TestSpeakWithoutSynthesizer(t *testing.T) {
	adapter := capture.NewAdapter(capture.Config{})
	adapter.RequestMedia(context.Background())
	require.ErrorIs(t, adapter.Speak(context.Background(), "hello"), capture.ErrSynthesisUnavailable)
}

func TestCancelSpeechSuppressesFinishedNotification(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.Speak(context.Background(), "hello"))

	h.adapter.CancelSpeech()
	require.True(t, h.synth.Last().Cancelled())
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, h.listener.FinishedCount())
}

func TestEffectiveModeDegradesHybridToWrite(t *testing.T) {
	adapter := capture.NewAdapter(capture.Config{})
	adapter.RequestMedia(context.Background())

	mode, err := adapter.EffectiveMode(speakQuestion(question.AnswerHybrid))
	require.NoError(t, err)
	require.Equal(t, question.AnswerWrite, mode)

	_, err = adapter.EffectiveMode(speakQuestion(question.AnswerSpeak))
	require.ErrorIs(t, err, capture.ErrRecognitionUnavailable)
}

func TestCommitAnswerSpeakIncludesTranscriptAndAudio(t *testing.T) {
	h := newHarness(t)
	h.rec.PCM = []byte{1, 0, 2, 0}
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))
	h.rec.Active().Say("my answer", true)
	h.adapter.StopListening()

	got := h.adapter.CommitAnswer(speakQuestion(question.AnswerSpeak), answer.Input{}, epoch)
	require.Equal(t, answer.KindAudio, got.Kind)
	require.Equal(t, "my answer", got.Text)
	require.Equal(t, "RIFF", string(got.Audio[:4]))
	require.Equal(t, epoch, got.CapturedAt)

	require.Empty(t, h.adapter.Transcript())
	again := h.adapter.CommitAnswer(speakQuestion(question.AnswerSpeak), answer.Input{}, epoch)
	require.True(t, again.Empty())
}

func TestCommitAnswerHybridPrefersTypedText(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))
	h.rec.Active().Say("spoken", true)
	h.adapter.SetDraft("typed draft")

	got := h.adapter.CommitAnswer(speakQuestion(question.AnswerHybrid), answer.Input{}, epoch)
	require.Equal(t, answer.KindText, got.Kind)
	require.Equal(t, "typed draft", got.Text)
	require.Empty(t, h.adapter.Draft())
}

func TestClearBuffersDropsEverythingBuffered(t *testing.T) {
	h := newHarness(t)
	h.rec.PCM = []byte{1, 0, 2, 0}
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))
	h.rec.Active().Say("sounds good", true)
	h.adapter.StopListening()
	h.adapter.SetDraft("typed")

	h.adapter.ClearBuffers()
	require.Empty(t, h.adapter.Transcript())
	require.Empty(t, h.adapter.Draft())

	got := h.adapter.CommitAnswer(speakQuestion(question.AnswerSpeak), answer.Input{}, epoch)
	require.True(t, got.Empty())
	require.Nil(t, got.Audio)
}

func TestCommitAnswerChoice(t *testing.T) {
	h := newHarness(t)
	q := question.Question{
		ID: "g1", Text: "Pick", Type: question.TypeGrammar, AnswerMode: question.AnswerWrite, DurationSeconds: 30,
		Options: []question.Option{{Key: "a", Text: "one"}, {Key: "b", Text: "two"}},
	}

	got := h.adapter.CommitAnswer(q, answer.Input{Choice: "b"}, epoch)
	require.Equal(t, answer.KindChoice, got.Kind)
	require.Equal(t, "b", got.Choice)

	h.adapter.SetDraft("a")
	got = h.adapter.CommitAnswer(q, answer.Input{}, epoch)
	require.Equal(t, "a", got.Choice)
}

func TestTeardownReleasesEverythingOnce(t *testing.T) {
	h := newHarness(t)
	h.adapter.RequestMedia(context.Background())
	require.NoError(t, h.adapter.StartListening(context.Background()))
	require.NoError(t, h.adapter.Speak(context.Background(), "hello"))
	stream := h.rec.Active()

	h.adapter.Teardown()
	h.adapter.Teardown()

	require.True(t, stream.Stopped())
	require.True(t, h.synth.Last().Cancelled())
	require.Equal(t, 1, h.media.Released())
	require.Zero(t, h.rec.ActiveCount())
	require.ErrorIs(t, h.adapter.StartListening(context.Background()), capture.ErrTornDown)
	require.ErrorIs(t, h.adapter.Speak(context.Background(), "again"), capture.ErrTornDown)
}
