package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/audio"
	"github.com/rbright/proctor/internal/clock"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/transcript"
)

const (
	DefaultMaxRestarts  = 3
	DefaultRestartDelay = 500 * time.Millisecond
	DefaultSampleRate   = 16000
)

var (
	ErrAlreadyListening       = errors.New("recognition already active")
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
	ErrSynthesisUnavailable   = errors.New("speech synthesis unavailable")
	ErrTornDown               = errors.New("capture adapter torn down")
)

type Config struct {
	Media       Media
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Clock       clock.Clock
	Logger      *slog.Logger

	// MaxRestarts bounds consecutive automatic recognition restarts.
	MaxRestarts  int
	RestartDelay time.Duration
	SampleRate   int
}

// Adapter owns every device-facing resource of one session. At most
// one recognition stream and one utterance are active at a time.
type Adapter struct {
	media       Media
	recognizer  Recognizer
	synthesizer Synthesizer
	clock       clock.Clock
	logger      *slog.Logger

	maxRestarts  int
	restartDelay time.Duration
	sampleRate   int

	mu        sync.Mutex
	listener  Listener
	caps      Capabilities
	mediaHeld bool
	tornDown  bool

	listening    bool
	listenCtx    context.Context
	recognition  Recognition
	recGen       uint64
	restarts     int
	restartTimer *clock.Timer

	merger transcript.Merger
	pcm    []byte
	draft  string

	utterance Utterance
	speechGen uint64
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMaxRestarts
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &Adapter{
		media:        cfg.Media,
		recognizer:   cfg.Recognizer,
		synthesizer:  cfg.Synthesizer,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		maxRestarts:  cfg.MaxRestarts,
		restartDelay: cfg.RestartDelay,
		sampleRate:   cfg.SampleRate,
		caps: Capabilities{
			Recognition: cfg.Recognizer != nil,
			Synthesis:   cfg.Synthesizer != nil,
		},
	}
}

func (a *Adapter) SetListener(listener Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = listener
}

// RequestMedia asks for camera and microphone. It never fails: anything
// denied shows up as a missing capability.
func (a *Adapter) RequestMedia(ctx context.Context) Capabilities {
	a.mu.Lock()
	if a.tornDown {
		caps := a.caps
		a.mu.Unlock()
		return caps
	}
	a.mu.Unlock()

	// Without a media port the recognizer owns the microphone itself.
	tracks := Tracks{Microphone: a.recognizer != nil}
	if a.media != nil {
		granted, err := a.media.Acquire(ctx)
		if err != nil {
			a.logWarn("media acquisition incomplete", "error", err.Error())
		}
		tracks = granted
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tornDown {
		if a.media != nil && (tracks.Camera || tracks.Microphone) {
			_ = a.media.Release()
		}
		return a.caps
	}
	a.mediaHeld = a.media != nil && (tracks.Camera || tracks.Microphone)
	a.caps.Camera = tracks.Camera
	a.caps.Microphone = tracks.Microphone
	a.caps.Recognition = a.recognizer != nil && tracks.Microphone
	a.caps.Synthesis = a.synthesizer != nil
	return a.caps
}

func (a *Adapter) Capabilities() Capabilities {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caps
}

// EffectiveMode resolves how a question can be answered right now.
// Hybrid questions fall back to typing when recognition is missing;
// speak questions cannot fall back.
func (a *Adapter) EffectiveMode(q question.Question) (question.AnswerMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.effectiveModeLocked(q)
}

func (a *Adapter) effectiveModeLocked(q question.Question) (question.AnswerMode, error) {
	if q.IsChoice() {
		return question.AnswerWrite, nil
	}
	if a.caps.Recognition {
		return q.AnswerMode, nil
	}
	switch q.AnswerMode {
	case question.AnswerHybrid:
		return question.AnswerWrite, nil
	case question.AnswerSpeak:
		return question.AnswerSpeak, ErrRecognitionUnavailable
	default:
		return q.AnswerMode, nil
	}
}

// StartListening opens a recognition stream for the current response
// window.
func (a *Adapter) StartListening(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.tornDown:
		return ErrTornDown
	case !a.caps.Recognition:
		return ErrRecognitionUnavailable
	case a.listening:
		return ErrAlreadyListening
	}

	a.listening = true
	a.listenCtx = ctx
	a.restarts = 0
	if err := a.startRecognitionLocked(); err != nil {
		a.listening = false
		a.recGen++
		return fmt.Errorf("start recognition: %w", err)
	}
	return nil
}

func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// StopListening ends the response window. Captured audio is kept for
// the next commit.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	rec := a.stopRecognitionLocked()
	a.mu.Unlock()
	a.collect(rec)
}

func (a *Adapter) stopRecognitionLocked() Recognition {
	a.listening = false
	a.recGen++
	if a.restartTimer != nil {
		a.restartTimer.Stop()
		a.restartTimer = nil
	}
	rec := a.recognition
	a.recognition = nil
	return rec
}

func (a *Adapter) collect(rec Recognition) {
	if rec == nil {
		return
	}
	pcm, err := rec.Stop()
	if err != nil {
		a.logWarn("stop recognition failed", "error", err.Error())
	}
	if len(pcm) == 0 {
		return
	}
	a.mu.Lock()
	a.pcm = append(a.pcm, pcm...)
	a.mu.Unlock()
}

func (a *Adapter) startRecognitionLocked() error {
	ctx := a.listenCtx
	if ctx == nil {
		ctx = context.Background()
	}
	a.recGen++
	sink := &recognitionSink{adapter: a, gen: a.recGen}
	rec, err := a.recognizer.Start(ctx, sink)
	if err != nil {
		return err
	}
	a.recognition = rec
	return nil
}

func (a *Adapter) onFragment(gen uint64, text string, final bool) {
	a.mu.Lock()
	if gen != a.recGen || !a.listening {
		a.mu.Unlock()
		return
	}
	a.merger.Observe(text, final)
	if final {
		a.restarts = 0
	}
	listener := a.listener
	a.mu.Unlock()

	if listener != nil {
		listener.OnFragment(text, final)
	}
}

// onEnded restarts recognition while a response is still expected, up
// to maxRestarts consecutive times.
func (a *Adapter) onEnded(gen uint64, cause error) {
	a.mu.Lock()
	if gen != a.recGen || !a.listening {
		a.mu.Unlock()
		return
	}
	rec := a.recognition
	a.recognition = nil
	a.mu.Unlock()

	a.collect(rec)

	a.mu.Lock()
	if gen != a.recGen || !a.listening {
		a.mu.Unlock()
		return
	}
	degraded, caps := a.scheduleRestartLocked(cause)
	listener := a.listener
	a.mu.Unlock()

	if degraded && listener != nil {
		listener.OnDegraded(caps, "speech recognition stopped responding")
	}
}

func (a *Adapter) scheduleRestartLocked(cause error) (bool, Capabilities) {
	if a.restarts >= a.maxRestarts {
		a.logWarn("recognition restarts exhausted", "restarts", a.restarts, "error", errString(cause))
		a.listening = false
		a.recGen++
		a.caps.Recognition = false
		return true, a.caps
	}
	a.restarts++
	gen := a.recGen
	a.logInfo("recognition ended; restarting", "attempt", a.restarts, "error", errString(cause))
	a.restartTimer = a.clock.AfterFunc(a.restartDelay, func() { a.restart(gen) })
	return false, a.caps
}

func (a *Adapter) restart(gen uint64) {
	a.mu.Lock()
	if gen != a.recGen || !a.listening || a.tornDown {
		a.mu.Unlock()
		return
	}
	a.restartTimer = nil
	err := a.startRecognitionLocked()
	if err == nil {
		a.mu.Unlock()
		return
	}
	degraded, caps := a.scheduleRestartLocked(err)
	listener := a.listener
	a.mu.Unlock()

	if degraded && listener != nil {
		listener.OnDegraded(caps, "speech recognition could not be restarted")
	}
}

// Speak cancels any in-flight prompt and starts a new one. The listener
// hears OnSpeechFinished when this utterance, and not a later one, ends.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.tornDown {
		a.mu.Unlock()
		return ErrTornDown
	}
	if !a.caps.Synthesis || a.synthesizer == nil {
		a.mu.Unlock()
		return ErrSynthesisUnavailable
	}
	previous := a.utterance
	a.utterance = nil
	a.speechGen++
	gen := a.speechGen
	a.mu.Unlock()

	if previous != nil {
		previous.Cancel()
	}

	utterance, err := a.synthesizer.Speak(ctx, strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}

	a.mu.Lock()
	if gen != a.speechGen {
		a.mu.Unlock()
		utterance.Cancel()
		return nil
	}
	a.utterance = utterance
	a.mu.Unlock()

	go a.awaitUtterance(gen, utterance)
	return nil
}

func (a *Adapter) awaitUtterance(gen uint64, utterance Utterance) {
	<-utterance.Done()

	a.mu.Lock()
	current := gen == a.speechGen && !a.tornDown
	if current {
		a.utterance = nil
	}
	listener := a.listener
	a.mu.Unlock()

	if current && listener != nil {
		listener.OnSpeechFinished()
	}
}

func (a *Adapter) CancelSpeech() {
	a.mu.Lock()
	a.speechGen++
	utterance := a.utterance
	a.utterance = nil
	a.mu.Unlock()

	if utterance != nil {
		utterance.Cancel()
	}
}

func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.utterance != nil
}

// SetDraft replaces the typed-answer buffer.
func (a *Adapter) SetDraft(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.draft = text
}

func (a *Adapter) Draft() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draft
}

// Transcript is the merged recognition text buffered for the current
// question.
func (a *Adapter) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.merger.Text()
}

// CommitAnswer freezes the buffers into an answer for q and clears
// them. Explicit input wins over buffered draft text.
func (a *Adapter) CommitAnswer(q question.Question, in answer.Input, capturedAt time.Time) answer.Answer {
	a.mu.Lock()
	defer a.mu.Unlock()

	mode, _ := a.effectiveModeLocked(q)
	typed := strings.TrimSpace(in.Text)
	if typed == "" {
		typed = strings.TrimSpace(a.draft)
	}
	spoken := a.merger.Text()
	pcm := a.pcm

	out := answer.Answer{QuestionID: q.ID, CapturedAt: capturedAt}
	switch {
	case q.IsChoice():
		out.Kind = answer.KindChoice
		out.Choice = strings.TrimSpace(in.Choice)
		if out.Choice == "" && q.HasOption(typed) {
			out.Choice = typed
		}
	case mode == question.AnswerSpeak:
		out.Kind = answer.KindAudio
		out.Text = spoken
		out.Audio = a.encode(pcm)
	case mode == question.AnswerHybrid && typed == "" && (spoken != "" || len(pcm) > 0):
		out.Kind = answer.KindAudio
		out.Text = spoken
		out.Audio = a.encode(pcm)
	default:
		out.Kind = answer.KindText
		out.Text = typed
	}

	a.merger.Reset()
	a.pcm = nil
	a.draft = ""
	return out
}

// ClearBuffers drops buffered transcript, audio, and draft text without
// producing an answer.
func (a *Adapter) ClearBuffers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.merger.Reset()
	a.pcm = nil
	a.draft = ""
}

func (a *Adapter) encode(pcm []byte) []byte {
	if len(pcm) == 0 {
		return nil
	}
	return audio.EncodeWAV(pcm, a.sampleRate, 1)
}

// Teardown releases camera, microphone, recognition, and synthesis.
// It is idempotent.
func (a *Adapter) Teardown() {
	a.mu.Lock()
	if a.tornDown {
		a.mu.Unlock()
		return
	}
	a.tornDown = true
	rec := a.stopRecognitionLocked()
	a.speechGen++
	utterance := a.utterance
	a.utterance = nil
	release := a.mediaHeld
	a.mediaHeld = false
	a.mu.Unlock()

	if rec != nil {
		if _, err := rec.Stop(); err != nil {
			a.logWarn("stop recognition failed", "error", err.Error())
		}
	}
	if utterance != nil {
		utterance.Cancel()
	}
	if release && a.media != nil {
		if err := a.media.Release(); err != nil {
			a.logWarn("media release failed", "error", err.Error())
		}
	}
}

func (a *Adapter) TornDown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tornDown
}

type recognitionSink struct {
	adapter *Adapter
	gen     uint64
}

func (s *recognitionSink) Fragment(text string, final bool) {
	s.adapter.onFragment(s.gen, text, final)
}

func (s *recognitionSink) Ended(err error) {
	s.adapter.onEnded(s.gen, err)
}

func (a *Adapter) logInfo(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Adapter) logWarn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
