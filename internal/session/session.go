// Package session drives one candidate's pass through an assessment:
// phase sequencing, response windows, timers, and result hand-off.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/clock"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/result"
	"github.com/rbright/proctor/internal/timing"
)

var (
	ErrNotInitialized     = errors.New("session not initialized")
	ErrNotStarted         = errors.New("session not started")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrAdvanceInProgress  = errors.New("advance already in progress")
	ErrAlreadyCompleted   = errors.New("session already completed")
	ErrTornDown           = errors.New("session torn down")
	ErrTranscriptRequired = errors.New("a spoken answer is required for this question")
	ErrNoResponseWindow   = errors.New("no question is awaiting an answer")
)

// Capture is the device-facing surface the controller drives.
// *capture.Adapter satisfies it.
type Capture interface {
	SetListener(capture.Listener)
	RequestMedia(ctx context.Context) capture.Capabilities
	Capabilities() capture.Capabilities
	EffectiveMode(q question.Question) (question.AnswerMode, error)
	StartListening(ctx context.Context) error
	StopListening()
	Speak(ctx context.Context, text string) error
	CancelSpeech()
	SetDraft(text string)
	Draft() string
	Transcript() string
	ClearBuffers()
	CommitAnswer(q question.Question, in answer.Input, capturedAt time.Time) answer.Answer
	Teardown()
}

// Pacing is the conversational rhythm. Waits after speech are measured
// from the end of the utterance.
type Pacing struct {
	Thinking    time.Duration
	Settle      time.Duration
	Acknowledge time.Duration
	Closing     time.Duration
	// Greeting bounds the wait for an acknowledgment; zero waits for the
	// candidate.
	Greeting           time.Duration
	Silence            time.Duration
	MinTranscriptChars int
}

func DefaultPacing() Pacing {
	return Pacing{
		Thinking:           2 * time.Second,
		Settle:             time.Second,
		Acknowledge:        3 * time.Second,
		Closing:            8 * time.Second,
		Greeting:           4 * time.Second,
		Silence:            timing.DefaultSilenceWindow,
		MinTranscriptChars: timing.DefaultMinTranscriptChars,
	}
}

type Config struct {
	Clock     clock.Clock
	Logger    *slog.Logger
	Capture   Capture
	Observer  Observer
	Submitter result.Submitter
	Pacing    Pacing

	// OnComplete is called exactly once with the finalized result.
	OnComplete func(result.SessionResult)
	NewID      func() string
}

// Controller owns the single authoritative position in an assessment.
// Timer and capture callbacks re-enter through the same lock; work that
// may block or calls out to observers runs after it is released.
type Controller struct {
	clock      clock.Clock
	logger     *slog.Logger
	capture    Capture
	observer   Observer
	submitter  result.Submitter
	pacing     Pacing
	onComplete func(result.SessionResult)
	newID      func() string

	mu    sync.Mutex
	state fsm.State
	turn  fsm.Turn

	initialized    bool
	starting       bool
	questions      []question.Question
	mode           question.Mode
	assessmentType question.AssessmentType
	candidateName  string
	jobTitle       string
	limit          time.Duration
	budget         time.Duration

	id          string
	index       int
	caps        capture.Capabilities
	assembler   *result.Assembler
	global      *timing.Countdown
	perQuestion *timing.Countdown
	silence     *timing.SilenceDetector

	ctx         context.Context
	stopContext func() bool

	step        uint64
	pacer       *clock.Timer
	afterSpeech func(*effects)
	settleAfter time.Duration
	windowGen   uint64

	prompt      string
	notice      string
	startedAt   time.Time
	completedAt time.Time

	completing bool
	tornDown   bool
	result     *result.SessionResult
	submitErr  error
	done       chan struct{}
	closeDone  sync.Once
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Pacing == (Pacing{}) {
		cfg.Pacing = DefaultPacing()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Capture == nil {
		cfg.Capture = &nopCapture{}
	}

	c := &Controller{
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		capture:    cfg.Capture,
		observer:   cfg.Observer,
		submitter:  cfg.Submitter,
		pacing:     cfg.Pacing,
		onComplete: cfg.OnComplete,
		newID:      cfg.NewID,
		state:      fsm.StateNotStarted,
		turn:       fsm.TurnIdle,
		done:       make(chan struct{}),
	}
	c.capture.SetListener(c)
	return c
}

// Initialize loads the question list. limit overrides the total budget
// for timed assessments and disables per-question countdowns; zero
// means the sum of question durations.
func (c *Controller) Initialize(questions []question.Question, mode question.Mode, limit time.Duration) error {
	switch mode {
	case question.ModeConversational, question.ModeTimed:
	default:
		return fmt.Errorf("unknown session mode %q", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != fsm.StateNotStarted || c.starting {
		return ErrAlreadyStarted
	}

	c.questions = append([]question.Question(nil), questions...)
	c.mode = mode
	c.limit = max(limit, 0)
	c.budget = question.TotalDuration(c.questions)
	if c.limit > 0 {
		c.budget = c.limit
	}
	c.initialized = true
	return question.ValidateList(c.questions)
}

// InitializeBank loads a normalized bank, including the greeting
// details and the explicit assessment type.
func (c *Controller) InitializeBank(bank question.Bank) error {
	if _, err := question.ParseAssessmentType(string(bank.AssessmentType)); err != nil {
		return err
	}
	err := c.Initialize(bank.Questions, bank.Mode(), bank.TimeLimit())
	if errors.Is(err, ErrAlreadyStarted) {
		return err
	}

	c.mu.Lock()
	c.assessmentType = bank.AssessmentType
	c.candidateName = bank.CandidateName
	c.jobTitle = bank.JobTitle
	c.mu.Unlock()
	return err
}

// Start requests camera and microphone, then enters the first phase.
// Missing devices degrade the session rather than failing it. Cancelling
// ctx tears the session down.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.tornDown:
		c.mu.Unlock()
		return ErrTornDown
	case c.state != fsm.StateNotStarted || c.starting:
		c.mu.Unlock()
		return ErrAlreadyStarted
	case !c.initialized:
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if err := question.ValidateList(c.questions); err != nil {
		c.mu.Unlock()
		return err
	}
	c.starting = true
	c.mu.Unlock()

	caps := c.capture.RequestMedia(ctx)

	var fx effects
	c.mu.Lock()
	c.starting = false
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}

	event := fsm.EventBeginTimed
	if c.mode == question.ModeConversational {
		event = fsm.EventBeginConversation
	}
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.caps = caps
	c.ctx = ctx
	c.id = c.newID()
	c.startedAt = c.clock.Now()
	c.assembler = result.NewAssembler(c.id, c.assessmentType, c.questions, c.budget, c.submitter)
	c.silence = timing.NewSilenceDetector(c.clock, c.pacing.Silence, c.onSilence)
	if c.mode == question.ModeTimed || c.limit > 0 {
		c.global = timing.NewCountdown(c.clock, c.budget, nil, c.onDeadline)
		c.global.Start()
	}
	c.stopContext = context.AfterFunc(ctx, c.Teardown)

	c.logger.Info("session started",
		"session_id", c.id,
		"mode", string(c.mode),
		"questions", len(c.questions),
		"budget_s", int(c.budget/time.Second),
		"capabilities", caps.String(),
	)

	started := c.snapshotLocked()
	fx.add(func() { c.observer.SessionStarted(started) })
	if missing := caps.Missing(); len(missing) > 0 {
		fx.add(func() { c.observer.CapabilityDegraded(caps, "media unavailable") })
	}

	if c.mode == question.ModeConversational {
		c.turn = fsm.TurnSpeaking
		c.sayLocked(&fx, greeting(c.candidateName, c.jobTitle), c.pacing.Settle, c.openGreetingLocked)
	} else {
		c.presentTimedLocked(&fx, 0)
	}
	c.mu.Unlock()

	fx.run()
	return nil
}

// Done is closed once the session has completed or been torn down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the finalized result once the session has completed.
func (c *Controller) Result() (result.SessionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return result.SessionResult{}, false
	}
	return *c.result, true
}

// Flag marks a question for review.
func (c *Controller) Flag(id string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assembler == nil {
		return ErrNotStarted
	}
	if c.completing {
		return ErrAlreadyCompleted
	}
	return c.assembler.Flag(id, on)
}

// UpdateDraft replaces the typed answer for the open question.
func (c *Controller) UpdateDraft(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == fsm.StateNotStarted:
		return ErrNotStarted
	case c.completing:
		return ErrAlreadyCompleted
	case !c.questionOpenLocked():
		return ErrNoResponseWindow
	}
	c.capture.SetDraft(text)
	return nil
}

// effects collects work that must run after the controller lock is
// released.
type effects []func()

func (e *effects) add(f func()) {
	*e = append(*e, f)
}

func (e effects) run() {
	for _, f := range e {
		f()
	}
}
