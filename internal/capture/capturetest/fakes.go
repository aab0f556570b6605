// Package capturetest provides in-memory capture ports for tests.
package capturetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rbright/proctor/internal/capture"
)

// Media grants the configured tracks and counts releases.
type Media struct {
	Tracks capture.Tracks
	Err    error

	acquired atomic.Int32
	released atomic.Int32
}

func (m *Media) Acquire(context.Context) (capture.Tracks, error) {
	m.acquired.Add(1)
	if m.Err != nil {
		return capture.Tracks{}, m.Err
	}
	return m.Tracks, nil
}

func (m *Media) Release() error {
	m.released.Add(1)
	return nil
}

func (m *Media) Acquired() int { return int(m.acquired.Load()) }
func (m *Media) Released() int { return int(m.released.Load()) }

// Recognizer hands out Recognitions the test drives by hand.
type Recognizer struct {
	mu       sync.Mutex
	streams  []*Recognition
	failNext int
	PCM      []byte
}

// FailNext makes the next n Start calls fail.
func (r *Recognizer) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}

func (r *Recognizer) Start(_ context.Context, sink capture.Sink) (capture.Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return nil, errors.New("recognizer unavailable")
	}
	rec := &Recognition{sink: sink, pcm: append([]byte(nil), r.PCM...)}
	r.streams = append(r.streams, rec)
	return rec, nil
}

// Started reports how many streams were opened.
func (r *Recognizer) Started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Active returns the most recent stream that has not been stopped.
func (r *Recognizer) Active() *Recognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.streams) - 1; i >= 0; i-- {
		if !r.streams[i].Stopped() {
			return r.streams[i]
		}
	}
	return nil
}

// ActiveCount counts streams that have not been stopped.
func (r *Recognizer) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.streams {
		if !s.Stopped() {
			count++
		}
	}
	return count
}

type Recognition struct {
	sink    capture.Sink
	pcm     []byte
	stopped atomic.Bool
}

func (r *Recognition) Say(text string, final bool) { r.sink.Fragment(text, final) }

// Drop ends the stream as if the service hung up.
func (r *Recognition) Drop(err error) {
	r.stopped.Store(true)
	r.sink.Ended(err)
}

func (r *Recognition) Stop() ([]byte, error) {
	r.stopped.Store(true)
	return r.pcm, nil
}

func (r *Recognition) Stopped() bool { return r.stopped.Load() }

// Synthesizer records spoken prompts; each stays in flight until the
// test finishes it.
type Synthesizer struct {
	Err error

	mu         sync.Mutex
	utterances []*Utterance
}

func (s *Synthesizer) Speak(_ context.Context, text string) (capture.Utterance, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &Utterance{Text: text, done: make(chan struct{})}
	s.utterances = append(s.utterances, u)
	return u, nil
}

// Spoken returns the text of every prompt in order.
func (s *Synthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.utterances))
	for _, u := range s.utterances {
		out = append(out, u.Text)
	}
	return out
}

// Last returns the most recent utterance.
func (s *Synthesizer) Last() *Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.utterances) == 0 {
		return nil
	}
	return s.utterances[len(s.utterances)-1]
}

// FinishLast completes the most recent utterance.
func (s *Synthesizer) FinishLast() {
	if u := s.Last(); u != nil {
		u.Finish()
	}
}

type Utterance struct {
	Text string

	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool
}

func (u *Utterance) Done() <-chan struct{} { return u.done }

func (u *Utterance) Finish() { u.once.Do(func() { close(u.done) }) }

func (u *Utterance) Cancel() {
	u.cancelled.Store(true)
	u.Finish()
}

func (u *Utterance) Cancelled() bool { return u.cancelled.Load() }

// Listener records capture events.
type Listener struct {
	mu        sync.Mutex
	Fragments []string
	Finished  int
	Degraded  []capture.Capabilities
}

func (l *Listener) OnFragment(text string, _ bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Fragments = append(l.Fragments, text)
}

func (l *Listener) OnSpeechFinished() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Finished++
}

func (l *Listener) OnDegraded(caps capture.Capabilities, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Degraded = append(l.Degraded, caps)
}

func (l *Listener) FinishedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Finished
}

func (l *Listener) DegradedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Degraded)
}
