package timing

import (
	"strings"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/clock"
)

const (
	DefaultSilenceWindow = 2500 * time.Millisecond
	// DefaultMinTranscriptChars is the length a transcript must exceed
	// before silence may auto-submit it.
	DefaultMinTranscriptChars = 5
)

// SilenceDetector fires once after a quiet period following the most
// recent Reset.
type SilenceDetector struct {
	clock     clock.Clock
	window    time.Duration
	onSilence func()

	mu    sync.Mutex
	gen   uint64
	timer *clock.Timer
}

func NewSilenceDetector(c clock.Clock, window time.Duration, onSilence func()) *SilenceDetector {
	if c == nil {
		c = clock.Real()
	}
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	return &SilenceDetector{clock: c, window: window, onSilence: onSilence}
}

// Reset (re)arms the detector.
func (d *SilenceDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *SilenceDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *SilenceDetector) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *SilenceDetector) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if d.onSilence != nil {
		d.onSilence()
	}
}

// LongEnough reports whether a buffered transcript may be auto-submitted.
func LongEnough(transcript string, minChars int) bool {
	return len([]rune(strings.TrimSpace(transcript))) > minChars
}
