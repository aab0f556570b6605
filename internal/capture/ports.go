// Package capture mediates between the session and the candidate's
// devices: camera and microphone acquisition, continuous speech
// recognition, and spoken prompts.
package capture

import (
	"context"
	"strings"
)

// Tracks reports which media tracks were granted.
type Tracks struct {
	Camera     bool
	Microphone bool
}

// Media acquires camera and microphone access. Denial is reported as
// missing tracks or an error; neither is fatal to a session. Tracks are
// honored even when err is non-nil.
type Media interface {
	Acquire(ctx context.Context) (Tracks, error)
	Release() error
}

// Sink receives events from one recognition stream.
type Sink interface {
	Fragment(text string, final bool)
	// Ended reports that the stream stopped without being asked to.
	Ended(err error)
}

// Recognizer starts continuous speech-to-text streams. Start must not
// call the sink before it returns.
type Recognizer interface {
	Start(ctx context.Context, sink Sink) (Recognition, error)
}

// Recognition is one running stream. Stop returns the raw 16-bit PCM
// captured by the stream and must not wait on in-flight Sink calls.
type Recognition interface {
	Stop() ([]byte, error)
}

// Synthesizer speaks prompts aloud.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (Utterance, error)
}

// Utterance is one in-flight spoken prompt. Done is closed when speech
// ends, including after Cancel.
type Utterance interface {
	Done() <-chan struct{}
	Cancel()
}

// Listener is notified of capture events. Calls never happen while the
// adapter holds its own lock.
type Listener interface {
	OnFragment(text string, final bool)
	OnSpeechFinished()
	OnDegraded(caps Capabilities, reason string)
}

// Capabilities is what the current environment supports.
type Capabilities struct {
	Camera      bool `json:"camera"`
	Microphone  bool `json:"microphone"`
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// Missing lists unavailable capabilities.
func (c Capabilities) Missing() []string {
	var missing []string
	if !c.Camera {
		missing = append(missing, "camera")
	}
	if !c.Microphone {
		missing = append(missing, "microphone")
	}
	if !c.Recognition {
		missing = append(missing, "recognition")
	}
	if !c.Synthesis {
		missing = append(missing, "synthesis")
	}
	return missing
}

func (c Capabilities) String() string {
	missing := c.Missing()
	if len(missing) == 0 {
		return "all capabilities available"
	}
	return "unavailable: " + strings.Join(missing, ", ")
}
