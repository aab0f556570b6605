package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueQuestion cueKind = iota + 1
	cueAnswer
	cueAutoSubmit
	cueFinish
	cueAlert
)

const (
	cueSampleRate = 16000
	cueVolume     = 0.18
	cueGap        = 22 * time.Millisecond
	// Attack and release ramps are capped at 5ms to avoid clicks.
	cueMaxRamp = cueSampleRate / 200
)

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
}

// cueMelodies: rising for a new question, a two-note chirp for a recorded
// answer, one low tone when time ran out, an arpeggio on completion and a
// falling pair for failures.
var cueMelodies = map[cueKind][]toneSpec{
	cueQuestion:   {{880, 70 * time.Millisecond}, {1175, 70 * time.Millisecond}},
	cueAnswer:     {{740, 65 * time.Millisecond}, {988, 90 * time.Millisecond}},
	cueAutoSubmit: {{620, 120 * time.Millisecond}},
	cueFinish:     {{659, 70 * time.Millisecond}, {831, 70 * time.Millisecond}, {988, 140 * time.Millisecond}},
	cueAlert:      {{480, 75 * time.Millisecond}, {360, 90 * time.Millisecond}},
}

var renderedCues = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cueMelodies))
	for kind, melody := range cueMelodies {
		out[kind] = synthesizeCue(melody)
	}
	return out
})

func cueSamples(kind cueKind) []int16 {
	return renderedCues()[kind]
}

// cuePlayer keeps one Pulse connection for the whole session and
// reconnects after a failed playback.
type cuePlayer struct {
	mu     sync.Mutex
	client *pulse.Client
	dial   func() (*pulse.Client, error)
}

func newCuePlayer() *cuePlayer {
	return &cuePlayer{dial: func() (*pulse.Client, error) {
		return pulse.NewClient(
			pulse.ClientApplicationName("proctor"),
			pulse.ClientApplicationIconName("dialog-information"),
		)
	}}
}

func (p *cuePlayer) play(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("emit cue: %w", err)
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		client, err := p.dial()
		if err != nil {
			return fmt.Errorf("connect pulse server: %w", err)
		}
		p.client = client
	}
	if err := playSamples(ctx, p.client, samples); err != nil {
		p.client.Close()
		p.client = nil
		return err
	}
	return nil
}

func (p *cuePlayer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func playSamples(ctx context.Context, client *pulse.Client, samples []int16) error {
	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("proctor cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, stream.Stop)
	defer stop()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

func synthesizeCue(melody []toneSpec) []int16 {
	var pcm []int16
	for i, tone := range melody {
		if i > 0 {
			pcm = append(pcm, make([]int16, samplesForDuration(cueGap))...)
		}
		pcm = append(pcm, synthesizeTone(tone, cueVolume)...)
	}
	return pcm
}

func synthesizeTone(spec toneSpec, volume float64) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueMaxRamp)
	pcm := make([]int16, n)
	for i := range n {
		envelope := min(1.0, float64(i)/float64(ramp), float64(n-i-1)/float64(ramp))
		phase := 2 * math.Pi * spec.frequencyHz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
