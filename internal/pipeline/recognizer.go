// Package pipeline composes microphone capture and the speech stream
// into the recognizer and media ports used by the capture adapter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/proctor/internal/audio"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/speech"
)

type streamClient interface {
	SendAudio(chunk []byte) error
	Cancel() error
}

type captureClient interface {
	Stop() error
	Chunks() <-chan []byte
	BytesCaptured() int64
	Recorded() []byte
}

// Recognizer opens one capture -> speech stream per listening window.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice func(context.Context, string, string) (audio.Selection, error)
	dialStream   func(context.Context, speech.StreamConfig) (streamClient, error)
	startCapture func(context.Context, audio.Device) (captureClient, error)
}

var _ capture.Recognizer = (*Recognizer)(nil)

// NewRecognizer constructs a recognizer from runtime config.
func NewRecognizer(cfg config.Config, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:          cfg,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		dialStream: func(ctx context.Context, sc speech.StreamConfig) (streamClient, error) {
			return speech.DialStream(ctx, sc)
		},
		startCapture: func(ctx context.Context, device audio.Device) (captureClient, error) {
			return audio.StartCapture(ctx, device)
		},
	}
}

// Start selects the microphone, dials the recognizer, and begins
// streaming audio. Results reach sink only after Start returns.
func (r *Recognizer) Start(ctx context.Context, sink capture.Sink) (capture.Recognition, error) {
	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		r.logWarn(selection.Warning)
	}

	phrases, _, err := config.BuildSpeechPhrases(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("build speech phrases: %w", err)
	}

	rec := &recognition{
		cfg:    r.cfg,
		logger: r.logger,
		sink:   sink,
		open:   make(chan struct{}),
		sent:   make(chan struct{}),
	}

	if r.cfg.Debug.EnableGRPCDump {
		file, ferr := createDebugFile("grpc", "json")
		if ferr != nil {
			return nil, ferr
		}
		rec.debugGRPCFile = file
	}

	streamCfg := speech.StreamConfig{
		Endpoint:             r.cfg.Recognizer.Endpoint,
		LanguageCode:         r.cfg.Recognizer.LanguageCode,
		Model:                r.cfg.Recognizer.Model,
		AutomaticPunctuation: r.cfg.Recognizer.AutomaticPunctuation,
		Phrases:              phrases,
		SampleRateHertz:      audio.SampleRate,
		DialTimeout:          time.Duration(r.cfg.Recognizer.DialTimeoutMS) * time.Millisecond,
		OnResult:             rec.onResult,
		OnEnd:                rec.ended,
	}
	if rec.debugGRPCFile != nil {
		streamCfg.DebugResponseSinkJSON = rec.debugGRPCFile
	}

	stream, err := r.dialStream(ctx, streamCfg)
	if err != nil {
		rec.dead.Store(true)
		close(rec.open)
		rec.closeDebugArtifacts()
		return nil, err
	}
	rec.stream = stream

	pcm, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		rec.dead.Store(true)
		close(rec.open)
		_ = stream.Cancel()
		rec.closeDebugArtifacts()
		return nil, err
	}
	rec.capture = pcm

	if r.logger != nil {
		r.logger.Debug("recognition started", "device", selection.Device.Label(), "endpoint", r.cfg.Recognizer.Endpoint)
	}

	go rec.sendLoop()
	close(rec.open)
	return rec, nil
}

func (r *Recognizer) logWarn(message string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(message)
}

// recognition is one running capture + stream pair.
type recognition struct {
	cfg    config.Config
	logger *slog.Logger
	sink   capture.Sink

	stream  streamClient
	capture captureClient

	// open gates sink delivery until Start has returned.
	open chan struct{}
	sent chan struct{}
	dead atomic.Bool

	endOnce  sync.Once
	stopOnce sync.Once

	mu            sync.Mutex
	debugGRPCFile *os.File
}

func (r *recognition) onResult(result speech.Result) {
	<-r.open
	if r.dead.Load() {
		return
	}
	r.sink.Fragment(result.Transcript, result.IsFinal)
}

// ended reports an unrequested stream end at most once.
func (r *recognition) ended(err error) {
	<-r.open
	if r.dead.Load() {
		return
	}
	r.endOnce.Do(func() {
		r.sink.Ended(err)
	})
}

// sendLoop forwards capture chunks to the recognizer until capture stops.
func (r *recognition) sendLoop() {
	defer close(r.sent)

	for chunk := range r.capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := r.stream.SendAudio(chunk); err != nil {
			if !r.dead.Load() {
				go r.ended(fmt.Errorf("send audio stream: %w", err))
			}
			_ = r.capture.Stop()
			for range r.capture.Chunks() {
			}
			return
		}
	}
}

// Stop halts capture and cancels the stream, returning the recorded PCM.
// It does not wait on sink deliveries.
func (r *recognition) Stop() ([]byte, error) {
	var pcm []byte
	r.stopOnce.Do(func() {
		r.dead.Store(true)
		_ = r.stream.Cancel()
		_ = r.capture.Stop()
		<-r.sent

		pcm = r.capture.Recorded()
		if r.logger != nil {
			r.logger.Debug("recognition stopped", "bytes_captured", r.capture.BytesCaptured())
		}
		r.writeDebugAudio(pcm)
		r.closeDebugArtifacts()
	})
	return pcm, nil
}

func (r *recognition) logWarn(message string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(message)
}

func (r *recognition) closeDebugArtifacts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debugGRPCFile != nil {
		_ = r.debugGRPCFile.Close()
		r.debugGRPCFile = nil
	}
}

// writeDebugAudio writes raw PCM to WAV when debug.audio_dump is enabled.
func (r *recognition) writeDebugAudio(rawPCM []byte) {
	if !r.cfg.Debug.EnableAudioDump || len(rawPCM) == 0 {
		return
	}

	file, err := createDebugFile("audio", "wav")
	if err != nil {
		r.logWarn(fmt.Sprintf("unable to create debug audio dump: %v", err))
		return
	}
	defer file.Close()

	if err := audio.WriteWAV(file, rawPCM, audio.SampleRate, 1); err != nil {
		r.logWarn(fmt.Sprintf("unable to write debug audio dump: %v", err))
	}
}
