package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rbright/proctor/internal/audio"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/config"
)

// Media probes for a usable microphone and a camera device node. Nothing
// is held open between Acquire and Release; the microphone stream belongs
// to each recognition.
type Media struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice func(context.Context, string, string) (audio.Selection, error)
	glob         func(string) ([]string, error)
}

var _ capture.Media = (*Media)(nil)

// NewMedia constructs a media probe from runtime config.
func NewMedia(cfg config.Config, logger *slog.Logger) *Media {
	return &Media{
		cfg:          cfg,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		glob:         filepath.Glob,
	}
}

// Acquire reports which tracks are present. Errors describe what is
// missing; the returned Tracks are valid either way.
func (m *Media) Acquire(ctx context.Context) (capture.Tracks, error) {
	var (
		tracks capture.Tracks
		errs   []error
	)

	selection, err := m.selectDevice(ctx, m.cfg.Audio.Input, m.cfg.Audio.Fallback)
	if err != nil {
		errs = append(errs, fmt.Errorf("microphone: %w", err))
	} else {
		tracks.Microphone = true
		if selection.Warning != "" && m.logger != nil {
			m.logger.Warn(selection.Warning)
		}
	}

	pattern := strings.TrimSpace(m.cfg.Camera.DeviceGlob)
	if pattern == "" {
		errs = append(errs, errors.New("camera: no device pattern configured"))
	} else {
		matches, gerr := m.glob(pattern)
		switch {
		case gerr != nil:
			errs = append(errs, fmt.Errorf("camera: %w", gerr))
		case len(matches) == 0:
			errs = append(errs, fmt.Errorf("camera: no device matches %q", pattern))
		default:
			tracks.Camera = true
		}
	}

	return tracks, errors.Join(errs...)
}

// Release is a no-op; see Media.
func (m *Media) Release() error { return nil }
