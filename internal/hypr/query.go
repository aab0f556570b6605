package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoMonitors = errors.New("hyprctl monitors returned no outputs")

// Monitor is the subset of `hyprctl -j monitors` the kiosk checks need.
type Monitor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Focused     bool   `json:"focused"`
}

func (m Monitor) String() string {
	if m.Width > 0 && m.Height > 0 {
		return fmt.Sprintf("%s (%dx%d)", m.Name, m.Width, m.Height)
	}
	return m.Name
}

// Monitors lists connected outputs.
func Monitors(ctx context.Context) ([]Monitor, error) {
	out, err := run(ctx, "-j", "monitors")
	if err != nil {
		return nil, err
	}
	var monitors []Monitor
	if err := json.Unmarshal(out, &monitors); err != nil {
		return nil, fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	for i := range monitors {
		monitors[i].Name = strings.TrimSpace(monitors[i].Name)
	}
	return monitors, nil
}

// FocusedMonitor returns the focused output, or the first one when none
// reports focus.
func FocusedMonitor(ctx context.Context) (Monitor, error) {
	monitors, err := Monitors(ctx)
	if err != nil {
		return Monitor{}, err
	}
	if len(monitors) == 0 {
		return Monitor{}, ErrNoMonitors
	}
	for _, mon := range monitors {
		if mon.Focused {
			return mon, nil
		}
	}
	return monitors[0], nil
}
