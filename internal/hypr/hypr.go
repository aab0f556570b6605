// Package hypr wraps the hyprctl calls proctor uses for on-screen
// notifications and display discovery.
package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon selects the glyph hyprctl draws next to a notification.
type Icon int

const (
	IconWarning Icon = iota
	IconInfo
	IconHint
	IconError
	IconConfused
	IconOK
)

const defaultColor = "rgb(89b4fa)"

// Notification is one `hyprctl dispatch notify` bubble.
type Notification struct {
	Icon      Icon
	TimeoutMS int
	Color     string
	Text      string
}

// Notify shows n. Hyprland draws one line per bubble, so line breaks in
// the text are folded into spaces.
func Notify(ctx context.Context, n Notification) error {
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = defaultColor
	}
	text := strings.Join(strings.Fields(n.Text), " ")
	_, err := run(ctx,
		"--quiet", "dispatch", "notify",
		strconv.Itoa(int(n.Icon)),
		strconv.Itoa(max(n.TimeoutMS, 0)),
		color,
		text,
	)
	return err
}

// DismissNotify clears every visible notification.
func DismissNotify(ctx context.Context) error {
	_, err := run(ctx, "--quiet", "dispatch", "dismissnotify")
	return err
}

func run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %s failed: %w", strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("hyprctl %s failed: %w (%s)", strings.Join(args, " "), err, trimmed)
	}
	return out, nil
}
