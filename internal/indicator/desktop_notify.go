package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
)

const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// desktopNotification is one freedesktop Notify call. ReplaceID reuses an
// existing bubble so question progress updates in place.
type desktopNotification struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Body      string
	TimeoutMS int
	Urgency   byte
}

func (d desktopNotification) args() []string {
	return []string{
		"susssasa{sv}i",
		d.AppName,
		strconv.FormatUint(uint64(d.ReplaceID), 10),
		"",
		d.Summary,
		d.Body,
		"0",
		"1", "urgency", "y", strconv.Itoa(int(d.Urgency)),
		strconv.Itoa(d.TimeoutMS),
	}
}

// desktopNotify sends n over the session bus and returns the id the
// server assigned.
func desktopNotify(ctx context.Context, n desktopNotification) (uint32, error) {
	out, err := busctl(ctx, "Notify", n.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}
	return parseNotificationID(out)
}

// desktopDismiss closes a notification by id.
func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsDest, method}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}

// parseNotificationID reads busctl's "u <id>" reply.
func parseNotificationID(out string) (uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}
