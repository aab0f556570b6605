package indicator

import (
	"fmt"
	"os"
	"strings"

	"github.com/rbright/proctor/internal/capture"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	startedFormat  string
	progressFormat string
	finished       string
	submitFailed   string
	camera         string
	microphone     string
	recognition    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			startedFormat:  "Assessment started: %d questions",
			progressFormat: "Question %d of %d",
			finished:       "Assessment complete",
			submitFailed:   "Could not submit your responses",
			camera:         "Camera not available",
			microphone:     "Microphone not available",
			recognition:    "Speech recognition not available",
		}
	}
}

func (m messages) started(total int) string {
	return fmt.Sprintf(m.startedFormat, total)
}

func (m messages) progress(current, total int) string {
	return fmt.Sprintf(m.progressFormat, current, total)
}

// unavailable describes the candidate-facing capabilities that are
// missing. Synthesis is left out; prompts are always shown as text.
func (m messages) unavailable(caps capture.Capabilities) string {
	var parts []string
	if !caps.Camera {
		parts = append(parts, m.camera)
	}
	if !caps.Microphone {
		parts = append(parts, m.microphone)
	}
	if caps.Microphone && !caps.Recognition {
		parts = append(parts, m.recognition)
	}
	return strings.Join(parts, "; ")
}
