// Package transcript merges streaming recognition results into the
// candidate's spoken answer.
package transcript

import "strings"

// Assemble joins segments with whitespace normalized.
func Assemble(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
}

// Merger folds interim and final fragments into committed segments.
// Recognizers revise interim text repeatedly; a revision that extends
// the previous interim replaces it, a divergent one commits the old
// interim first.
type Merger struct {
	segments    []string
	lastInterim string
}

// Observe records one fragment. It reports whether the visible text
// changed.
func (m *Merger) Observe(text string, final bool) bool {
	text = cleanSegment(text)
	if text == "" {
		return false
	}
	before := m.Text()

	if final {
		if m.lastInterim != "" && !isContinuation(m.lastInterim, text) {
			m.segments = appendSegment(m.segments, m.lastInterim)
		}
		m.segments = appendSegment(m.segments, text)
		m.lastInterim = ""
		return m.Text() != before
	}

	if m.lastInterim != "" && !isContinuation(m.lastInterim, text) {
		m.segments = appendSegment(m.segments, m.lastInterim)
	}
	m.lastInterim = text
	return m.Text() != before
}

// Text is the committed segments plus any trailing interim.
func (m *Merger) Text() string {
	return Assemble(collectSegments(m.segments, m.lastInterim))
}

// Final is the committed text only.
func (m *Merger) Final() string {
	return Assemble(m.segments)
}

func (m *Merger) Reset() {
	m.segments = nil
	m.lastInterim = ""
}

func collectSegments(committed []string, lastInterim string) []string {
	segments := append([]string(nil), committed...)
	if interim := cleanSegment(lastInterim); interim != "" {
		segments = appendSegment(segments, interim)
	}
	return segments
}

// appendSegment merges continuations so repeated revisions do not grow
// the transcript.
func appendSegment(segments []string, text string) []string {
	text = cleanSegment(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last:
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	case strings.HasPrefix(last, text):
		return segments
	default:
		return append(segments, text)
	}
}

func isContinuation(previous string, current string) bool {
	previous = cleanSegment(previous)
	current = cleanSegment(current)
	if previous == "" || current == "" || previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	if shorter == 0 {
		return true
	}
	common := 0
	for common < shorter && prevWords[common] == currWords[common] {
		common++
	}
	return common*2 >= shorter
}

func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
