package session

import (
	"fmt"
	"strings"
)

var acknowledgments = []string{
	"Thank you for sharing that.",
	"That's very interesting.",
	"I appreciate your detailed response.",
	"Great, that gives me good insight.",
	"Thank you for explaining that.",
	"Perfect, I understand.",
	"That's exactly what I was looking for.",
}

const (
	transitionPhrase = "Great! Let's get started with the first question."
	closingPhrase    = "Thank you for your time today! That concludes our interview. Your responses have been recorded and the hiring team will be in touch soon."
)

func greeting(name, jobTitle string) string {
	var b strings.Builder
	b.WriteString("Hello")
	if name = strings.TrimSpace(name); name != "" {
		b.WriteString(" ")
		b.WriteString(name)
	}
	b.WriteString("! I'm your interviewer today")
	if jobTitle = strings.TrimSpace(jobTitle); jobTitle != "" {
		fmt.Fprintf(&b, " for the %s role", jobTitle)
	}
	b.WriteString(". I'm excited to learn more about you and your experience. Shall we begin?")
	return b.String()
}

// acknowledgment rotates through the phrase list by answered question.
func acknowledgment(answered int) string {
	return acknowledgments[answered%len(acknowledgments)]
}
