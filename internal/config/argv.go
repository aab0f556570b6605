package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// TextPlaceholder marks where a spoken prompt goes in the TTS command.
// Without it the prompt is appended as the last argument.
const TextPlaceholder = "{text}"

var (
	errUnterminatedQuote  = errors.New("unterminated quote")
	errUnterminatedEscape = errors.New("unterminated escape sequence")
)

// parseArgv splits a shell-like command line into argv, honoring single
// and double quotes and backslash escapes. Environment references and a
// leading ~ are expanded per argument. A line starting with # is empty.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	words, err := splitWords(input)
	if err != nil {
		return nil, fmt.Errorf("%w in command: %q", err, input)
	}

	placeholders := 0
	for i, word := range words {
		if strings.Contains(word, TextPlaceholder) {
			placeholders++
			continue
		}
		words[i] = expandWord(word)
	}
	if placeholders > 1 {
		return nil, fmt.Errorf("command %q uses %s more than once", input, TextPlaceholder)
	}
	return words, nil
}

func splitWords(input string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escape  bool
	)

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escape:
		return nil, errUnterminatedEscape
	case quote != 0:
		return nil, errUnterminatedQuote
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

func expandWord(word string) string {
	word = os.ExpandEnv(word)
	if word == "~" || strings.HasPrefix(word, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			word = filepath.Join(home, strings.TrimPrefix(word, "~"))
		}
	}
	return word
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
