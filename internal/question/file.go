package question

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSource reads a bank from a YAML (or JSON) file. The token is
// ignored.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context, _ string) (Bank, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Bank{}, fmt.Errorf("read question bank %s: %w", s.Path, err)
	}
	return ParseBank(data)
}

// ParseBank decodes, normalizes, and validates a bank document.
func ParseBank(data []byte) (Bank, error) {
	if strings.TrimSpace(string(data)) == "" {
		return Bank{}, ErrNoQuestions
	}

	var bank Bank
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bank); err != nil {
		return Bank{}, fmt.Errorf("parse question bank: %w", err)
	}

	assessmentType, err := ParseAssessmentType(string(bank.AssessmentType))
	if err != nil {
		return Bank{}, err
	}
	bank.AssessmentType = assessmentType

	bank = bank.Normalize()
	if err := bank.Validate(); err != nil {
		return Bank{}, err
	}
	return bank, nil
}
