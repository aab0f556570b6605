package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Questions.Source {
	case "http":
		if err := validateBaseURL(cfg.Backend.BaseURL); err != nil {
			return nil, err
		}
	case "file":
		if strings.TrimSpace(cfg.Questions.File) == "" {
			return nil, fmt.Errorf("questions.file must not be empty when questions.source=file")
		}
		if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
			warnings = append(warnings, Warning{Message: "backend.base_url is empty; results will not be submitted"})
		} else if err := validateBaseURL(cfg.Backend.BaseURL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("questions.source must be one of: http, file")
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.timeout_ms must be > 0")
	}

	if strings.TrimSpace(cfg.Recognizer.Endpoint) == "" {
		return nil, fmt.Errorf("recognizer.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Recognizer.LanguageCode) == "" {
		return nil, fmt.Errorf("recognizer.language_code must not be empty")
	}
	if cfg.Recognizer.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("recognizer.dial_timeout_ms must be > 0")
	}
	if cfg.Recognizer.MaxRestarts < 0 {
		return nil, fmt.Errorf("recognizer.max_restarts must be >= 0")
	}
	if cfg.Recognizer.RestartDelayMS < 0 {
		return nil, fmt.Errorf("recognizer.restart_delay_ms must be >= 0")
	}

	if cfg.TTS.Enable && len(cfg.TTS.Command.Argv) == 0 {
		return nil, fmt.Errorf("tts.command must not be empty when tts.enable=true")
	}

	pacing := map[string]int{
		"pacing.thinking_ms":          cfg.Pacing.ThinkingMS,
		"pacing.settle_ms":            cfg.Pacing.SettleMS,
		"pacing.acknowledge_ms":       cfg.Pacing.AcknowledgeMS,
		"pacing.closing_ms":           cfg.Pacing.ClosingMS,
		"pacing.greeting_ms":          cfg.Pacing.GreetingMS,
		"pacing.min_transcript_chars": cfg.Pacing.MinTranscriptChars,
	}
	for _, key := range sortedKeys(pacing) {
		if pacing[key] < 0 {
			return nil, fmt.Errorf("%s must be >= 0", key)
		}
	}
	if cfg.Pacing.SilenceMS <= 0 {
		return nil, fmt.Errorf("pacing.silence_ms must be > 0")
	}

	switch cfg.Storage.Backend {
	case "local":
	case "minio":
		if strings.TrimSpace(cfg.Storage.Endpoint) == "" {
			return nil, fmt.Errorf("storage.endpoint must not be empty when storage.backend=minio")
		}
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return nil, fmt.Errorf("storage.bucket must not be empty when storage.backend=minio")
		}
		if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
			warnings = append(warnings, Warning{Message: "storage credentials are not set; minio uploads will be anonymous"})
		}
	default:
		return nil, fmt.Errorf("storage.backend must be one of: local, minio")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend.base_url must include a host")
	}
	return nil
}

// BuildSpeechPhrases merges enabled vocab sets into a sorted, deduplicated phrase list.
func BuildSpeechPhrases(cfg Config) ([]string, []Warning, error) {
	if len(cfg.Vocab.GlobalSets) == 0 {
		return nil, nil, nil
	}

	warnings := make([]Warning, 0)
	seenIn := make(map[string]string)

	for _, name := range cfg.Vocab.GlobalSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if from, exists := seenIn[phrase]; exists {
				if from != name {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q", phrase, from, name)})
				}
				continue
			}
			seenIn[phrase] = name
		}
	}

	if len(seenIn) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(seenIn), cfg.Vocab.MaxPhrases)
	}

	return sortedKeys(seenIn), warnings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
