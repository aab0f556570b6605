package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

type jsoncConfig struct {
	Backend    *jsoncBackend    `json:"backend"`
	Questions  *jsoncQuestions  `json:"questions"`
	Recognizer *jsoncRecognizer `json:"recognizer"`
	TTS        *jsoncTTS        `json:"tts"`
	Audio      *jsoncAudio      `json:"audio"`
	Camera     *jsoncCamera     `json:"camera"`
	Pacing     *jsoncPacing     `json:"pacing"`
	Storage    *jsoncStorage    `json:"storage"`
	Indicator  *jsoncIndicator  `json:"indicator"`
	Metrics    *jsoncMetrics    `json:"metrics"`
	Vocab      *jsoncVocab      `json:"vocab"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncBackend struct {
	BaseURL   *string `json:"base_url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncQuestions struct {
	Source *string `json:"source"`
	File   *string `json:"file"`
}

type jsoncRecognizer struct {
	Endpoint             *string `json:"endpoint"`
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	DialTimeoutMS        *int    `json:"dial_timeout_ms"`
	MaxRestarts          *int    `json:"max_restarts"`
	RestartDelayMS       *int    `json:"restart_delay_ms"`
}

type jsoncTTS struct {
	Enable  *bool   `json:"enable"`
	Command *string `json:"command"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncCamera struct {
	DeviceGlob *string `json:"device_glob"`
}

type jsoncPacing struct {
	ThinkingMS         *int `json:"thinking_ms"`
	SettleMS           *int `json:"settle_ms"`
	AcknowledgeMS      *int `json:"acknowledge_ms"`
	GreetingMS         *int `json:"greeting_ms"`
	ClosingMS          *int `json:"closing_ms"`
	SilenceMS          *int `json:"silence_ms"`
	MinTranscriptChars *int `json:"min_transcript_chars"`
}

type jsoncStorage struct {
	Backend       *string `json:"backend"`
	Dir           *string `json:"dir"`
	Endpoint      *string `json:"endpoint"`
	Bucket        *string `json:"bucket"`
	UseSSL        *bool   `json:"use_ssl"`
	PublicBaseURL *string `json:"public_base_url"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncVocab struct {
	Global     *jsoncStringList           `json:"global"`
	MaxPhrases *int                       `json:"max_phrases"`
	Sets       map[string]jsoncStringList `json:"sets"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

// Parse reads JSONC configuration content over base and validates the result.
//
// Comments and trailing commas are accepted; unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	// ToJSON blanks comments in place, so decoder offsets still map to the source.
	normalized := string(jsonc.ToJSON([]byte(content)))

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if b := payload.Backend; b != nil {
		setString(&cfg.Backend.BaseURL, b.BaseURL)
		setInt(&cfg.Backend.TimeoutMS, b.TimeoutMS)
	}

	if q := payload.Questions; q != nil {
		if q.Source != nil {
			cfg.Questions.Source = strings.ToLower(strings.TrimSpace(*q.Source))
		}
		setString(&cfg.Questions.File, q.File)
	}

	if r := payload.Recognizer; r != nil {
		setString(&cfg.Recognizer.Endpoint, r.Endpoint)
		setString(&cfg.Recognizer.LanguageCode, r.LanguageCode)
		setString(&cfg.Recognizer.Model, r.Model)
		setBool(&cfg.Recognizer.AutomaticPunctuation, r.AutomaticPunctuation)
		setInt(&cfg.Recognizer.DialTimeoutMS, r.DialTimeoutMS)
		setInt(&cfg.Recognizer.MaxRestarts, r.MaxRestarts)
		setInt(&cfg.Recognizer.RestartDelayMS, r.RestartDelayMS)
	}

	if t := payload.TTS; t != nil {
		setBool(&cfg.TTS.Enable, t.Enable)
		if t.Command != nil {
			raw := *t.Command
			argv, err := parseArgv(raw)
			if err != nil {
				return fmt.Errorf("invalid tts.command: %w", err)
			}
			cfg.TTS.Command = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if c := payload.Camera; c != nil {
		setString(&cfg.Camera.DeviceGlob, c.DeviceGlob)
	}

	if p := payload.Pacing; p != nil {
		setInt(&cfg.Pacing.ThinkingMS, p.ThinkingMS)
		setInt(&cfg.Pacing.SettleMS, p.SettleMS)
		setInt(&cfg.Pacing.AcknowledgeMS, p.AcknowledgeMS)
		setInt(&cfg.Pacing.GreetingMS, p.GreetingMS)
		setInt(&cfg.Pacing.ClosingMS, p.ClosingMS)
		setInt(&cfg.Pacing.SilenceMS, p.SilenceMS)
		setInt(&cfg.Pacing.MinTranscriptChars, p.MinTranscriptChars)
	}

	if s := payload.Storage; s != nil {
		if s.Backend != nil {
			cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(*s.Backend))
		}
		setString(&cfg.Storage.Dir, s.Dir)
		setString(&cfg.Storage.Endpoint, s.Endpoint)
		setString(&cfg.Storage.Bucket, s.Bucket)
		setBool(&cfg.Storage.UseSSL, s.UseSSL)
		setString(&cfg.Storage.PublicBaseURL, s.PublicBaseURL)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if m := payload.Metrics; m != nil {
		setString(&cfg.Metrics.Listen, m.Listen)
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = cfg.Vocab.GlobalSets[:0]
			for _, name := range *v.Global {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
			}
		}
		setInt(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		if v.Sets != nil {
			if cfg.Vocab.Sets == nil {
				cfg.Vocab.Sets = make(map[string][]string)
			}
			for name, phrases := range v.Sets {
				trimmed := strings.TrimSpace(name)
				if trimmed == "" {
					return fmt.Errorf("vocab.sets contains an empty set name")
				}
				cfg.Vocab.Sets[trimmed] = append([]string(nil), phrases...)
			}
		}
	}

	if d := payload.Debug; d != nil {
		setBool(&cfg.Debug.EnableAudioDump, d.AudioDump)
		setBool(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
