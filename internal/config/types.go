// Package config resolves, parses, validates, and defaults proctor configuration.
package config

// Config is the fully materialized runtime configuration used by proctor.
type Config struct {
	Backend    BackendConfig
	Questions  QuestionsConfig
	Recognizer RecognizerConfig
	TTS        TTSConfig
	Audio      AudioConfig
	Camera     CameraConfig
	Pacing     PacingConfig
	Storage    StorageConfig
	Indicator  IndicatorConfig
	Metrics    MetricsConfig
	Vocab      VocabConfig
	Debug      DebugConfig
}

// BackendConfig points at the assessment backend that owns tokens and results.
type BackendConfig struct {
	BaseURL   string
	TimeoutMS int
	APIKey    string
}

// QuestionsConfig selects where question banks come from.
type QuestionsConfig struct {
	Source string
	File   string
}

// RecognizerConfig controls the streaming speech recognizer connection.
type RecognizerConfig struct {
	Endpoint             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	DialTimeoutMS        int
	MaxRestarts          int
	RestartDelayMS       int
}

// TTSConfig controls spoken prompts.
type TTSConfig struct {
	Enable  bool
	Command CommandConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// CameraConfig controls best-effort camera detection.
type CameraConfig struct {
	DeviceGlob string
}

// PacingConfig holds conversational timing in milliseconds. GreetingMS
// bounds the wait for an acknowledgment; 0 waits indefinitely.
type PacingConfig struct {
	ThinkingMS         int
	SettleMS           int
	AcknowledgeMS      int
	GreetingMS         int
	ClosingMS          int
	SilenceMS          int
	MinTranscriptChars int
}

// StorageConfig selects where recorded audio answers are uploaded.
type StorageConfig struct {
	Backend       string
	Dir           string
	Endpoint      string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled recognizer phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string][]string
	MaxPhrases int
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
