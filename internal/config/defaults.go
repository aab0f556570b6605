package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	tts := "espeak-ng"

	return Config{
		Backend: BackendConfig{
			BaseURL:   "http://127.0.0.1:8080",
			TimeoutMS: 10000,
		},
		Questions: QuestionsConfig{Source: "http"},
		Recognizer: RecognizerConfig{
			Endpoint:             "127.0.0.1:50051",
			LanguageCode:         "en-US",
			AutomaticPunctuation: true,
			DialTimeoutMS:        5000,
			MaxRestarts:          3,
			RestartDelayMS:       500,
		},
		TTS: TTSConfig{
			Enable:  true,
			Command: CommandConfig{Raw: tts, Argv: mustParseArgv(tts)},
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Camera: CameraConfig{DeviceGlob: "/dev/video*"},
		Pacing: PacingConfig{
			ThinkingMS:         2000,
			SettleMS:           1000,
			AcknowledgeMS:      3000,
			GreetingMS:         4000,
			ClosingMS:          8000,
			SilenceMS:          2500,
			MinTranscriptChars: 5,
		},
		Storage: StorageConfig{Backend: "local"},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "proctor",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Vocab: VocabConfig{
			Sets:       map[string][]string{},
			MaxPhrases: 1024,
		},
	}
}
