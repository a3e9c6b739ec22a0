package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	paste := "wtype -M ctrl v -m ctrl"

	return Config{
		Hotkey: HotkeyConfig{
			ActivationKey: "ctrl+shift+space",
		},
		Recording: RecordingConfig{
			Mode:              "continuous",
			Input:             "default",
			Fallback:          "default",
			SampleRate:        16000,
			VADEnabled:        true,
			VADThreshold:      500,
			SilenceDurationMS: 900,
			StartDelayMS:      300,
			MaxDurationMS:     30000,
		},
		Engine: EngineConfig{
			Backend:         "local",
			APIKeyEnv:       "OPENAI_API_KEY",
			BaseURL:         "",
			Model:           "whisper-1",
			Language:        "en",
			TimeoutMS:       30000,
			LocalURL:        "http://127.0.0.1:8000",
			LocalHealthPath: "/health",
		},
		Output: OutputConfig{
			TrailingSpace:   true,
			Lowercase:       false,
			KeyPressDelayMS: 5,
			Clipboard:       mustCommand(clipboard),
			PasteCmd:        mustCommand(paste),
		},
		Notify: NotifyConfig{
			Enable:  true,
			AppName: "vibe-writer",
		},
		Debug: DebugConfig{},
	}
}
