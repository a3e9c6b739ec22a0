// Package config resolves, parses, validates, and defaults vibe-writer configuration.
package config

// Config is the fully materialized runtime configuration used by vibe-writer.
type Config struct {
	Hotkey    HotkeyConfig
	Recording RecordingConfig
	Engine    EngineConfig
	Output    OutputConfig
	Notify    NotifyConfig
	Debug     DebugConfig
}

// HotkeyConfig controls the global activation chord.
type HotkeyConfig struct {
	ActivationKey string
}

// RecordingConfig controls capture device selection, mode, and VAD behavior.
type RecordingConfig struct {
	Mode              string
	Input             string
	Fallback          string
	SampleRate        int
	VADEnabled        bool
	VADThreshold      int
	SilenceDurationMS int
	StartDelayMS      int
	MaxDurationMS     int
}

// EngineConfig selects and parameterizes the transcription backend.
type EngineConfig struct {
	Backend         string
	APIKeyEnv       string
	BaseURL         string
	Model           string
	Language        string
	TimeoutMS       int
	LocalURL        string
	LocalHealthPath string
}

// OutputConfig controls transcript post-processing and keystroke emission.
type OutputConfig struct {
	TrailingSpace   bool
	Lowercase       bool
	KeyPressDelayMS int
	TypeCmd         CommandConfig
	Clipboard       CommandConfig
	PasteCmd        CommandConfig
}

// NotifyConfig controls optional desktop notifications for lifecycle events.
type NotifyConfig struct {
	Enable  bool
	AppName string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
