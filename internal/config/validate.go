package config

import (
	"fmt"
	"strings"

	"github.com/Aarkan1/vibe-writer/internal/fsm"
)

// Validate normalizes config invariants, coercing invalid values to defaults.
//
// Startup must never fail on a bad value: every coercion is reported as a
// warning and the documented default takes its place.
func Validate(cfg Config) (Config, []Warning) {
	warnings := make([]Warning, 0)
	defaults := Default()

	coerce := func(field string, got any, apply func()) {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("%s: invalid value %v; using default", field, got),
		})
		apply()
	}

	if strings.TrimSpace(cfg.Hotkey.ActivationKey) == "" {
		coerce("hotkey.activation_key", `""`, func() {
			cfg.Hotkey.ActivationKey = defaults.Hotkey.ActivationKey
		})
	}

	mode := fsm.Mode(strings.ToLower(strings.TrimSpace(cfg.Recording.Mode)))
	if !fsm.ValidMode(mode) {
		coerce("recording.mode", fmt.Sprintf("%q", cfg.Recording.Mode), func() {
			cfg.Recording.Mode = defaults.Recording.Mode
		})
	} else {
		cfg.Recording.Mode = string(mode)
	}

	if cfg.Recording.SampleRate <= 0 {
		coerce("recording.sample_rate", cfg.Recording.SampleRate, func() {
			cfg.Recording.SampleRate = defaults.Recording.SampleRate
		})
	}
	if cfg.Recording.VADThreshold <= 0 {
		coerce("recording.vad_threshold", cfg.Recording.VADThreshold, func() {
			cfg.Recording.VADThreshold = defaults.Recording.VADThreshold
		})
	}
	if cfg.Recording.SilenceDurationMS <= 0 {
		coerce("recording.silence_duration_ms", cfg.Recording.SilenceDurationMS, func() {
			cfg.Recording.SilenceDurationMS = defaults.Recording.SilenceDurationMS
		})
	}
	if cfg.Recording.StartDelayMS < 0 {
		coerce("recording.start_delay_ms", cfg.Recording.StartDelayMS, func() {
			cfg.Recording.StartDelayMS = defaults.Recording.StartDelayMS
		})
	}
	if cfg.Recording.MaxDurationMS <= 0 {
		coerce("recording.max_duration_ms", cfg.Recording.MaxDurationMS, func() {
			cfg.Recording.MaxDurationMS = defaults.Recording.MaxDurationMS
		})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Engine.Backend))
	if backend != "local" && backend != "openai" {
		coerce("engine.backend", fmt.Sprintf("%q", cfg.Engine.Backend), func() {
			cfg.Engine.Backend = defaults.Engine.Backend
		})
	} else {
		cfg.Engine.Backend = backend
	}
	if cfg.Engine.TimeoutMS <= 0 {
		coerce("engine.timeout_ms", cfg.Engine.TimeoutMS, func() {
			cfg.Engine.TimeoutMS = defaults.Engine.TimeoutMS
		})
	}
	if cfg.Engine.Backend == "local" && strings.TrimSpace(cfg.Engine.LocalURL) == "" {
		coerce("engine.local_url", `""`, func() {
			cfg.Engine.LocalURL = defaults.Engine.LocalURL
		})
	}
	if healthPath := strings.TrimSpace(cfg.Engine.LocalHealthPath); healthPath != "" && !strings.HasPrefix(healthPath, "/") {
		coerce("engine.local_health_path", fmt.Sprintf("%q", cfg.Engine.LocalHealthPath), func() {
			cfg.Engine.LocalHealthPath = defaults.Engine.LocalHealthPath
		})
	}

	if cfg.Output.KeyPressDelayMS < 0 {
		coerce("output.key_press_delay_ms", cfg.Output.KeyPressDelayMS, func() {
			cfg.Output.KeyPressDelayMS = defaults.Output.KeyPressDelayMS
		})
	}
	if cfg.Output.Clipboard.Raw != "" && len(cfg.Output.Clipboard.Argv) == 0 {
		coerce("output.clipboard_command", fmt.Sprintf("%q", cfg.Output.Clipboard.Raw), func() {
			cfg.Output.Clipboard = defaults.Output.Clipboard
		})
	}
	if len(cfg.Output.Clipboard.Argv) == 0 {
		cfg.Output.Clipboard = defaults.Output.Clipboard
	}
	if cfg.Output.PasteCmd.Raw != "" && len(cfg.Output.PasteCmd.Argv) == 0 {
		coerce("output.paste_command", fmt.Sprintf("%q", cfg.Output.PasteCmd.Raw), func() {
			cfg.Output.PasteCmd = defaults.Output.PasteCmd
		})
	}

	if cfg.Notify.Enable && strings.TrimSpace(cfg.Notify.AppName) == "" {
		coerce("notify.app_name", `""`, func() {
			cfg.Notify.AppName = defaults.Notify.AppName
		})
	}

	return cfg, warnings
}
