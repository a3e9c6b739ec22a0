package config

import (
	"fmt"
	"strconv"
	"strings"
)

const legacyFormatWarning = "legacy key=value config format is deprecated; migrate to JSONC"

// Parse reads configuration content as JSONC (preferred) or legacy key/value format.
//
// JSONC is selected when the first non-whitespace character is `{`.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		cfg, warnings := Validate(base)
		return cfg, warnings, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		return parseJSONC(content, base)
	}

	cfg, warnings, err := parseLegacy(content, base)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append([]Warning{{Message: legacyFormatWarning}}, warnings...)
	return cfg, warnings, nil
}

// parseLegacy reads dotted key=value lines, one setting per line.
func parseLegacy(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	for lineNo, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			warnings = append(warnings, Warning{Line: lineNo + 1, Message: fmt.Sprintf("expected key=value, got %q", line)})
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if warning := applyLegacyKey(&cfg, key, value); warning != "" {
			warnings = append(warnings, Warning{Line: lineNo + 1, Message: warning})
		}
	}

	cfg, validated := Validate(cfg)
	warnings = append(warnings, validated...)
	return cfg, warnings, nil
}

// applyLegacyKey sets one dotted config key, returning a warning message on failure.
func applyLegacyKey(cfg *Config, key string, value string) string {
	setBool := func(dst *bool) string {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Sprintf("%s: expected boolean, got %q", key, value)
		}
		*dst = parsed
		return ""
	}
	setInt := func(dst *int) string {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Sprintf("%s: expected integer, got %q", key, value)
		}
		*dst = parsed
		return ""
	}
	setCommand := func(dst *CommandConfig) string {
		cmd, err := ParseCommand(value)
		if err != nil {
			return fmt.Sprintf("%s: %v", key, err)
		}
		*dst = cmd
		return ""
	}

	switch key {
	case "hotkey.activation_key":
		cfg.Hotkey.ActivationKey = value
	case "recording.mode":
		cfg.Recording.Mode = value
	case "recording.input":
		cfg.Recording.Input = value
	case "recording.fallback":
		cfg.Recording.Fallback = value
	case "recording.sample_rate":
		return setInt(&cfg.Recording.SampleRate)
	case "recording.vad_enabled":
		return setBool(&cfg.Recording.VADEnabled)
	case "recording.vad_threshold":
		return setInt(&cfg.Recording.VADThreshold)
	case "recording.silence_duration_ms":
		return setInt(&cfg.Recording.SilenceDurationMS)
	case "recording.start_delay_ms":
		return setInt(&cfg.Recording.StartDelayMS)
	case "recording.max_duration_ms":
		return setInt(&cfg.Recording.MaxDurationMS)
	case "engine.backend":
		cfg.Engine.Backend = value
	case "engine.api_key_env":
		cfg.Engine.APIKeyEnv = value
	case "engine.base_url":
		cfg.Engine.BaseURL = value
	case "engine.model":
		cfg.Engine.Model = value
	case "engine.language":
		cfg.Engine.Language = value
	case "engine.timeout_ms":
		return setInt(&cfg.Engine.TimeoutMS)
	case "engine.local_url":
		cfg.Engine.LocalURL = value
	case "engine.local_health_path":
		cfg.Engine.LocalHealthPath = value
	case "output.trailing_space":
		return setBool(&cfg.Output.TrailingSpace)
	case "output.lowercase":
		return setBool(&cfg.Output.Lowercase)
	case "output.key_press_delay_ms":
		return setInt(&cfg.Output.KeyPressDelayMS)
	case "output.type_command":
		return setCommand(&cfg.Output.TypeCmd)
	case "output.clipboard_command":
		return setCommand(&cfg.Output.Clipboard)
	case "output.paste_command":
		return setCommand(&cfg.Output.PasteCmd)
	case "notify.enable":
		return setBool(&cfg.Notify.Enable)
	case "notify.app_name":
		cfg.Notify.AppName = value
	case "debug.audio_dump":
		return setBool(&cfg.Debug.EnableAudioDump)
	default:
		return fmt.Sprintf("unknown config key %q", key)
	}
	return ""
}
