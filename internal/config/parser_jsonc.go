package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Hotkey    *jsoncHotkey    `json:"hotkey"`
	Recording *jsoncRecording `json:"recording"`
	Engine    *jsoncEngine    `json:"engine"`
	Output    *jsoncOutput    `json:"output"`
	Notify    *jsoncNotify    `json:"notify"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncHotkey struct {
	ActivationKey *string `json:"activation_key"`
}

type jsoncRecording struct {
	Mode              *string `json:"mode"`
	Input             *string `json:"input"`
	Fallback          *string `json:"fallback"`
	SampleRate        *int    `json:"sample_rate"`
	VADEnabled        *bool   `json:"vad_enabled"`
	VADThreshold      *int    `json:"vad_threshold"`
	SilenceDurationMS *int    `json:"silence_duration_ms"`
	StartDelayMS      *int    `json:"start_delay_ms"`
	MaxDurationMS     *int    `json:"max_duration_ms"`
}

type jsoncEngine struct {
	Backend         *string `json:"backend"`
	APIKeyEnv       *string `json:"api_key_env"`
	BaseURL         *string `json:"base_url"`
	Model           *string `json:"model"`
	Language        *string `json:"language"`
	TimeoutMS       *int    `json:"timeout_ms"`
	LocalURL        *string `json:"local_url"`
	LocalHealthPath *string `json:"local_health_path"`
}

type jsoncOutput struct {
	TrailingSpace    *bool   `json:"trailing_space"`
	Lowercase        *bool   `json:"lowercase"`
	KeyPressDelayMS  *int    `json:"key_press_delay_ms"`
	TypeCommand      *string `json:"type_command"`
	ClipboardCommand *string `json:"clipboard_command"`
	PasteCommand     *string `json:"paste_command"`
}

type jsoncNotify struct {
	Enable  *bool   `json:"enable"`
	AppName *string `json:"app_name"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

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
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	cfg, validated := Validate(cfg)
	warnings = append(warnings, validated...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Hotkey != nil && payload.Hotkey.ActivationKey != nil {
		cfg.Hotkey.ActivationKey = strings.TrimSpace(*payload.Hotkey.ActivationKey)
	}

	if payload.Recording != nil {
		rec := payload.Recording
		if rec.Mode != nil {
			cfg.Recording.Mode = strings.TrimSpace(*rec.Mode)
		}
		if rec.Input != nil {
			cfg.Recording.Input = *rec.Input
		}
		if rec.Fallback != nil {
			cfg.Recording.Fallback = *rec.Fallback
		}
		if rec.SampleRate != nil {
			cfg.Recording.SampleRate = *rec.SampleRate
		}
		if rec.VADEnabled != nil {
			cfg.Recording.VADEnabled = *rec.VADEnabled
		}
		if rec.VADThreshold != nil {
			cfg.Recording.VADThreshold = *rec.VADThreshold
		}
		if rec.SilenceDurationMS != nil {
			cfg.Recording.SilenceDurationMS = *rec.SilenceDurationMS
		}
		if rec.StartDelayMS != nil {
			cfg.Recording.StartDelayMS = *rec.StartDelayMS
		}
		if rec.MaxDurationMS != nil {
			cfg.Recording.MaxDurationMS = *rec.MaxDurationMS
		}
	}

	if payload.Engine != nil {
		eng := payload.Engine
		if eng.Backend != nil {
			cfg.Engine.Backend = strings.TrimSpace(*eng.Backend)
		}
		if eng.APIKeyEnv != nil {
			cfg.Engine.APIKeyEnv = strings.TrimSpace(*eng.APIKeyEnv)
		}
		if eng.BaseURL != nil {
			cfg.Engine.BaseURL = strings.TrimSpace(*eng.BaseURL)
		}
		if eng.Model != nil {
			cfg.Engine.Model = strings.TrimSpace(*eng.Model)
		}
		if eng.Language != nil {
			cfg.Engine.Language = strings.TrimSpace(*eng.Language)
		}
		if eng.TimeoutMS != nil {
			cfg.Engine.TimeoutMS = *eng.TimeoutMS
		}
		if eng.LocalURL != nil {
			cfg.Engine.LocalURL = strings.TrimSpace(*eng.LocalURL)
		}
		if eng.LocalHealthPath != nil {
			cfg.Engine.LocalHealthPath = strings.TrimSpace(*eng.LocalHealthPath)
		}
	}

	if payload.Output != nil {
		out := payload.Output
		if out.TrailingSpace != nil {
			cfg.Output.TrailingSpace = *out.TrailingSpace
		}
		if out.Lowercase != nil {
			cfg.Output.Lowercase = *out.Lowercase
		}
		if out.KeyPressDelayMS != nil {
			cfg.Output.KeyPressDelayMS = *out.KeyPressDelayMS
		}
		if out.TypeCommand != nil {
			cmd, err := ParseCommand(*out.TypeCommand)
			if err != nil {
				return nil, fmt.Errorf("output.type_command: %w", err)
			}
			cfg.Output.TypeCmd = cmd
		}
		if out.ClipboardCommand != nil {
			cmd, err := ParseCommand(*out.ClipboardCommand)
			if err != nil {
				return nil, fmt.Errorf("output.clipboard_command: %w", err)
			}
			cfg.Output.Clipboard = cmd
		}
		if out.PasteCommand != nil {
			cmd, err := ParseCommand(*out.PasteCommand)
			if err != nil {
				return nil, fmt.Errorf("output.paste_command: %w", err)
			}
			cfg.Output.PasteCmd = cmd
		}
	}

	if payload.Notify != nil {
		if payload.Notify.Enable != nil {
			cfg.Notify.Enable = *payload.Notify.Enable
		}
		if payload.Notify.AppName != nil {
			cfg.Notify.AppName = strings.TrimSpace(*payload.Notify.AppName)
		}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
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
