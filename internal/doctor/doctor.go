// Package doctor runs runtime readiness diagnostics for config, tools,
// audio, and the transcription engine.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/config"
	"github.com/Aarkan1/vibe-writer/internal/engine"
	"github.com/Aarkan1/vibe-writer/internal/hotkey"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("no file at %q; using defaults", cfg.Path)
	}
	if len(cfg.Warnings) > 0 {
		configMessage += fmt.Sprintf(" (%d warning(s))", len(cfg.Warnings))
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkChord(cfg.Config.Hotkey.ActivationKey))

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir set", "XDG_RUNTIME_DIR is empty; control socket unavailable"))

	if len(cfg.Config.Output.TypeCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Output.TypeCmd.Argv, "type_cmd"))
	} else {
		checks = append(checks, checkBinary("ydotool", "default typing path requires ydotool"))
	}
	checks = append(checks, checkCommand(cfg.Config.Output.Clipboard.Argv, "clipboard_cmd"))
	checks = append(checks, checkCommand(cfg.Config.Output.PasteCmd.Argv, "paste_cmd"))

	if cfg.Config.Notify.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications require busctl"))
	}

	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkEngineReady(cfg.Config))

	return Report{Checks: checks}
}

// checkChord validates that the configured activation chord parses.
func checkChord(spec string) Check {
	chord, err := hotkey.ParseChord(spec)
	if err != nil {
		return Check{Name: "hotkey.activation_key", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hotkey.activation_key", Pass: true, Message: fmt.Sprintf("chord %s", chord.String())}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Recording.Input, cfg.Recording.Fallback)
	if err != nil {
		return Check{Name: "recording.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "recording.device", Pass: true, Message: message}
}

// checkEngineReady probes the configured transcription backend.
func checkEngineReady(cfg config.Config) Check {
	name := "engine." + strings.ToLower(cfg.Engine.Backend)

	backend, err := engine.New(cfg.Engine)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := backend.Ready(ctx); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s backend ready", backend.Name())}
}
