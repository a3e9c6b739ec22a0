package typist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/config"
)

// ErrOutputFailed indicates both the typing path and the clipboard-paste
// fallback failed; the session keeps running.
var ErrOutputFailed = errors.New("output failed")

const commandTimeout = 2 * time.Second

// Typist injects processed transcripts into whatever window has focus.
type Typist struct {
	config config.OutputConfig
	logger *slog.Logger
}

// New constructs a typist from runtime output config.
func New(cfg config.OutputConfig, logger *slog.Logger) *Typist {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Typist{config: cfg, logger: logger}
}

// Emit post-processes text and delivers it as keystrokes, falling back to
// clipboard + paste when key injection fails.
func (t *Typist) Emit(ctx context.Context, text string) error {
	processed := Process(text, Options{
		Lowercase:     t.config.Lowercase,
		TrailingSpace: t.config.TrailingSpace,
	})
	if processed == "" {
		return nil
	}

	typeErr := t.typeText(ctx, processed)
	if typeErr == nil {
		return nil
	}
	t.logger.Warn("key injection failed; trying clipboard paste", "error", typeErr.Error())

	if pasteErr := t.pasteText(ctx, processed); pasteErr != nil {
		return fmt.Errorf("%w: typing: %v; paste fallback: %v", ErrOutputFailed, typeErr, pasteErr)
	}
	return nil
}

// typeText emits per-character key events through the configured tool.
//
// The default path shells out to ydotool; a custom output.type_cmd receives
// the text on stdin instead.
func (t *Typist) typeText(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	safe := TransliterateForTyping(text)

	if len(t.config.TypeCmd.Argv) > 0 {
		return runCommandWithInput(ctx, t.config.TypeCmd.Argv, safe)
	}

	argv := []string{
		"ydotool", "type",
		"--key-delay", strconv.Itoa(t.config.KeyPressDelayMS),
		"--", safe,
	}
	return runCommandWithInput(ctx, argv, "")
}

// pasteText copies the text to the clipboard and dispatches the paste chord.
func (t *Typist) pasteText(ctx context.Context, text string) error {
	clipboardCtx, clipboardCancel := context.WithTimeout(ctx, commandTimeout)
	defer clipboardCancel()
	if err := runCommandWithInput(clipboardCtx, t.config.Clipboard.Argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	pasteCtx, pasteCancel := context.WithTimeout(ctx, commandTimeout)
	defer pasteCancel()
	if err := runCommandWithInput(pasteCtx, t.config.PasteCmd.Argv, ""); err != nil {
		return fmt.Errorf("dispatch paste: %w", err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
