// Package notify surfaces session lifecycle events as desktop notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const commandTimeout = 1500 * time.Millisecond

// Notifier sends freedesktop notifications over DBus via busctl.
//
// Every call is fire-and-forget; notification failures are logged and never
// affect the recording session.
type Notifier struct {
	enabled bool
	appName string
	logger  *slog.Logger

	mu     sync.Mutex
	lastID uint32
}

// New builds a notifier; a disabled config yields a no-op notifier.
func New(enabled bool, appName string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if appName == "" {
		appName = "vibe-writer"
	}
	return &Notifier{enabled: enabled, appName: appName, logger: logger}
}

// RecordingStarted shows the recording indicator.
func (n *Notifier) RecordingStarted(ctx context.Context) {
	n.show(ctx, "Recording…", 300000)
}

// RecordingStopped shows the transcribing indicator.
func (n *Notifier) RecordingStopped(ctx context.Context) {
	n.show(ctx, "Transcribing…", 300000)
}

// TranscriptReady dismisses any active indicator.
func (n *Notifier) TranscriptReady(ctx context.Context) {
	n.Dismiss(ctx)
}

// Error shows a short-lived failure notice.
func (n *Notifier) Error(ctx context.Context, text string) {
	if text == "" {
		text = "Dictation failed"
	}
	n.show(ctx, text, 2000)
}

// Dismiss closes the active notification, if any.
func (n *Notifier) Dismiss(ctx context.Context) {
	if !n.enabled {
		return
	}
	n.mu.Lock()
	id := n.lastID
	n.lastID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(withoutCancel(ctx), commandTimeout)
		defer cancel()
		if err := desktopDismiss(ctx, id); err != nil {
			n.logger.Debug("notification dismiss failed", "error", err.Error())
		}
	}()
}

// show replaces the active notification with a new summary.
func (n *Notifier) show(ctx context.Context, summary string, timeoutMS int) {
	if !n.enabled {
		return
	}
	n.mu.Lock()
	replaceID := n.lastID
	n.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(withoutCancel(ctx), commandTimeout)
		defer cancel()

		id, err := desktopNotify(ctx, n.appName, replaceID, summary, timeoutMS)
		if err != nil {
			n.logger.Debug("notification failed", "error", err.Error())
			return
		}
		n.mu.Lock()
		n.lastID = id
		n.mu.Unlock()
	}()
}

// withoutCancel detaches notification commands from the caller's lifetime so
// a finalize that completes quickly cannot kill its own notice.
func withoutCancel(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// desktopNotify calls org.freedesktop.Notifications.Notify and returns the
// server-assigned notification ID.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		summary,
		"",
		"0", // actions array length
		"0", // hints map length
		strconv.Itoa(timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}
	return parseNotifyReply(string(out))
}

// desktopDismiss requests explicit close by notification ID.
func desktopDismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"CloseNotification",
		"u",
		strconv.FormatUint(uint64(id), 10),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("desktop dismiss failed: %w", err)
		}
		return fmt.Errorf("desktop dismiss failed: %w (%s)", err, trimmed)
	}
	return nil
}

// parseNotifyReply extracts the uint32 ID from a busctl "u <id>" reply.
func parseNotifyReply(out string) (uint32, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(out))
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}
