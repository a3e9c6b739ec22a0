package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/cli"
	"github.com/Aarkan1/vibe-writer/internal/config"
	"github.com/Aarkan1/vibe-writer/internal/controller"
	"github.com/Aarkan1/vibe-writer/internal/dispatch"
	"github.com/Aarkan1/vibe-writer/internal/doctor"
	"github.com/Aarkan1/vibe-writer/internal/engine"
	"github.com/Aarkan1/vibe-writer/internal/fsm"
	"github.com/Aarkan1/vibe-writer/internal/hotkey"
	"github.com/Aarkan1/vibe-writer/internal/ipc"
	"github.com/Aarkan1/vibe-writer/internal/logging"
	"github.com/Aarkan1/vibe-writer/internal/notify"
	"github.com/Aarkan1/vibe-writer/internal/typist"
	"github.com/Aarkan1/vibe-writer/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("vibe-writer"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("vibe-writer"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	if parsed.Mode != "" {
		mode := fsm.Mode(strings.ToLower(strings.TrimSpace(parsed.Mode)))
		if !fsm.ValidMode(mode) {
			fmt.Fprintf(r.Stderr, "error: unknown recording mode %q\n", parsed.Mode)
			return 2
		}
		cfgLoaded.Config.Recording.Mode = string(mode)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandToggle:
		return r.forwardOrFail(ctx, ipc.CommandToggle)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		state := resp.State
		if state == "" {
			state = "idle"
		}
		if resp.Mode != "" {
			fmt.Fprintf(r.Stdout, "%s (%s)\n", state, resp.Mode)
		} else {
			fmt.Fprintln(r.Stdout, state)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active vibe-writer daemon (start one with 'vibe-writer run')")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandRun starts the long-lived dictation daemon: chord detector, capture
// buffer, dispatcher, typist, and the IPC control socket.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: vibe-writer daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	chord, err := hotkey.ParseChord(cfg.Hotkey.ActivationKey)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	backend, err := engine.New(cfg.Engine)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	dispatcher := dispatch.New(backend, dispatch.Options{
		Language:         cfg.Engine.Language,
		SilenceThreshold: cfg.Recording.VADThreshold,
	}, logger)
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	opener := func(ctx context.Context) (audio.Stream, error) {
		selection, err := audio.SelectDevice(ctx, cfg.Recording.Input, cfg.Recording.Fallback)
		if err != nil {
			return nil, err
		}
		if selection.Warning != "" {
			logger.Warn("device selection", "warning", selection.Warning)
		}
		capture, err := audio.StartCapture(ctx, selection.Device, cfg.Recording.SampleRate)
		if err != nil {
			return nil, err
		}
		logger.Info("capture started",
			"device", capture.Device().ID,
			"sample_rate", capture.SampleRate(),
		)
		return &meteredStream{captureStream: capture, logger: logger}, nil
	}

	var buffer controller.CaptureBuffer = audio.NewBuffer(audio.BufferOptions{
		SampleRate:   cfg.Recording.SampleRate,
		VADEnabled:   cfg.Recording.VADEnabled,
		VADThreshold: cfg.Recording.VADThreshold,
		SilenceAfter: time.Duration(cfg.Recording.SilenceDurationMS) * time.Millisecond,
		StartDelay:   time.Duration(cfg.Recording.StartDelayMS) * time.Millisecond,
		MaxDuration:  time.Duration(cfg.Recording.MaxDurationMS) * time.Millisecond,
	}, opener, logger)

	if cfg.Debug.EnableAudioDump {
		buffer = &dumpingBuffer{inner: buffer, logger: logger}
	}

	detector := hotkey.NewDetector(chord, logger)
	if err := detector.Start(); err != nil {
		if errors.Is(err, hotkey.ErrPermissionDenied) {
			fmt.Fprintln(r.Stderr, "error: cannot install keyboard hook; check input permissions")
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	defer detector.Stop()

	notifier := notify.New(cfg.Notify.Enable, cfg.Notify.AppName, logger)
	emitter := typist.New(cfg.Output, logger)

	ctrl := controller.New(
		fsm.Mode(cfg.Recording.Mode),
		buffer,
		dispatcher,
		emitter,
		notifier,
		detector.Events(),
		logger,
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, ctrl)
	}()

	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for event := range ctrl.Events() {
			logLifecycle(logger, event)
		}
	}()

	fmt.Fprintf(r.Stdout, "listening for %s (%s mode)\n", chord.String(), cfg.Recording.Mode)

	runErr := ctrl.Run(ctx)
	serverCancel()
	<-eventsDone
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

func logLifecycle(logger *slog.Logger, event controller.LifecycleEvent) {
	switch event.Kind {
	case controller.LifecycleError:
		msg := ""
		if event.Err != nil {
			msg = event.Err.Error()
		}
		logger.Error("lifecycle", "kind", string(event.Kind), "error", msg)
	case controller.LifecycleTranscriptReady:
		logger.Info("lifecycle", "kind", string(event.Kind), "transcript_length", len(event.Text))
	default:
		logger.Info("lifecycle", "kind", string(event.Kind))
	}
}

// captureStream is the capture surface the daemon meters: frames plus the
// device identity and byte counters behind them.
type captureStream interface {
	audio.Stream
	Device() audio.Device
	SampleRate() int
	BytesCaptured() int64
}

// meteredStream logs device identity and total bytes captured when a capture
// stream closes.
type meteredStream struct {
	captureStream
	logger *slog.Logger
}

func (m *meteredStream) Stop() error {
	err := m.captureStream.Stop()
	m.logger.Info("capture stopped",
		"device", m.Device().ID,
		"bytes_captured", m.BytesCaptured(),
	)
	return err
}

// dumpingBuffer writes each finalized segment to a WAV file under the state
// directory before handing it back to the controller.
type dumpingBuffer struct {
	inner  controller.CaptureBuffer
	logger *slog.Logger
}

func (d *dumpingBuffer) BeginSegment(ctx context.Context) (string, error) {
	return d.inner.BeginSegment(ctx)
}

func (d *dumpingBuffer) Notices() <-chan audio.Notice {
	return d.inner.Notices()
}

func (d *dumpingBuffer) EndSegment() audio.Segment {
	segment := d.inner.EndSegment()
	if segment.Empty() {
		return segment
	}

	dir, err := logging.StateDir()
	if err != nil {
		d.logger.Warn("audio dump skipped", "error", err.Error())
		return segment
	}
	dumpDir := filepath.Join(dir, "dumps")
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		d.logger.Warn("audio dump skipped", "error", err.Error())
		return segment
	}

	path := filepath.Join(dumpDir, fmt.Sprintf("segment-%s.wav", segment.ID))
	file, err := os.Create(path)
	if err != nil {
		d.logger.Warn("audio dump skipped", "error", err.Error())
		return segment
	}
	defer file.Close()

	if err := audio.WriteWAV(file, segment.PCM(), segment.SampleRate, 1); err != nil {
		d.logger.Warn("audio dump failed", "path", path, "error", err.Error())
		return segment
	}
	d.logger.Debug("audio dump written", "path", path, "bytes", len(segment.PCM()))
	return segment
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
