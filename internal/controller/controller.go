// Package controller serializes chord activations, capture notices, and
// dispatch completions through one event loop driving the recording state
// machine.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/dispatch"
	"github.com/Aarkan1/vibe-writer/internal/engine"
	"github.com/Aarkan1/vibe-writer/internal/fsm"
	"github.com/Aarkan1/vibe-writer/internal/hotkey"
	"github.com/Aarkan1/vibe-writer/internal/ipc"
	"github.com/Aarkan1/vibe-writer/internal/typist"
)

// LifecycleKind names one observable session event.
type LifecycleKind string

const (
	LifecycleRecordingStarted LifecycleKind = "recording_started"
	LifecycleRecordingStopped LifecycleKind = "recording_stopped"
	LifecycleTranscriptReady  LifecycleKind = "transcript_ready"
	LifecycleError            LifecycleKind = "error"
)

// LifecycleEvent is emitted for consumption by any UI layer; the controller
// itself renders nothing.
type LifecycleEvent struct {
	Kind LifecycleKind
	Text string
	Err  error
	At   time.Time
}

// CaptureBuffer is the controller-facing subset of the audio buffer.
type CaptureBuffer interface {
	BeginSegment(ctx context.Context) (string, error)
	EndSegment() audio.Segment
	Notices() <-chan audio.Notice
}

// SegmentDispatcher hands finalized segments to the transcription worker.
type SegmentDispatcher interface {
	Submit(segment audio.Segment) error
	Results() <-chan dispatch.Result
}

// TextEmitter delivers recognized text into the focused window.
type TextEmitter interface {
	Emit(ctx context.Context, text string) error
}

// Notifier is the controller-facing subset of desktop notification behavior.
type Notifier interface {
	RecordingStarted(context.Context)
	RecordingStopped(context.Context)
	TranscriptReady(context.Context)
	Error(context.Context, string)
	Dismiss(context.Context)
}

// noopNotifier preserves session flow when no notifier is wired.
type noopNotifier struct{}

func (noopNotifier) RecordingStarted(context.Context) {}
func (noopNotifier) RecordingStopped(context.Context) {}
func (noopNotifier) TranscriptReady(context.Context)  {}
func (noopNotifier) Error(context.Context, string)    {}
func (noopNotifier) Dismiss(context.Context)          {}

// command is an IPC request routed onto the event loop.
type command struct {
	name  string
	reply chan ipc.Response
}

// Controller owns the session state machine. All state mutation happens on
// the Run goroutine; producers only touch thread-safe channel handoffs.
type Controller struct {
	mode        fsm.Mode
	logger      *slog.Logger
	buffer      CaptureBuffer
	dispatcher  SegmentDispatcher
	emitter     TextEmitter
	notifier    Notifier
	activations <-chan hotkey.Activation

	commands chan command
	events   chan LifecycleEvent

	state     fsm.State
	segmentID string
}

// New wires a controller; notifier may be nil.
func New(
	mode fsm.Mode,
	buffer CaptureBuffer,
	dispatcher SegmentDispatcher,
	emitter TextEmitter,
	notifier Notifier,
	activations <-chan hotkey.Activation,
	logger *slog.Logger,
) *Controller {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		mode:        mode,
		logger:      logger,
		buffer:      buffer,
		dispatcher:  dispatcher,
		emitter:     emitter,
		notifier:    notifier,
		activations: activations,
		commands:    make(chan command, 4),
		events:      make(chan LifecycleEvent, 16),
		state:       fsm.StateIdle,
	}
}

// Events returns the lifecycle stream for UI layers.
func (c *Controller) Events() <-chan LifecycleEvent {
	return c.events
}

// Run processes events one at a time until ctx is cancelled.
//
// Being the single consumer of every producer channel is what makes the state
// machine lock-free: activations, notices, dispatch results, and IPC commands
// are all applied in arrival order. Events that land mid-finalize simply wait
// in their channel and are replayed against the post-finalize state.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("controller started", "mode", string(c.mode))
	results := c.dispatcher.Results()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil

		case activation, ok := <-c.activations:
			if !ok {
				c.shutdown()
				return nil
			}
			c.applyActivation(ctx, activation)

		case notice := <-c.buffer.Notices():
			c.applyNotice(ctx, notice)

		case result, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			c.deliver(ctx, result)

		case cmd := <-c.commands:
			cmd.reply <- c.runCommand(ctx, cmd.name)
		}
	}
}

// Handle services one IPC request by routing it onto the event loop.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	cmd := command{name: req.Command, reply: make(chan ipc.Response, 1)}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ipc.Response{OK: false, Error: "controller shutting down"}
	case <-time.After(2 * time.Second):
		return ipc.Response{OK: false, Error: "controller busy"}
	}

	select {
	case resp := <-cmd.reply:
		return resp
	case <-ctx.Done():
		return ipc.Response{OK: false, Error: "controller shutting down"}
	case <-time.After(2 * time.Second):
		return ipc.Response{OK: false, Error: "controller busy"}
	}
}

// applyActivation maps a chord edge onto the state machine.
func (c *Controller) applyActivation(ctx context.Context, activation hotkey.Activation) {
	event := fsm.EventPressed
	if activation.Edge == hotkey.EdgeReleased {
		event = fsm.EventReleased
	}
	c.apply(ctx, event)
}

// applyNotice maps a buffer condition onto the state machine, dropping
// notices from already-finalized segments.
func (c *Controller) applyNotice(ctx context.Context, notice audio.Notice) {
	if notice.SegmentID != c.segmentID {
		c.logger.Debug("dropping stale notice", "kind", string(notice.Kind), "segment", notice.SegmentID)
		return
	}
	switch notice.Kind {
	case audio.NoticeSilence:
		c.apply(ctx, fsm.EventSilence)
	case audio.NoticeMaxDuration:
		c.apply(ctx, fsm.EventMaxDuration)
	case audio.NoticeDeviceLost:
		c.apply(ctx, fsm.EventDeviceLost)
	}
}

// apply advances the state machine by one event and runs its side effects.
func (c *Controller) apply(ctx context.Context, event fsm.Event) {
	next, err := fsm.Transition(c.mode, c.state, event)
	if err != nil {
		c.logger.Debug("event is a no-op", "state", string(c.state), "event", string(event))
		return
	}
	prev := c.state
	c.state = next

	switch {
	case prev == fsm.StateIdle && next == fsm.StateRecording:
		c.startRecording(ctx)
	case next == fsm.StateFinalizing:
		c.finalize(ctx, event)
	}
}

// startRecording opens a segment; failure reports the error and returns to Idle.
func (c *Controller) startRecording(ctx context.Context) {
	id, err := c.buffer.BeginSegment(ctx)
	if err != nil {
		c.state = fsm.StateIdle
		c.logger.Error("unable to open capture segment", "error", err.Error())
		c.notifier.Error(ctx, "Unable to open the microphone")
		c.emit(LifecycleEvent{Kind: LifecycleError, Err: err})
		return
	}
	c.segmentID = id
	c.logger.Info("recording started", "segment", id)
	c.notifier.RecordingStarted(ctx)
	c.emit(LifecycleEvent{Kind: LifecycleRecordingStarted})
}

// finalize closes the open segment, hands it to the dispatcher, and resolves
// the transient Finalizing state. In continuous mode a silence-triggered
// finalize immediately re-opens a fresh segment.
func (c *Controller) finalize(ctx context.Context, trigger fsm.Event) {
	segment := c.buffer.EndSegment()
	c.segmentID = ""

	c.logger.Info("recording stopped",
		"segment", segment.ID,
		"trigger", string(trigger),
		"duration_ms", segment.Duration().Milliseconds(),
	)
	c.notifier.RecordingStopped(ctx)
	c.emit(LifecycleEvent{Kind: LifecycleRecordingStopped})

	if err := c.dispatcher.Submit(segment); err != nil {
		c.logger.Error("dispatch submit failed", "segment", segment.ID, "error", err.Error())
		c.notifier.Error(ctx, "Transcription backlog full")
		c.emit(LifecycleEvent{Kind: LifecycleError, Err: err})
	}

	c.state, _ = fsm.Transition(c.mode, fsm.StateFinalizing, fsm.EventFinalized)

	if fsm.Resume(c.mode, trigger) == fsm.StateRecording {
		c.state = fsm.StateRecording
		c.startRecording(ctx)
		if c.segmentID == "" {
			c.state = fsm.StateIdle
		}
	}
}

// deliver applies one dispatch completion to the output path.
func (c *Controller) deliver(ctx context.Context, result dispatch.Result) {
	if result.Err != nil {
		c.reportDispatchError(ctx, result.Err)
		return
	}
	if err := c.emitter.Emit(ctx, result.Text); err != nil {
		c.logger.Error("output failed", "segment", result.SegmentID, "error", err.Error())
		c.notifier.Error(ctx, "Unable to type transcript")
		c.emit(LifecycleEvent{Kind: LifecycleError, Err: err})
		return
	}
	c.notifier.TranscriptReady(ctx)
	c.emit(LifecycleEvent{Kind: LifecycleTranscriptReady, Text: result.Text})
}

// reportDispatchError surfaces a dispatch failure without stopping the session.
func (c *Controller) reportDispatchError(ctx context.Context, err error) {
	message := "Transcription failed"
	switch {
	case errors.Is(err, dispatch.ErrEmptyAudio):
		message = "No speech detected"
	case errors.Is(err, engine.ErrTimeout):
		message = "Transcription timed out"
	case errors.Is(err, engine.ErrUnavailable):
		message = "Transcription engine unavailable"
	case errors.Is(err, context.Canceled):
		return
	}
	c.logger.Warn("dispatch failed", "error", err.Error())
	c.notifier.Error(ctx, message)
	c.emit(LifecycleEvent{Kind: LifecycleError, Err: err})
}

// runCommand executes one IPC command on the event loop.
func (c *Controller) runCommand(ctx context.Context, name string) ipc.Response {
	switch name {
	case ipc.CommandStatus:
		return c.status(true, "")

	case ipc.CommandToggle:
		if c.state == fsm.StateIdle {
			c.apply(ctx, fsm.EventPressed)
			return c.status(true, "recording started")
		}
		return c.stopRecording(ctx)

	case ipc.CommandStop:
		return c.stopRecording(ctx)

	case ipc.CommandCancel:
		if c.state != fsm.StateRecording {
			return c.status(true, "nothing to cancel")
		}
		segment := c.buffer.EndSegment()
		c.segmentID = ""
		c.state = fsm.StateIdle
		c.logger.Info("recording cancelled", "segment", segment.ID)
		c.notifier.Dismiss(ctx)
		return c.status(true, "recording cancelled")

	default:
		resp := c.status(false, "")
		resp.Error = "unknown command: " + name
		return resp
	}
}

// stopRecording finalizes the open segment regardless of mode.
func (c *Controller) stopRecording(ctx context.Context) ipc.Response {
	if c.state != fsm.StateRecording {
		return c.status(true, "not recording")
	}
	c.state = fsm.StateFinalizing
	c.finalize(ctx, fsm.EventFinalized)
	return c.status(true, "recording stopped")
}

// status snapshots state for IPC replies; only called on the event loop.
func (c *Controller) status(ok bool, message string) ipc.Response {
	return ipc.Response{
		OK:      ok,
		State:   string(c.state),
		Mode:    string(c.mode),
		Message: message,
	}
}

// shutdown discards any unfinalized audio; in-flight dispatch results are
// never typed after this point.
func (c *Controller) shutdown() {
	if c.state == fsm.StateRecording {
		segment := c.buffer.EndSegment()
		c.logger.Info("discarding unfinalized audio on shutdown", "segment", segment.ID)
	}
	c.segmentID = ""
	c.state = fsm.StateIdle
	close(c.events)
	c.logger.Info("controller stopped")
}

// emit never blocks the event loop; a full lifecycle queue drops the event.
func (c *Controller) emit(event LifecycleEvent) {
	event.At = time.Now()
	select {
	case c.events <- event:
	default:
	}
}
