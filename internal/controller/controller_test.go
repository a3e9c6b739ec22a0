package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/dispatch"
	"github.com/Aarkan1/vibe-writer/internal/fsm"
	"github.com/Aarkan1/vibe-writer/internal/hotkey"
	"github.com/Aarkan1/vibe-writer/internal/ipc"
)

type fakeBuffer struct {
	mu       sync.Mutex
	notices  chan audio.Notice
	beginErr error
	counter  int
	openID   string
	begun    []string
	ended    []string
}

func newFakeBuffer() *fakeBuffer {
	return &fakeBuffer{notices: make(chan audio.Notice, 8)}
}

func (b *fakeBuffer) BeginSegment(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beginErr != nil {
		return "", b.beginErr
	}
	b.counter++
	b.openID = fmt.Sprintf("seg-%d", b.counter)
	b.begun = append(b.begun, b.openID)
	return b.openID, nil
}

func (b *fakeBuffer) EndSegment() audio.Segment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openID == "" {
		return audio.Segment{}
	}
	id := b.openID
	b.openID = ""
	b.ended = append(b.ended, id)
	return audio.Segment{
		ID:         id,
		SampleRate: 16000,
		Frames:     []audio.Frame{{Samples: make([]byte, 960), SampleRate: 16000, Channels: 1}},
	}
}

func (b *fakeBuffer) Notices() <-chan audio.Notice {
	return b.notices
}

func (b *fakeBuffer) raise(kind audio.NoticeKind, segmentID string) {
	b.notices <- audio.Notice{Kind: kind, SegmentID: segmentID, At: time.Now()}
}

func (b *fakeBuffer) endedSegments() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ended...)
}

func (b *fakeBuffer) begunSegments() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.begun...)
}

type fakeDispatcher struct {
	mu        sync.Mutex
	submitted []audio.Segment
	submitErr error
	results   chan dispatch.Result
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{results: make(chan dispatch.Result, 8)}
}

func (d *fakeDispatcher) Submit(segment audio.Segment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submitted = append(d.submitted, segment)
	return nil
}

func (d *fakeDispatcher) Results() <-chan dispatch.Result {
	return d.results
}

func (d *fakeDispatcher) submittedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.submitted))
	for _, s := range d.submitted {
		ids = append(ids, s.ID)
	}
	return ids
}

type fakeEmitter struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (e *fakeEmitter) Emit(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.texts = append(e.texts, text)
	return nil
}

func (e *fakeEmitter) emitted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

type harness struct {
	ctrl        *Controller
	buffer      *fakeBuffer
	dispatcher  *fakeDispatcher
	emitter     *fakeEmitter
	activations chan hotkey.Activation
	cancel      context.CancelFunc
	done        chan struct{}
}

func newHarness(t *testing.T, mode fsm.Mode) *harness {
	t.Helper()
	h := &harness{
		buffer:      newFakeBuffer(),
		dispatcher:  newFakeDispatcher(),
		emitter:     &fakeEmitter{},
		activations: make(chan hotkey.Activation, 8),
	}
	h.ctrl = New(mode, h.buffer, h.dispatcher, h.emitter, nil, h.activations, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		_ = h.ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) press() {
	h.activations <- hotkey.Activation{Edge: hotkey.EdgePressed, At: time.Now()}
}

func (h *harness) release() {
	h.activations <- hotkey.Activation{Edge: hotkey.EdgeReleased, At: time.Now()}
}

func (h *harness) waitEvent(t *testing.T, kind LifecycleKind) LifecycleEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-h.ctrl.Events():
			if !ok {
				t.Fatalf("lifecycle stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func (h *harness) status(t *testing.T) ipc.Response {
	t.Helper()
	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	return resp
}

func TestPressToToggleRoundTrip(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)
	require.Equal(t, "recording", h.status(t).State)

	h.press()
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
	require.Equal(t, []string{"seg-1"}, h.dispatcher.submittedIDs())

	h.dispatcher.results <- dispatch.Result{SegmentID: "seg-1", Text: "hello world"}
	ev := h.waitEvent(t, LifecycleTranscriptReady)
	require.Equal(t, "hello world", ev.Text)
	require.Equal(t, []string{"hello world"}, h.emitter.emitted())
}

func TestHoldToRecordReleaseFinalizes(t *testing.T) {
	h := newHarness(t, fsm.ModeHoldToRecord)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.release()
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)
	require.Equal(t, []string{"seg-1"}, h.dispatcher.submittedIDs())
}

func TestVoiceActivitySilenceFinalizes(t *testing.T) {
	h := newHarness(t, fsm.ModeVoiceActivity)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.buffer.raise(audio.NoticeSilence, "seg-1")
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
}

func TestContinuousSilenceRestartsRecording(t *testing.T) {
	h := newHarness(t, fsm.ModeContinuous)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.buffer.raise(audio.NoticeSilence, "seg-1")
	h.waitEvent(t, LifecycleRecordingStopped)
	h.waitEvent(t, LifecycleRecordingStarted)

	require.Equal(t, "recording", h.status(t).State)
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
	require.Equal(t, []string{"seg-1", "seg-2"}, h.buffer.begunSegments())

	// A second press stops for good.
	h.press()
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)
	require.Equal(t, []string{"seg-1", "seg-2"}, h.buffer.endedSegments())
}

func TestStaleSilenceNoticeIgnored(t *testing.T) {
	h := newHarness(t, fsm.ModeVoiceActivity)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.buffer.raise(audio.NoticeSilence, "other-segment")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "recording", h.status(t).State)
	require.Empty(t, h.buffer.endedSegments())
}

func TestMaxDurationForcesFinalizeWhileChordHeld(t *testing.T) {
	h := newHarness(t, fsm.ModeHoldToRecord)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.buffer.raise(audio.NoticeMaxDuration, "seg-1")
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)

	// The queued release produces no second finalize.
	h.release()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
	require.Equal(t, "idle", h.status(t).State)
}

func TestDeviceLostForcesFinalize(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.buffer.raise(audio.NoticeDeviceLost, "seg-1")
	h.waitEvent(t, LifecycleRecordingStopped)
	require.Equal(t, "idle", h.status(t).State)
	require.Equal(t, []string{"seg-1"}, h.dispatcher.submittedIDs())
}

func TestReleasedInIdleIsNoOp(t *testing.T) {
	h := newHarness(t, fsm.ModeHoldToRecord)

	h.release()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "idle", h.status(t).State)
	require.Empty(t, h.buffer.begunSegments())
}

func TestBeginSegmentFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)
	h.buffer.mu.Lock()
	h.buffer.beginErr = audio.ErrDeviceUnavailable
	h.buffer.mu.Unlock()

	h.press()
	ev := h.waitEvent(t, LifecycleError)
	require.ErrorIs(t, ev.Err, audio.ErrDeviceUnavailable)
	require.Equal(t, "idle", h.status(t).State)
}

func TestDispatchErrorSurfacesWithoutTyping(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)
	h.press()
	h.waitEvent(t, LifecycleRecordingStopped)

	h.dispatcher.results <- dispatch.Result{SegmentID: "seg-1", Err: dispatch.ErrEmptyAudio}
	ev := h.waitEvent(t, LifecycleError)
	require.ErrorIs(t, ev.Err, dispatch.ErrEmptyAudio)
	require.Empty(t, h.emitter.emitted())
}

func TestDispatchResultsStayOrdered(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	for range 2 {
		h.press()
		h.waitEvent(t, LifecycleRecordingStarted)
		h.press()
		h.waitEvent(t, LifecycleRecordingStopped)
	}
	require.Equal(t, []string{"seg-1", "seg-2"}, h.dispatcher.submittedIDs())

	h.dispatcher.results <- dispatch.Result{SegmentID: "seg-1", Text: "first"}
	h.dispatcher.results <- dispatch.Result{SegmentID: "seg-2", Text: "second"}
	h.waitEvent(t, LifecycleTranscriptReady)
	h.waitEvent(t, LifecycleTranscriptReady)
	require.Equal(t, []string{"first", "second"}, h.emitter.emitted())
}

func TestIPCToggleAndCancel(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)

	// Cancel discards the open segment without dispatching it.
	resp = h.ctrl.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
	require.Empty(t, h.dispatcher.submittedIDs())
}

func TestIPCStopWhileIdle(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, "not recording", resp.Message)
}

func TestIPCUnknownCommand(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "dance"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestShutdownDiscardsOpenSegment(t *testing.T) {
	h := newHarness(t, fsm.ModePressToToggle)

	h.press()
	h.waitEvent(t, LifecycleRecordingStarted)

	h.cancel()
	<-h.done
	require.Equal(t, []string{"seg-1"}, h.buffer.endedSegments())
	require.Empty(t, h.dispatcher.submittedIDs())

	// Lifecycle stream is closed; no typing can happen after shutdown.
	_, ok := <-h.ctrl.Events()
	require.False(t, ok)
}
