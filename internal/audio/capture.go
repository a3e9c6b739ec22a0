package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// FrameDuration is the span of one PCM frame handed to the VAD.
const FrameDuration = 30 * time.Millisecond

// frameBytes returns the byte size of one mono s16 frame at the given rate.
func frameBytes(sampleRate int) int {
	return (sampleRate * int(FrameDuration/time.Millisecond) / 1000) * 2
}

// Stream is a live PCM source delivering fixed-size frames until stopped.
//
// The frame channel closes when the stream ends; an unexpected close while a
// segment is open is treated as device loss.
type Stream interface {
	Frames() <-chan []byte
	Stop() error
}

// StreamOpener opens a capture stream; Buffer calls it once per segment batch.
type StreamOpener func(ctx context.Context) (Stream, error)

// Capture streams fixed-size PCM frames from one selected Pulse source.
type Capture struct {
	device     Device
	sampleRate int
	frameSize  int

	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartCapture creates and starts a mono s16 record stream at the given rate.
//
// Failures to reach the Pulse server or resolve the source wrap
// ErrDeviceUnavailable.
func StartCapture(ctx context.Context, selected Device, sampleRate int) (*Capture, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", ErrDeviceUnavailable, err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", ErrDeviceUnavailable, selected.ID, err)
	}

	capture := &Capture{
		device:     selected,
		sampleRate: sampleRate,
		frameSize:  frameBytes(sampleRate),
		frames:     make(chan []byte, 128),
		stopCh:     make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(capture.frameSize)),
		pulse.RecordMediaName("vibe-writer dictation"),
	)
	if err != nil {
		_ = capture.Stop()
		return nil, fmt.Errorf("%w: create record stream: %v", ErrDeviceUnavailable, err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// SampleRate returns the stream's configured sample rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}

// Frames returns the PCM stream as fixed-size byte slices.
func (c *Capture) Frames() <-chan []byte {
	return c.frames
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Frames exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		frame := make([]byte, len(pending))
		copy(frame, pending)
		select {
		case c.frames <- frame:
		default:
		}
	}

	close(c.frames)
	return nil
}

// onPCM receives raw Pulse buffers and emits frameSize slices to c.frames.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)

	frames := make([][]byte, 0, len(c.pending)/c.frameSize)
	for len(c.pending) >= c.frameSize {
		frame := make([]byte, c.frameSize)
		copy(frame, c.pending[:c.frameSize])
		c.pending = c.pending[c.frameSize:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
