package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Frame is one fixed-duration span of captured PCM.
type Frame struct {
	Samples    []byte
	SampleRate int
	Channels   int
	At         time.Time
}

// Segment is one continuous span of captured audio destined for a single
// transcription call.
type Segment struct {
	ID         string
	Frames     []Frame
	StartedAt  time.Time
	EndedAt    time.Time
	SampleRate int
	VADTrimmed bool
}

// PCM concatenates the segment's frames into one raw byte stream.
func (s Segment) PCM() []byte {
	size := 0
	for _, f := range s.Frames {
		size += len(f.Samples)
	}
	out := make([]byte, 0, size)
	for _, f := range s.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

// Duration returns the audible length derived from the sample count.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	samples := 0
	for _, f := range s.Frames {
		samples += len(f.Samples) / 2
	}
	return time.Duration(samples) * time.Second / time.Duration(s.SampleRate)
}

// Empty reports whether the segment holds no audio at all.
func (s Segment) Empty() bool {
	for _, f := range s.Frames {
		if len(f.Samples) > 0 {
			return false
		}
	}
	return true
}

// NoticeKind identifies an asynchronous buffer condition.
type NoticeKind string

const (
	NoticeSilence     NoticeKind = "silence_detected"
	NoticeMaxDuration NoticeKind = "max_duration_exceeded"
	NoticeDeviceLost  NoticeKind = "device_lost"
)

// Notice is raised to the controller; the buffer never acts on it itself.
type Notice struct {
	Kind      NoticeKind
	SegmentID string
	At        time.Time
}

// BufferOptions configures segment accumulation and voice-activity detection.
type BufferOptions struct {
	SampleRate   int
	VADEnabled   bool
	VADThreshold int
	SilenceAfter time.Duration
	StartDelay   time.Duration
	MaxDuration  time.Duration
}

// Buffer accumulates capture frames into at most one open segment at a time.
//
// Frames arriving while no segment is open are discarded. The buffer raises
// Notices for silence, max-duration, and device loss but never transitions
// state on its own.
type Buffer struct {
	opts   BufferOptions
	open   StreamOpener
	logger *slog.Logger

	notices chan Notice

	mu       sync.Mutex
	segment  *Segment
	stream   Stream
	detector *SilenceDetector
	cancel   context.CancelFunc
	done     chan struct{}
	bytes    int
	maxed    bool
	stopping bool
}

// NewBuffer builds a buffer that opens capture streams through open.
func NewBuffer(opts BufferOptions, open StreamOpener, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Buffer{
		opts:    opts,
		open:    open,
		logger:  logger,
		notices: make(chan Notice, 8),
	}
}

// Notices returns the asynchronous condition stream consumed by the controller.
func (b *Buffer) Notices() <-chan Notice {
	return b.notices
}

// Open reports whether a segment is currently accumulating.
func (b *Buffer) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.segment != nil
}

// BeginSegment opens the capture stream and starts accumulating frames.
//
// Stream-open failures surface as ErrDeviceUnavailable from the opener.
func (b *Buffer) BeginSegment(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.segment != nil {
		b.mu.Unlock()
		return "", errors.New("segment already open")
	}
	b.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := b.open(streamCtx)
	if err != nil {
		cancel()
		return "", err
	}

	segment := &Segment{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		SampleRate: b.opts.SampleRate,
	}

	b.mu.Lock()
	b.segment = segment
	b.stream = stream
	b.cancel = cancel
	b.done = make(chan struct{})
	b.bytes = 0
	b.maxed = false
	b.stopping = false
	if b.opts.VADEnabled {
		b.detector = NewSilenceDetector(b.opts.VADThreshold, b.opts.SilenceAfter, b.opts.StartDelay)
	} else {
		b.detector = nil
	}
	done := b.done
	b.mu.Unlock()

	go b.consume(stream, segment.ID, done)

	b.logger.Debug("segment opened", "segment", segment.ID)
	return segment.ID, nil
}

// EndSegment stops accumulation and returns the finalized segment.
//
// Calling it with no open segment is a no-op returning an empty Segment.
func (b *Buffer) EndSegment() Segment {
	b.mu.Lock()
	if b.segment == nil {
		b.mu.Unlock()
		return Segment{}
	}
	b.stopping = true
	stream := b.stream
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
	if done != nil {
		<-done
	}
	if cancel != nil {
		cancel()
	}

	b.mu.Lock()
	segment := *b.segment
	segment.EndedAt = time.Now()
	if b.detector != nil {
		segment.VADTrimmed = b.detector.latched
	}
	b.segment = nil
	b.stream = nil
	b.cancel = nil
	b.done = nil
	b.detector = nil
	b.mu.Unlock()

	b.logger.Debug("segment closed",
		"segment", segment.ID,
		"frames", len(segment.Frames),
		"duration_ms", segment.Duration().Milliseconds(),
	)
	return segment
}

// consume drains one stream's frames into the open segment.
func (b *Buffer) consume(stream Stream, segmentID string, done chan struct{}) {
	defer close(done)

	for samples := range stream.Frames() {
		b.mu.Lock()
		if b.segment == nil || b.segment.ID != segmentID || b.maxed {
			b.mu.Unlock()
			continue
		}

		b.segment.Frames = append(b.segment.Frames, Frame{
			Samples:    samples,
			SampleRate: b.opts.SampleRate,
			Channels:   1,
			At:         time.Now(),
		})
		b.bytes += len(samples)

		silence := false
		if b.detector != nil {
			silence = b.detector.Observe(samples)
		}
		maxed := false
		if b.opts.MaxDuration > 0 && b.durationLocked() >= b.opts.MaxDuration {
			b.maxed = true
			maxed = true
		}
		b.mu.Unlock()

		if silence {
			b.notify(NoticeSilence, segmentID)
		}
		if maxed {
			b.notify(NoticeMaxDuration, segmentID)
		}
	}

	b.mu.Lock()
	lost := b.segment != nil && b.segment.ID == segmentID && !b.stopping
	b.mu.Unlock()
	if lost {
		b.notify(NoticeDeviceLost, segmentID)
	}
}

// durationLocked derives accumulated length from the byte count; b.mu held.
func (b *Buffer) durationLocked() time.Duration {
	if b.opts.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.bytes/2) * time.Second / time.Duration(b.opts.SampleRate)
}

// notify never blocks the consume goroutine.
func (b *Buffer) notify(kind NoticeKind, segmentID string) {
	notice := Notice{Kind: kind, SegmentID: segmentID, At: time.Now()}
	select {
	case b.notices <- notice:
	default:
		b.logger.Warn("notice queue full; dropping", "kind", string(kind))
	}
}
