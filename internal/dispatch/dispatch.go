// Package dispatch serializes transcription of finalized audio segments.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/engine"
)

// ErrEmptyAudio marks a zero-length or all-silence segment that was never
// sent to the engine.
var ErrEmptyAudio = errors.New("segment contains no audio")

// errClosed is returned by Submit after Close.
var errClosed = errors.New("dispatcher closed")

// Result is one completed dispatch, delivered in submission order.
type Result struct {
	SegmentID string
	Text      string
	Err       error
	Elapsed   time.Duration
}

// Options tunes dispatch behavior.
type Options struct {
	Language string
	// SilenceThreshold short-circuits segments whose overall RMS energy stays
	// below it. Zero disables the check.
	SilenceThreshold int
	// QueueSize bounds how many finalized segments may wait behind the
	// in-flight dispatch.
	QueueSize int
}

// Dispatcher owns a single worker so results always come back in the order
// segments were submitted, regardless of per-call latency.
type Dispatcher struct {
	engine  engine.Transcriber
	opts    Options
	logger  *slog.Logger
	jobs    chan audio.Segment
	results chan Result

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// New builds a dispatcher around one transcription backend.
func New(transcriber engine.Transcriber, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	return &Dispatcher{
		engine:  transcriber,
		opts:    opts,
		logger:  logger,
		jobs:    make(chan audio.Segment, opts.QueueSize),
		results: make(chan Result, opts.QueueSize),
	}
}

// Results returns the completion stream, closed once the worker drains after
// Close or context cancellation.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Start launches the worker; ctx cancellation aborts the in-flight call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		defer close(d.results)
		for segment := range d.jobs {
			if ctx.Err() != nil {
				return
			}
			// The send must not outlive the consumer: once ctx is
			// cancelled nobody reads results, so a full buffer would
			// otherwise wedge this worker and hang Close.
			select {
			case d.results <- d.run(ctx, segment):
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Submit queues one finalized segment for transcription.
func (d *Dispatcher) Submit(segment audio.Segment) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errClosed
	}
	d.mu.Unlock()

	select {
	case d.jobs <- segment:
		return nil
	default:
		return errors.New("dispatch queue full")
	}
}

// Close stops accepting segments and lets queued work drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	done := d.done
	d.mu.Unlock()

	close(d.jobs)
	if started {
		<-done
	}
}

// run executes one dispatch, folding failures into the error taxonomy.
func (d *Dispatcher) run(ctx context.Context, segment audio.Segment) Result {
	started := time.Now()
	result := Result{SegmentID: segment.ID}

	pcm := segment.PCM()
	if len(pcm) == 0 {
		result.Err = ErrEmptyAudio
		return result
	}
	if d.opts.SilenceThreshold > 0 && audio.RMS(pcm) < float64(d.opts.SilenceThreshold) {
		result.Err = ErrEmptyAudio
		result.Elapsed = time.Since(started)
		return result
	}

	text, err := d.engine.Transcribe(ctx, pcm, segment.SampleRate, d.opts.Language)
	result.Text = text
	result.Err = err
	result.Elapsed = time.Since(started)

	if err != nil {
		d.logger.Warn("dispatch failed",
			"segment", segment.ID,
			"engine", d.engine.Name(),
			"error", err.Error(),
		)
	} else {
		d.logger.Info("dispatch complete",
			"segment", segment.ID,
			"engine", d.engine.Name(),
			"elapsed_ms", result.Elapsed.Milliseconds(),
			"chars", len(text),
		)
	}
	return result
}
