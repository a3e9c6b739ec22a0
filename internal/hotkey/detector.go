package hotkey

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// ErrPermissionDenied indicates the OS rejected the low-level keyboard hook.
var ErrPermissionDenied = errors.New("keyboard hook permission denied")

// startTimeout bounds how long Start waits for the native hook to confirm
// installation before treating the hook as denied.
const startTimeout = 2 * time.Second

// Edge is one side of a physical chord activation.
type Edge string

const (
	EdgePressed  Edge = "pressed"
	EdgeReleased Edge = "released"
)

// Activation is one debounced chord press or release.
type Activation struct {
	Chord Chord
	Edge  Edge
	At    time.Time
}

// Detector owns the process-wide keyboard hook for one configured chord.
//
// The hook is acquired by Start and released by Stop; exactly one Pressed is
// emitted per physical press and one Released per physical release, with OS
// key-repeat events debounced away.
type Detector struct {
	chord  Chord
	logger *slog.Logger

	events chan Activation

	mu        sync.Mutex
	running   bool
	pressed   map[uint16]struct{}
	satisfied bool

	done chan struct{}
}

// NewDetector constructs a detector for one parsed chord.
func NewDetector(chord Chord, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		chord:   chord,
		logger:  logger,
		events:  make(chan Activation, 8),
		pressed: make(map[uint16]struct{}),
	}
}

// Events returns the activation stream consumed by the recording controller.
func (d *Detector) Events() <-chan Activation {
	return d.events
}

// Start installs the system-wide hook and begins emitting activations.
//
// The native hook posts an enabled event once the OS accepts it; a process
// without input access never gets that confirmation, so a bounded wait turns
// silent denial into ErrPermissionDenied and the detector stays disabled.
func (d *Detector) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("detector already started")
	}

	raw := hook.Start()
	if err := awaitHookEnabled(raw, startTimeout); err != nil {
		hook.End()
		d.mu.Unlock()
		return err
	}
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		for ev := range raw {
			d.process(ev)
		}
	}()

	d.logger.Info("hotkey detector started", "chord", d.chord.String())
	return nil
}

// awaitHookEnabled consumes raw events until the hook-enabled confirmation
// arrives. Key events cannot precede it, so nothing relevant is discarded.
func awaitHookEnabled(raw <-chan hook.Event, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-raw:
			if !ok {
				return ErrPermissionDenied
			}
			if ev.Kind == hook.HookEnabled {
				return nil
			}
		case <-deadline.C:
			return ErrPermissionDenied
		}
	}
}

// Stop releases the OS hook and closes the activation stream.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	done := d.done
	d.mu.Unlock()

	hook.End()
	if done != nil {
		<-done
	}
	close(d.events)
}

// process applies one raw hook event to chord-tracking state.
//
// Modifier keys surface as KeyHold on some platforms, so both KeyDown and
// KeyHold mark a key pressed; the satisfied flag debounces repeats into a
// single Pressed edge per physical press.
func (d *Detector) process(ev hook.Event) {
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		d.keyDown(ev.Keycode)
	case hook.KeyUp:
		d.keyUp(ev.Keycode)
	}
}

func (d *Detector) keyDown(code uint16) {
	d.mu.Lock()
	d.pressed[code] = struct{}{}
	fire := !d.satisfied && d.chord.SatisfiedBy(d.pressed)
	if fire {
		d.satisfied = true
	}
	d.mu.Unlock()

	if fire {
		d.emit(EdgePressed)
	}
}

func (d *Detector) keyUp(code uint16) {
	d.mu.Lock()
	delete(d.pressed, code)
	fire := d.satisfied && !d.chord.SatisfiedBy(d.pressed)
	if fire {
		d.satisfied = false
	}
	d.mu.Unlock()

	if fire {
		d.emit(EdgeReleased)
	}
}

// emit never blocks the hook thread; a full queue drops with a warning.
func (d *Detector) emit(edge Edge) {
	activation := Activation{Chord: d.chord, Edge: edge, At: time.Now()}
	select {
	case d.events <- activation:
	default:
		d.logger.Warn("activation queue full; dropping event", "edge", string(edge))
	}
}
