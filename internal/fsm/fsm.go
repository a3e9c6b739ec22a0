// Package fsm defines the recording lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

// Mode selects which activation events drive recording transitions.
type Mode string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

const (
	// EventPressed and EventReleased are chord activation edges.
	EventPressed  Event = "pressed"
	EventReleased Event = "released"
	// EventSilence is raised by the capture buffer after sustained silence.
	EventSilence Event = "silence"
	// EventMaxDuration and EventDeviceLost force a finalize in any mode.
	EventMaxDuration Event = "max_duration"
	EventDeviceLost  Event = "device_lost"
	// EventFinalized resolves the transient finalizing state.
	EventFinalized Event = "finalized"
)

const (
	ModeContinuous    Mode = "continuous"
	ModeVoiceActivity Mode = "voice_activity"
	ModePressToToggle Mode = "press_to_toggle"
	ModeHoldToRecord  Mode = "hold_to_record"
)

// Modes lists every supported recording mode.
func Modes() []Mode {
	return []Mode{ModeContinuous, ModeVoiceActivity, ModePressToToggle, ModeHoldToRecord}
}

// ValidMode reports whether m names a supported recording mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeContinuous, ModeVoiceActivity, ModePressToToggle, ModeHoldToRecord:
		return true
	default:
		return false
	}
}

// Transition applies one event to the current state under the given mode.
//
// Invalid transitions return the current state unchanged together with an
// error; callers decide whether to treat that as a no-op or a fault. Forced
// finalize events (max duration, device lost) are accepted from Recording in
// every mode so no open segment is ever silently dropped.
func Transition(mode Mode, current State, event Event) (State, error) {
	if !ValidMode(mode) {
		return current, fmt.Errorf("unknown mode %q", mode)
	}

	switch current {
	case StateIdle:
		switch event {
		case EventPressed:
			return StateRecording, nil
		default:
			return current, invalidTransition(mode, current, event)
		}
	case StateRecording:
		if event == EventMaxDuration || event == EventDeviceLost {
			return StateFinalizing, nil
		}
		switch mode {
		case ModeContinuous:
			switch event {
			case EventSilence, EventPressed:
				return StateFinalizing, nil
			}
		case ModeVoiceActivity:
			if event == EventSilence {
				return StateFinalizing, nil
			}
		case ModePressToToggle:
			if event == EventPressed {
				return StateFinalizing, nil
			}
		case ModeHoldToRecord:
			if event == EventReleased {
				return StateFinalizing, nil
			}
		}
		return current, invalidTransition(mode, current, event)
	case StateFinalizing:
		if event == EventFinalized {
			return StateIdle, nil
		}
		return current, invalidTransition(mode, current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Resume returns the state entered after a finalize completes.
//
// Continuous mode re-opens a fresh segment after a silence-triggered
// finalize; every other finalize (and every other mode) lands in Idle.
func Resume(mode Mode, trigger Event) State {
	if mode == ModeContinuous && trigger == EventSilence {
		return StateRecording
	}
	return StateIdle
}

func invalidTransition(mode Mode, state State, event Event) error {
	return fmt.Errorf("invalid transition in mode %s: %s --(%s)--> ?", mode, state, event)
}
