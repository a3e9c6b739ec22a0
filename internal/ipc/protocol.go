// Package ipc exposes the running daemon over a unix control socket.
package ipc

// Commands accepted by the daemon. Status is a read-only snapshot; the other
// three drive the recording state machine from outside the hotkey path.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// KnownCommand reports whether name is part of the control vocabulary.
func KnownCommand(name string) bool {
	switch name {
	case CommandStatus, CommandToggle, CommandStop, CommandCancel:
		return true
	default:
		return false
	}
}

// Request is one newline-delimited JSON command from a CLI client.
type Request struct {
	Command string `json:"command"`
}

// Response reports the daemon's state after handling a command. State and
// Mode mirror the recording controller's snapshot; Message is human-readable
// feedback printed by the CLI.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
