// Package recording owns the microphone recording lifecycle: session state,
// the elapsed-time counter and the finished audio artifact.
package recording

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of the controller.
type State int

const (
	// StateIdle - no session, or the last start failed.
	StateIdle State = iota
	// StateRecording - capturing, elapsed time advances.
	StateRecording
	// StatePaused - device held, capture suspended, elapsed time frozen.
	StatePaused
	// StateStopped - device released, an artifact is available. Not terminal.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// HoldsDevice returns true if the state owns an acquired capture stream.
func (s State) HoldsDevice() bool {
	return s == StateRecording || s == StatePaused
}

// CanStart returns true if a new session may be started from this state.
func (s State) CanStart() bool {
	return s == StateIdle || s == StateStopped
}

// Errors for invalid operations.
var (
	ErrInvalidTransition = errors.New("invalid recording state transition")
	ErrClosed            = errors.New("recording controller is closed")
	// ErrResourceLeak is a programming error: a stream was still held when a
	// new one was about to be installed.
	ErrResourceLeak = errors.New("capture stream still held")
)
