// Package device defines the microphone capture contract used by the
// recording controller.
package device

import (
	"context"
	"errors"
	"fmt"
)

// CaptureState is the sub-state of an acquired capture stream.
type CaptureState int

const (
	// CaptureInactive - stream acquired but not started, or already stopped.
	CaptureInactive CaptureState = iota
	// CaptureCapturing - audio is being captured and chunks are emitted.
	CaptureCapturing
	// CapturePaused - capture suspended, the device is still held.
	CapturePaused
)

// String returns the string representation of the capture state.
func (s CaptureState) String() string {
	switch s {
	case CaptureInactive:
		return "INACTIVE"
	case CaptureCapturing:
		return "CAPTURING"
	case CapturePaused:
		return "PAUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// EventKind distinguishes data from end-of-capture events.
type EventKind int

const (
	// EventChunk carries one encoded chunk of audio.
	EventChunk EventKind = iota
	// EventEnd is sent exactly once, after the last chunk.
	EventEnd
)

// Event is emitted by a Stream. Data is only set for EventChunk and may be
// empty; empty chunks must be ignored by consumers.
type Event struct {
	Kind EventKind
	Data []byte
}

var (
	// ErrPermissionDenied means the user or OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means no usable input device exists.
	ErrDeviceUnavailable = errors.New("microphone unavailable")
	// ErrInvalidState means a stream operation was not valid for its capture state.
	ErrInvalidState = errors.New("invalid capture state")
)

// Device acquires exclusive access to an audio input.
type Device interface {
	// Acquire opens the input and returns an inactive stream. It fails with
	// ErrPermissionDenied or ErrDeviceUnavailable.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired capture stream.
//
// Events() yields chunk events in emission order followed by exactly one
// EventEnd, after which the channel is closed. Stop flushes pending audio,
// emits the end event and releases the hardware. Stop is idempotent.
type Stream interface {
	MimeType() string
	State() CaptureState
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Events() <-chan Event
}

// PreferredMimeTypes is the container/codec preference order.
var PreferredMimeTypes = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/webm",
	"audio/ogg",
	"audio/mp4",
	"audio/aac",
}

// DefaultMimeType is used when the platform supports none of the preferred types.
const DefaultMimeType = "audio/wav"

// NegotiateMimeType returns the first candidate the platform supports, or
// fallback when none is supported.
func NegotiateMimeType(candidates []string, supported func(string) bool, fallback string) string {
	if supported != nil {
		for _, c := range candidates {
			if supported(c) {
				return c
			}
		}
	}
	return fallback
}
