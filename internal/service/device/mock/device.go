// Package mock provides an in-memory capture device for tests and demos.
// Audio is fed with Write and delivered as chunks on Flush or Stop, the
// way a platform recorder emits a chunk every timeslice.
package mock

import (
	"context"
	"sync"

	"daisy-dictation-service/internal/service/device"
)

// Device implements device.Device in memory.
type Device struct {
	mu         sync.Mutex
	supported  map[string]bool
	acquireErr error
	acquired   int
	released   int
	streams    []*Stream
}

// Option configures a mock Device.
type Option func(*Device)

// WithSupported sets the MIME types the mock platform reports as supported.
func WithSupported(mimeTypes ...string) Option {
	return func(d *Device) {
		for _, m := range mimeTypes {
			d.supported[m] = true
		}
	}
}

// WithAcquireError makes every Acquire fail with err.
func WithAcquireError(err error) Option {
	return func(d *Device) {
		d.acquireErr = err
	}
}

// New creates a mock device. Without WithSupported it supports only
// "audio/webm;codecs=opus".
func New(opts ...Option) *Device {
	d := &Device{supported: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.supported) == 0 {
		d.supported[device.PreferredMimeTypes[0]] = true
	}
	return d
}

// SetAcquireError changes the failure returned by later Acquire calls.
func (d *Device) SetAcquireError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireErr = err
}

// Acquire implements device.Device.
func (d *Device) Acquire(ctx context.Context) (device.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.acquireErr != nil {
		return nil, d.acquireErr
	}

	mime := device.NegotiateMimeType(device.PreferredMimeTypes, func(m string) bool {
		return d.supported[m]
	}, device.DefaultMimeType)

	s := &Stream{
		dev:      d,
		mimeType: mime,
		events:   make(chan device.Event, 256),
	}
	d.acquired++
	d.streams = append(d.streams, s)
	return s, nil
}

// Acquired returns how many streams were handed out.
func (d *Device) Acquired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired
}

// Released returns how many streams released the hardware.
func (d *Device) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Held returns the number of streams still holding the device.
func (d *Device) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired - d.released
}

// Last returns the most recently acquired stream, or nil.
func (d *Device) Last() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

func (d *Device) release() {
	d.mu.Lock()
	d.released++
	d.mu.Unlock()
}

// Stream implements device.Stream.
type Stream struct {
	dev      *Device
	mimeType string
	events   chan device.Event

	mu      sync.Mutex
	state   device.CaptureState
	pending []byte
	started bool
	stopped bool
}

// MimeType implements device.Stream.
func (s *Stream) MimeType() string {
	return s.mimeType
}

// State implements device.Stream.
func (s *Stream) State() device.CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events implements device.Stream.
func (s *Stream) Events() <-chan device.Event {
	return s.events
}

// Start implements device.Stream.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return device.ErrInvalidState
	}
	s.started = true
	s.state = device.CaptureCapturing
	return nil
}

// Pause implements device.Stream. Pending audio is flushed first.
func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != device.CaptureCapturing {
		return device.ErrInvalidState
	}
	s.flushLocked()
	s.state = device.CapturePaused
	return nil
}

// Resume implements device.Stream.
func (s *Stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != device.CapturePaused {
		return device.ErrInvalidState
	}
	s.state = device.CaptureCapturing
	return nil
}

// Stop implements device.Stream.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.flushLocked()
	s.stopped = true
	s.state = device.CaptureInactive
	s.events <- device.Event{Kind: device.EventEnd}
	close(s.events)
	s.dev.release()
	return nil
}

// Write feeds captured audio. It is dropped unless the stream is capturing.
func (s *Stream) Write(p []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != device.CaptureCapturing {
		return false
	}
	s.pending = append(s.pending, p...)
	return true
}

// Flush emits pending audio as one chunk, like a timeslice boundary.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.flushLocked()
}

// EmitEmpty emits a zero-length chunk, which some platforms produce.
func (s *Stream) EmitEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.events <- device.Event{Kind: device.EventChunk}
}

// Stopped reports whether Stop has run.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Stream) flushLocked() {
	if len(s.pending) == 0 {
		return
	}
	chunk := s.pending
	s.pending = nil
	s.events <- device.Event{Kind: device.EventChunk, Data: chunk}
}
