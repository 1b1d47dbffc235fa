// Package portaudio captures microphone audio through PortAudio.
//
// The platform recorder offers none of the compressed container types, so
// streams always negotiate device.DefaultMimeType and emit 16-bit mono PCM
// framed as a streaming WAV file: the first chunk carries the header.
package portaudio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/service/device"
)

const (
	framesPerBuffer = 1024
	bitsPerSample   = 16
	channels        = 1
)

// Device implements device.Device for the default input.
type Device struct {
	sampleRate int
	timeslice  time.Duration
	log        zerolog.Logger
}

// New creates a PortAudio device. Chunks are emitted every timeslice.
func New(sampleRate int, timeslice time.Duration) *Device {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if timeslice <= 0 {
		timeslice = time.Second
	}
	return &Device{
		sampleRate: sampleRate,
		timeslice:  timeslice,
		log:        logging.WithComponent("device"),
	}
}

// Acquire implements device.Device.
func (d *Device) Acquire(ctx context.Context) (device.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, classify(err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return nil, classify(err)
	}

	buf := make([]int16, framesPerBuffer)
	pa, err := portaudio.OpenDefaultStream(channels, 0, float64(d.sampleRate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return nil, classify(err)
	}

	mime := device.NegotiateMimeType(device.PreferredMimeTypes, func(string) bool { return false }, device.DefaultMimeType)

	return &Stream{
		pa:         pa,
		buf:        buf,
		mimeType:   mime,
		sampleRate: d.sampleRate,
		timeslice:  d.timeslice,
		events:     make(chan device.Event, 16),
		done:       make(chan struct{}),
		log:        d.log,
	}, nil
}

// classify maps PortAudio errors to the device error taxonomy.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not permitted") {
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", device.ErrDeviceUnavailable, err)
}

// Stream implements device.Stream over a blocking PortAudio input stream.
type Stream struct {
	pa         *portaudio.Stream
	buf        []int16
	mimeType   string
	sampleRate int
	timeslice  time.Duration
	events     chan device.Event
	done       chan struct{}
	log        zerolog.Logger

	mu         sync.Mutex
	state      device.CaptureState
	started    bool
	stopping   bool
	stopped    bool
	pending    []byte
	headerSent bool
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
	if err := s.pa.Start(); err != nil {
		return classify(err)
	}
	s.started = true
	s.state = device.CaptureCapturing
	go s.readLoop()
	return nil
}

// Pause implements device.Stream. Frames read while paused are discarded.
func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != device.CaptureCapturing {
		return device.ErrInvalidState
	}
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
	if s.stopped || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}

	s.mu.Lock()
	chunk := s.takePendingLocked()
	s.state = device.CaptureInactive
	s.stopped = true
	s.mu.Unlock()

	if len(chunk) > 0 {
		s.events <- device.Event{Kind: device.EventChunk, Data: chunk}
	}
	s.events <- device.Event{Kind: device.EventEnd}
	close(s.events)

	var err error
	if started {
		if stopErr := s.pa.Stop(); stopErr != nil {
			err = stopErr
		}
	}
	if closeErr := s.pa.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	portaudio.Terminate()
	if err != nil {
		s.log.Warn().Err(err).Msg("Error releasing input stream")
	}
	return err
}

func (s *Stream) readLoop() {
	defer close(s.done)
	lastFlush := time.Now()

	for {
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			return
		}

		if err := s.pa.Read(); err != nil {
			// Input overflow is recoverable; keep reading.
			s.log.Debug().Err(err).Msg("Input stream read error")
			continue
		}

		s.mu.Lock()
		if s.state == device.CaptureCapturing {
			s.pending = append(s.pending, device.PCM16ToBytes(s.buf)...)
		}
		var chunk []byte
		if time.Since(lastFlush) >= s.timeslice {
			chunk = s.takePendingLocked()
			lastFlush = time.Now()
		}
		s.mu.Unlock()

		if len(chunk) > 0 {
			s.events <- device.Event{Kind: device.EventChunk, Data: chunk}
		}
	}
}

// takePendingLocked returns the pending audio, prefixed with the WAV header
// on the first chunk.
func (s *Stream) takePendingLocked() []byte {
	if len(s.pending) == 0 {
		return nil
	}
	chunk := s.pending
	s.pending = nil
	if !s.headerSent {
		s.headerSent = true
		chunk = append(device.WAVHeader(s.sampleRate, channels, bitsPerSample, 0), chunk...)
	}
	return chunk
}
