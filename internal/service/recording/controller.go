package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/device"
)

// tickInterval is the elapsed-time resolution.
const tickInterval = time.Second

// session is the capture state of one Start..Stop cycle.
type session struct {
	id       string
	epoch    uint64
	stream   device.Stream
	mimeType string
	chunks   [][]byte
	released bool
	pumpDone chan struct{}
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	SessionID      string
	State          State
	ElapsedSeconds int
	ChunkCount     int
	MimeType       string
	HasArtifact    bool
}

// Controller manages the recording state machine for one microphone.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Start──→ RECORDING ──Pause──→ PAUSED
//	  ↑               │    ↑               │
//	  │               │    └────Resume─────┤
//	  │               └──Stop──→ STOPPED ←─┘ Stop
//	  │                           │
//	  └───── Close (any) ←────────┘ Start → RECORDING
//
// Rules:
//   - Start is only valid from IDLE or STOPPED and discards the previous artifact
//   - Pause requires RECORDING with a capturing stream; Resume requires PAUSED
//     with a paused stream
//   - Stop releases the device and assembles exactly one artifact
//   - Close is valid from any state, idempotent, and ignores later device events
type Controller struct {
	dev       device.Device
	newTicker TickerFactory
	ids       *IDGenerator
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	busy       bool
	closed     bool
	epoch      uint64
	session    *session
	artifact   *Artifact
	elapsed    int
	ticker     Ticker
	tickerStop chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTicker overrides the elapsed-time ticker source.
func WithTicker(f TickerFactory) Option {
	return func(c *Controller) {
		c.newTicker = f
	}
}

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(g *IDGenerator) Option {
	return func(c *Controller) {
		c.ids = g
	}
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController creates a controller in IDLE state.
func NewController(dev device.Device, opts ...Option) *Controller {
	c := &Controller{
		dev:       dev,
		newTicker: NewTicker,
		ids:       NewIDGenerator("local"),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("recording"),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the elapsed seconds of the current session.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Artifact returns the artifact of the last stopped session, or nil.
func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// DiscardArtifact drops a if it is still the current artifact.
func (c *Controller) DiscardArtifact(a *Artifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a == nil || c.artifact != a {
		return false
	}
	c.artifact = nil
	return true
}

// Snapshot returns a consistent view of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:          c.state,
		ElapsedSeconds: c.elapsed,
		HasArtifact:    c.artifact != nil,
	}
	if c.session != nil {
		snap.SessionID = c.session.id
		snap.ChunkCount = len(c.session.chunks)
		snap.MimeType = c.session.mimeType
	}
	return snap
}

// Start acquires the device and begins a new session.
// On failure the controller is IDLE and the previous artifact is kept.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy || !c.state.CanStart() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, state)
	}
	c.busy = true
	c.mu.Unlock()

	stream, err := c.dev.Acquire(ctx)
	if err == nil {
		if startErr := stream.Start(); startErr != nil {
			stream.Stop()
			err = startErr
		}
	}

	c.mu.Lock()
	c.busy = false

	if err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.metrics.RecordRecordingFailed(failureReason(err))
		c.log.Warn().Err(err).Msg("Failed to acquire microphone")
		return fmt.Errorf("acquire microphone: %w", err)
	}
	if c.closed {
		c.mu.Unlock()
		stream.Stop()
		return ErrClosed
	}
	if c.session != nil && !c.session.released {
		held := c.session.id
		c.mu.Unlock()
		stream.Stop()
		c.log.Error().Str("sessionId", held).Msg("Capture stream still held on start")
		return ErrResourceLeak
	}

	c.epoch++
	s := &session{
		id:       c.ids.Next(),
		epoch:    c.epoch,
		stream:   stream,
		mimeType: stream.MimeType(),
		pumpDone: make(chan struct{}),
	}
	c.session = s
	c.artifact = nil
	c.elapsed = 0
	c.state = StateRecording
	c.startTickerLocked()
	c.mu.Unlock()

	go c.pump(s)

	c.metrics.RecordRecordingStart()
	c.log.Info().
		Str("sessionId", s.id).
		Str("mimeType", s.mimeType).
		Msg("Recording started")
	return nil
}

// Pause suspends capture and freezes the elapsed counter.
func (c *Controller) Pause() error {
	return c.transition(StateRecording, device.CaptureCapturing, StatePaused, func(s device.Stream) error {
		return s.Pause()
	})
}

// Resume continues a paused capture.
func (c *Controller) Resume() error {
	return c.transition(StatePaused, device.CapturePaused, StateRecording, func(s device.Stream) error {
		return s.Resume()
	})
}

// transition runs a pause or resume. Both the controller state and the
// stream capture state must match.
func (c *Controller) transition(from State, capture device.CaptureState, to State, op func(device.Stream) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy || c.state != from || c.session == nil || c.session.stream.State() != capture {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s to %s from %s", ErrInvalidTransition, from, to, state)
	}
	c.busy = true
	if to != StateRecording {
		c.stopTickerLocked()
	}
	s := c.session
	c.mu.Unlock()

	err := op(s.stream)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.closed || c.session != s {
		return ErrClosed
	}
	if err != nil {
		if from == StateRecording {
			c.startTickerLocked()
		}
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	c.state = to
	if to == StateRecording {
		c.startTickerLocked()
	}
	c.log.Info().Str("sessionId", s.id).Str("state", to.String()).Msg("Recording state changed")
	return nil
}

// Stop finalizes capture, releases the device and returns the new artifact.
// The elapsed counter is reset; the artifact keeps its value at stop.
func (c *Controller) Stop(ctx context.Context) (*Artifact, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.busy || !c.state.HoldsDevice() {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: stop from %s", ErrInvalidTransition, state)
	}
	c.busy = true
	c.stopTickerLocked()
	s := c.session
	s.released = true
	c.mu.Unlock()

	if err := s.stream.Stop(); err != nil {
		c.log.Warn().Err(err).Str("sessionId", s.id).Msg("Error stopping capture stream")
	}

	select {
	case <-s.pumpDone:
	case <-ctx.Done():
		c.log.Warn().Str("sessionId", s.id).Msg("Stop deadline reached before end of capture")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.closed || c.session != s {
		c.metrics.RecordRecordingEnd(false, 0)
		return nil, ErrClosed
	}

	// Ignore chunks still in flight after a deadline.
	c.epoch++

	a := assemble(s.id, s.mimeType, s.chunks, c.elapsed, c.now())
	c.artifact = a
	c.elapsed = 0
	c.state = StateStopped

	c.metrics.RecordRecordingEnd(true, a.ElapsedSeconds)
	c.log.Info().
		Str("sessionId", s.id).
		Int("chunks", a.ChunkCount).
		Int("bytes", a.Size()).
		Int("elapsedSeconds", a.ElapsedSeconds).
		Msg("Recording stopped")
	return a, nil
}

// Close releases the device and ticker and returns to IDLE. Device events
// arriving afterwards are ignored. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	c.stopTickerLocked()
	s := c.session
	release := s != nil && !s.released
	if release {
		s.released = true
	}
	c.state = StateIdle
	c.elapsed = 0
	c.mu.Unlock()

	if release {
		if err := s.stream.Stop(); err != nil {
			c.log.Warn().Err(err).Str("sessionId", s.id).Msg("Error releasing capture stream")
		}
		c.metrics.RecordRecordingEnd(false, 0)
	}
	c.log.Debug().Msg("Recording controller closed")
}

// pump appends chunk events of s in emission order until the stream ends.
func (c *Controller) pump(s *session) {
	defer close(s.pumpDone)
	for ev := range s.stream.Events() {
		if ev.Kind != device.EventChunk || len(ev.Data) == 0 {
			continue
		}
		c.mu.Lock()
		if c.epoch == s.epoch {
			s.chunks = append(s.chunks, ev.Data)
			c.metrics.RecordChunk(len(ev.Data))
		}
		c.mu.Unlock()
	}
}

func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()
	t := c.newTicker(tickInterval)
	stop := make(chan struct{})
	c.ticker = t
	c.tickerStop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				c.mu.Lock()
				if c.tickerStop == stop && c.state == StateRecording {
					c.elapsed++
				}
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickerStop)
	c.ticker = nil
	c.tickerStop = nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, device.ErrDeviceUnavailable):
		return "device_unavailable"
	default:
		return "other"
	}
}
