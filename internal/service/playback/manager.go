package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/recording"
)

var (
	// ErrNoArtifact is returned when there is nothing to play.
	ErrNoArtifact = errors.New("no recording to play")
	// ErrInterrupted is returned when playback was ended by Stop, Close or a newer Play.
	ErrInterrupted = errors.New("playback interrupted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("playback manager is closed")
)

type active struct {
	handle Handle
	cancel context.CancelFunc
}

// Manager keeps at most one live handle. A new Play revokes the previous
// handle and cancels its playback.
type Manager struct {
	registry *Registry
	player   Player
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	current *active
	closed  bool
}

// NewManager creates a manager registering handles in registry.
func NewManager(registry *Registry, player Player) *Manager {
	return &Manager{
		registry: registry,
		player:   player,
		metrics:  metrics.DefaultMetrics,
		log:      logging.WithComponent("playback"),
	}
}

// Play plays a and blocks until playback ends. The handle is revoked on
// every exit path.
func (m *Manager) Play(ctx context.Context, a *recording.Artifact) error {
	if a == nil {
		return ErrNoArtifact
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.revokeLocked()
	pctx, cancel := context.WithCancel(ctx)
	cur := &active{handle: m.registry.Register(a), cancel: cancel}
	m.current = cur
	m.mu.Unlock()
	defer cancel()

	m.log.Debug().Str("handle", cur.handle.ID).Str("sessionId", a.SessionID).Msg("Playback started")
	err := m.player.Play(pctx, cur.handle.URL)

	m.mu.Lock()
	superseded := m.current != cur
	if !superseded {
		m.revokeLocked()
	}
	m.mu.Unlock()

	switch {
	case superseded:
		m.metrics.RecordPlayback("interrupted")
		return ErrInterrupted
	case err != nil:
		m.metrics.RecordPlayback("error")
		m.log.Warn().Err(err).Str("handle", cur.handle.ID).Msg("Playback failed")
		return fmt.Errorf("playback: %w", err)
	default:
		m.metrics.RecordPlayback("completed")
		return nil
	}
}

// Current returns the live handle, if any.
func (m *Manager) Current() (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Handle{}, false
	}
	return m.current.handle, true
}

// Stop ends the current playback and revokes its handle.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeLocked()
}

// Close revokes any live handle. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.revokeLocked()
}

func (m *Manager) revokeLocked() {
	if m.current == nil {
		return
	}
	m.registry.Revoke(m.current.handle.ID)
	m.current.cancel()
	m.current = nil
}
