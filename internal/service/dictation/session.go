// Package dictation coordinates one dictation workflow: recording,
// playback, transcription and document generation. It turns component
// errors into user notifications and publishes completed results.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/models"
	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/service/device"
	"daisy-dictation-service/internal/service/generation"
	"daisy-dictation-service/internal/service/playback"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/scribes"
	"daisy-dictation-service/internal/service/stt"
)

var (
	// ErrInFlight is returned when the same operation is already pending.
	ErrInFlight = errors.New("operation already in progress")
	// ErrAbandoned is returned when a result arrives after Close or after a
	// newer recording replaced the one it was computed from.
	ErrAbandoned = errors.New("result abandoned")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dictation session is closed")
	// ErrNoGenerator is returned when document generation is not configured.
	ErrNoGenerator = errors.New("document generation is not configured")
	// ErrNoLibrary is returned when no document library is configured.
	ErrNoLibrary = errors.New("document library is not configured")
	// ErrTooLarge is returned when a recording exceeds the upload limit.
	ErrTooLarge = errors.New("recording exceeds upload limit")
	// ErrNoDocument is returned by SaveDocument before any document was generated.
	ErrNoDocument = errors.New("no document generated")
)

// User-facing messages.
const (
	msgStarted          = "Recording started"
	msgPaused           = "Recording paused"
	msgResumed          = "Recording resumed"
	msgStopped          = "Recording stopped"
	msgMicrophone       = "Could not access microphone. Please check permissions."
	msgNoRecording      = "No recording to play"
	msgPlaying          = "Playing recorded audio"
	msgNoAudio          = "No audio recorded"
	msgTranscribed      = "Transcription complete"
	msgDocument         = "Document generated"
	msgPlaybackError    = "Playback error: %v"
	msgTranscribeFailed = "Failed to transcribe audio: %v"
	msgGenerateFailed   = "Failed to generate document: %v"
)

// Publisher publishes completed results.
type Publisher interface {
	PublishTranscript(ctx context.Context, event *models.TranscriptCompleted) error
	PublishDocument(ctx context.Context, event *models.DocumentGenerated) error
	Principal() string
}

// Limits bounds the work a session accepts.
type Limits struct {
	MaxAudioBytes int // Max artifact size sent for transcription
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 100 * 1024 * 1024, // 100MB
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	Recording      recording.Snapshot
	Elapsed        string
	Transcribing   bool
	Generating     bool
	Playing        bool
	LastTranscript string
	LastDocument   string
}

// Session owns one recording controller and playback manager.
// Thread-safe for concurrent access.
type Session struct {
	recorder    *recording.Controller
	playback    *playback.Manager
	transcriber stt.Transcriber
	generator   generation.Generator
	library     *scribes.Library
	publisher   Publisher
	notifier    notify.Notifier
	limits      Limits
	log         zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	closed         bool
	transcribing   bool
	generating     bool
	lastTranscript *stt.Result
	lastDocument   string
	lastSessionID  string
}

// Option configures a Session.
type Option func(*Session)

// WithGenerator enables document generation.
func WithGenerator(g generation.Generator) Option {
	return func(s *Session) {
		s.generator = g
	}
}

// WithLibrary enables saving generated documents.
func WithLibrary(l *scribes.Library) Option {
	return func(s *Session) {
		s.library = l
	}
}

// WithPublisher publishes completed transcripts and documents.
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithLimits overrides the default limits.
func WithLimits(l Limits) Option {
	return func(s *Session) {
		s.limits = l
	}
}

// New creates a session.
func New(recorder *recording.Controller, pb *playback.Manager, transcriber stt.Transcriber, opts ...Option) *Session {
	base, cancel := context.WithCancel(context.Background())
	s := &Session{
		recorder:    recorder,
		playback:    pb,
		transcriber: transcriber,
		notifier:    notify.NewLogNotifier("dictation"),
		limits:      DefaultLimits(),
		log:         logging.WithComponent("dictation"),
		base:        base,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRecording begins a new recording. Any playback is stopped and the
// previous recording is discarded once the microphone is acquired.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.playback.Stop()

	if err := s.recorder.Start(ctx); err != nil {
		if errors.Is(err, device.ErrPermissionDenied) || errors.Is(err, device.ErrDeviceUnavailable) {
			s.notify(notify.LevelError, msgMicrophone)
		}
		return err
	}
	s.notify(notify.LevelSuccess, msgStarted)
	return nil
}

// PauseRecording suspends capture.
func (s *Session) PauseRecording() error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.recorder.Pause(); err != nil {
		return err
	}
	s.notify(notify.LevelInfo, msgPaused)
	return nil
}

// ResumeRecording continues a paused capture.
func (s *Session) ResumeRecording() error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.recorder.Resume(); err != nil {
		return err
	}
	s.notify(notify.LevelInfo, msgResumed)
	return nil
}

// StopRecording finishes capture and returns the recording.
func (s *Session) StopRecording(ctx context.Context) (*recording.Artifact, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	a, err := s.recorder.Stop(ctx)
	if err != nil {
		return nil, err
	}
	s.notify(notify.LevelSuccess, msgStopped)
	return a, nil
}

// Play plays the current recording and blocks until playback ends. A newer
// Play, StartRecording or Close interrupts it.
func (s *Session) Play(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	a := s.recorder.Artifact()
	if a == nil {
		s.notify(notify.LevelError, msgNoRecording)
		return playback.ErrNoArtifact
	}

	s.notify(notify.LevelInfo, msgPlaying)
	err := s.playback.Play(ctx, a)
	switch {
	case err == nil, errors.Is(err, playback.ErrInterrupted), errors.Is(err, playback.ErrClosed):
		return err
	default:
		s.notify(notify.LevelError, fmt.Sprintf(msgPlaybackError, errors.Unwrap(err)))
		return err
	}
}

// Transcribe sends the current recording to the transcriber. On success
// the recording is discarded; on failure it is kept for a retry.
func (s *Session) Transcribe(ctx context.Context) (*stt.Result, error) {
	a := s.recorder.Artifact()
	if a.Empty() {
		s.notify(notify.LevelError, msgNoAudio)
		return nil, stt.ErrNoAudio
	}
	if s.limits.MaxAudioBytes > 0 && a.Size() > s.limits.MaxAudioBytes {
		err := fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, a.Size(), s.limits.MaxAudioBytes)
		s.notify(notify.LevelError, fmt.Sprintf(msgTranscribeFailed, err))
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.transcribing {
		s.mu.Unlock()
		return nil, ErrInFlight
	}
	s.transcribing = true
	s.mu.Unlock()

	tctx, cancel := s.bind(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.transcriber.Transcribe(tctx, a)

	s.mu.Lock()
	s.transcribing = false
	if s.closed || s.recorder.Artifact() != a {
		s.mu.Unlock()
		s.log.Debug().Str("sessionId", a.SessionID).Msg("Transcription result abandoned")
		return nil, ErrAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("sessionId", a.SessionID).Str("provider", s.transcriber.Provider()).Msg("Transcription failed")
		s.notify(notify.LevelError, fmt.Sprintf(msgTranscribeFailed, err))
		return nil, err
	}
	s.recorder.DiscardArtifact(a)
	s.lastTranscript = res
	s.lastSessionID = a.SessionID
	s.mu.Unlock()

	s.log.Info().
		Str("sessionId", a.SessionID).
		Str("provider", s.transcriber.Provider()).
		Int("words", len(res.Words)).
		Float64("confidence", res.Confidence).
		Dur("duration", time.Since(start)).
		Msg("Transcription complete")
	s.notify(notify.LevelSuccess, msgTranscribed)
	s.publishTranscript(a, res)
	return res, nil
}

// GenerateDocument streams a clinical document for transcript, or for the
// last transcript when transcript is empty. onFragment may be nil.
func (s *Session) GenerateDocument(ctx context.Context, transcript string, onFragment func(string)) (string, error) {
	if s.generator == nil {
		return "", ErrNoGenerator
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.generating {
		s.mu.Unlock()
		return "", ErrInFlight
	}
	sessionID := ""
	if strings.TrimSpace(transcript) == "" && s.lastTranscript != nil {
		transcript = s.lastTranscript.Transcript
		sessionID = s.lastSessionID
	}
	s.generating = true
	s.mu.Unlock()

	gctx, cancel := s.bind(ctx)
	defer cancel()

	fragments := 0
	text, err := s.generator.Stream(gctx, transcript, func(f string) {
		fragments++
		if onFragment != nil {
			onFragment(f)
		}
	})

	s.mu.Lock()
	s.generating = false
	if s.closed {
		s.mu.Unlock()
		return "", ErrAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		s.notify(notify.LevelError, fmt.Sprintf(msgGenerateFailed, err))
		return text, err
	}
	s.lastDocument = text
	s.mu.Unlock()

	s.notify(notify.LevelSuccess, msgDocument)
	s.publishDocument(sessionID, transcript, text, fragments)
	return text, nil
}

// SaveDocument stores the last generated document in the library.
func (s *Session) SaveDocument(ctx context.Context, name string) (scribes.Outcome, error) {
	if s.library == nil {
		return scribes.Outcome{}, ErrNoLibrary
	}
	s.mu.Lock()
	doc := s.lastDocument
	s.mu.Unlock()
	if doc == "" {
		return scribes.Outcome{}, ErrNoDocument
	}

	out, err := s.library.Create(ctx, name, doc)
	if err != nil {
		var lerr *scribes.Error
		if errors.As(err, &lerr) {
			s.notifier.Notify(s.stamp(lerr.Notification()))
		}
		return out, err
	}
	s.notifier.Notify(s.stamp(out.Notification()))
	return out, nil
}

// Status returns a consistent view of the session.
func (s *Session) Status() Status {
	snap := s.recorder.Snapshot()
	_, playing := s.playback.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Recording:    snap,
		Elapsed:      recording.FormatElapsed(snap.ElapsedSeconds),
		Transcribing: s.transcribing,
		Generating:   s.generating,
		Playing:      playing,
		LastDocument: s.lastDocument,
	}
	if s.lastTranscript != nil {
		st.LastTranscript = s.lastTranscript.Transcript
	}
	return st
}

// Close releases the microphone, revokes playback and cancels pending
// calls. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.recorder.Close()
	s.playback.Close()
	s.log.Debug().Msg("Dictation session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// bind derives a context that also ends when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.base, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (s *Session) notify(level notify.Level, msg string) {
	s.notifier.Notify(s.stamp(notify.New(level, msg)))
}

func (s *Session) stamp(n notify.Notification) notify.Notification {
	n.Component = "dictation"
	n.SessionID = s.recorder.Snapshot().SessionID
	return n
}

func (s *Session) publishTranscript(a *recording.Artifact, res *stt.Result) {
	if s.publisher == nil {
		return
	}
	ev := &models.TranscriptCompleted{
		EventType:      models.EventTranscriptCompleted,
		SessionID:      a.SessionID,
		Principal:      s.publisher.Principal(),
		Timestamp:      time.Now().UnixMilli(),
		Provider:       s.transcriber.Provider(),
		MimeType:       a.MimeType,
		ElapsedSeconds: a.ElapsedSeconds,
		Transcript:     res.Transcript,
		Confidence:     res.Confidence,
		WordCount:      len(res.Words),
		EstimatedCost:  stt.EstimateCost(a.ElapsedSeconds),
	}
	if err := s.publisher.PublishTranscript(s.base, ev); err != nil {
		s.log.Error().Err(err).Str("sessionId", a.SessionID).Msg("Failed to publish transcript")
	}
}

func (s *Session) publishDocument(sessionID, transcript, document string, fragments int) {
	if s.publisher == nil {
		return
	}
	ev := &models.DocumentGenerated{
		EventType:       models.EventDocumentGenerated,
		SessionID:       sessionID,
		Principal:       s.publisher.Principal(),
		Timestamp:       time.Now().UnixMilli(),
		Model:           s.generator.Model(),
		TranscriptChars: len(transcript),
		DocumentChars:   len(document),
		Fragments:       fragments,
		Document:        document,
	}
	if err := s.publisher.PublishDocument(s.base, ev); err != nil {
		s.log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to publish document")
	}
}
