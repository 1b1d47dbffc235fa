package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/events"
	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/service/device"
	"daisy-dictation-service/internal/service/dictation"
	"daisy-dictation-service/internal/service/generation"
	genmock "daisy-dictation-service/internal/service/generation/mock"
	"daisy-dictation-service/internal/service/playback"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/scribes"
	"daisy-dictation-service/internal/service/storage"
	"daisy-dictation-service/internal/service/storage/local"
	s3store "daisy-dictation-service/internal/service/storage/s3"
	"daisy-dictation-service/internal/service/stt"
	"daisy-dictation-service/internal/service/stt/deepgram"
	"daisy-dictation-service/internal/service/stt/google"
	sttmock "daisy-dictation-service/internal/service/stt/mock"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Publisher   *events.Publisher
	Transcriber stt.Transcriber
	Generator   generation.Generator
	Store       storage.Gateway
	Library     *scribes.Library
	Hub         *notify.Hub
	Notifier    notify.Notifier

	closers []io.Closer
}

// New constructs the application and its components from cfg. Missing
// provider credentials are not fatal: the affected provider fails each call.
// Storage is a precondition and fails construction.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	store, err := newStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.Store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Library = scribes.New(store, cfg.Storage.CacheControl)

	a.Publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		TopicDocuments:   cfg.Kafka.TopicDocuments,
		Principal:        cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher)

	a.Transcriber = a.newTranscriber(ctx)
	a.Generator = a.newGenerator()

	a.Hub = notify.NewHub()
	a.Notifier = notify.Multi{notify.NewLogNotifier("notifications"), a.Hub}

	appLogger.Info().
		Str("sttProvider", a.Transcriber.Provider()).
		Str("generationModel", a.Generator.Model()).
		Str("storageBackend", cfg.Storage.Backend).
		Msg("Daisy dictation service application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:  strings.ToLower(a.Cfg.Observability.LogLevel),
		Format: a.Cfg.Observability.LogFormat,
	})

	a.Logger = log.With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

func newStore(cfg config.StorageConfig) (storage.Gateway, error) {
	switch cfg.Backend {
	case "s3":
		return s3store.New(cfg)
	case "local":
		if cfg.LocalPath == ":memory:" {
			return local.OpenInMemory(cfg.Bucket)
		}
		return local.Open(cfg.LocalPath, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *Application) newTranscriber(ctx context.Context) stt.Transcriber {
	provider := a.Cfg.STT.Provider
	switch provider {
	case "mock":
		return sttmock.New(sttmock.WithDelay(500 * time.Millisecond))
	case "google":
		c, err := google.New(ctx, a.Cfg.GoogleSTT)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Google STT unavailable")
			return stt.Unavailable(provider, err)
		}
		a.closers = append(a.closers, c)
		return c
	default:
		c, err := deepgram.New(a.Cfg.Deepgram)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Deepgram unavailable")
			return stt.Unavailable("deepgram", err)
		}
		return c
	}
}

func (a *Application) newGenerator() generation.Generator {
	if a.Cfg.STT.Provider == "mock" && a.Cfg.Gemini.APIKey == "" {
		return genmock.New()
	}
	c, err := generation.New(a.Cfg.Gemini)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Document generation unavailable")
		return generation.Unavailable(a.Cfg.Gemini.Model, err)
	}
	return c
}

// NewSession builds a dictation session on dev using the application's
// providers. Playback handles are registered in registry.
func (a *Application) NewSession(dev device.Device, registry *playback.Registry, player playback.Player, extra ...notify.Notifier) *dictation.Session {
	rec := recording.NewController(dev, recording.WithIDGenerator(recording.NewIDGenerator(a.Cfg.Service.Principal)))
	notifier := notify.Multi(append([]notify.Notifier{a.Notifier}, extra...))
	return dictation.New(rec, playback.NewManager(registry, player), a.Transcriber,
		dictation.WithGenerator(a.Generator),
		dictation.WithLibrary(a.Library),
		dictation.WithPublisher(a.Publisher),
		dictation.WithNotifier(notifier),
	)
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	go a.Hub.Run(ctx)

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Daisy dictation service starting")

	return nil
}

// Shutdown closes every component. It returns the joined close errors.
func (a *Application) Shutdown() error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	shutdownLogger.Info().Msg("Daisy dictation service shutting down")
	return errors.Join(errs...)
}
