// Package config loads service configuration from the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full service configuration. It is built once at startup
// and handed to each component constructor.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Deepgram      DeepgramConfig
	GoogleSTT     GoogleSTTConfig
	Gemini        GeminiConfig
	Storage       StorageConfig
	Recording     RecordingConfig
	Playback      PlaybackConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process identity and listener ports.
type ServiceConfig struct {
	Name        string
	Principal   string
	HTTPPort    string
	GRPCPort    string
	Environment string
}

// STTConfig selects the transcription provider.
type STTConfig struct {
	Provider string // deepgram, google
}

// DeepgramConfig holds the Deepgram pre-recorded API settings.
type DeepgramConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	SmartFormat bool
	Timeout     time.Duration
}

// GoogleSTTConfig holds Google Cloud Speech settings.
type GoogleSTTConfig struct {
	CredentialsFile string
	LanguageCode    string
	SampleRateHz    int
	Model           string
}

// GeminiConfig holds the document generation settings.
type GeminiConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	AssistantName string
	Departments   []string
	EnableSearch  bool
	Timeout       time.Duration
}

// StorageConfig holds the object storage settings. Unlike the API keys
// above, these are a startup precondition.
type StorageConfig struct {
	Backend         string `validate:"required,oneof=s3 local"`
	Bucket          string `validate:"required"`
	Endpoint        string `validate:"required_if=Backend s3"`
	Region          string `validate:"required_if=Backend s3"`
	AccessKeyID     string `validate:"required_if=Backend s3"`
	SecretAccessKey string `validate:"required_if=Backend s3"`
	LocalPath       string `validate:"required_if=Backend local"`
	CacheControl    string
}

// RecordingConfig holds microphone capture settings.
type RecordingConfig struct {
	SampleRateHz int
	Timeslice    time.Duration
}

// PlaybackConfig holds the local playback command.
type PlaybackConfig struct {
	Command string
	Args    []string
}

// KafkaConfig holds the event publisher settings.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscripts string
	TopicDocuments   string
	Principal        string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads the configuration from the environment. Unparseable values
// fall back to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-dictation")

	return &Config{
		Service: ServiceConfig{
			Name:        envOrDefault("SERVICE_NAME", "daisy-dictation-service"),
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			Environment: envOrDefault("ENV", "prod"),
		},
		STT: STTConfig{
			Provider: envOrDefault("STT_PROVIDER", "deepgram"),
		},
		Deepgram: DeepgramConfig{
			APIKey:      os.Getenv("DEEPGRAM_API_KEY"),
			BaseURL:     envOrDefault("DEEPGRAM_BASE_URL", "https://api.deepgram.com"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			Timeout:     envOrDefaultDuration("DEEPGRAM_TIMEOUT", 2*time.Minute),
		},
		GoogleSTT: GoogleSTTConfig{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			LanguageCode:    envOrDefault("GOOGLE_STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:    envOrDefaultInt("GOOGLE_STT_SAMPLE_RATE_HZ", 0),
			Model:           envOrDefault("GOOGLE_STT_MODEL", "medical_dictation"),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			BaseURL:       envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:         envOrDefault("GEMINI_MODEL", "gemini-2.5-pro-preview-03-25"),
			AssistantName: envOrDefault("GEMINI_ASSISTANT_NAME", "Daisy"),
			Departments:   envOrDefaultList("GEMINI_DEPARTMENTS", nil),
			EnableSearch:  envOrDefaultBool("GEMINI_ENABLE_SEARCH", true),
			Timeout:       envOrDefaultDuration("GEMINI_TIMEOUT", 5*time.Minute),
		},
		Storage: StorageConfig{
			Backend:         envOrDefault("STORAGE_BACKEND", "s3"),
			Bucket:          envOrDefault("STORAGE_BUCKET", "scribes"),
			Endpoint:        os.Getenv("STORAGE_ENDPOINT"),
			Region:          envOrDefault("STORAGE_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
			LocalPath:       envOrDefault("STORAGE_LOCAL_PATH", "./data/scribes"),
			CacheControl:    envOrDefault("STORAGE_CACHE_CONTROL", "3600"),
		},
		Recording: RecordingConfig{
			SampleRateHz: envOrDefaultInt("RECORDING_SAMPLE_RATE_HZ", 16000),
			Timeslice:    envOrDefaultDuration("RECORDING_TIMESLICE", time.Second),
		},
		Playback: PlaybackConfig{
			Command: envOrDefault("PLAYBACK_COMMAND", "ffplay"),
			Args:    envOrDefaultList("PLAYBACK_ARGS", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}),
		},
		Kafka: KafkaConfig{
			Enabled:          envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:          envOrDefaultList("KAFKA_BROKERS", nil),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "dictation.transcript.completed"),
			TopicDocuments:   envOrDefault("KAFKA_TOPIC_DOCUMENTS", "dictation.document.generated"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

// LoadDotEnv loads the given env files into the process environment.
// Missing files are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// ValidateStorage checks the storage settings. The server must not start
// when this fails.
func (c *Config) ValidateStorage() error {
	if err := validator.New().Struct(c.Storage); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envOrDefaultList splits a comma-separated value, dropping blanks.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
