package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var managedEnv = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "LOG_LEVEL",
	"STT_PROVIDER", "DEEPGRAM_API_KEY", "DEEPGRAM_MODEL", "DEEPGRAM_SMART_FORMAT", "DEEPGRAM_TIMEOUT",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_DEPARTMENTS",
	"STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_ENDPOINT", "STORAGE_ACCESS_KEY_ID",
	"STORAGE_SECRET_ACCESS_KEY", "STORAGE_LOCAL_PATH",
	"RECORDING_SAMPLE_RATE_HZ", "RECORDING_TIMESLICE",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range managedEnv {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "svc-dictation" {
		t.Errorf("expected default principal 'svc-dictation', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "deepgram" {
		t.Errorf("expected default STT provider 'deepgram', got %s", cfg.STT.Provider)
	}
	if cfg.Deepgram.APIKey != "" {
		t.Errorf("expected no deepgram key by default, got %q", cfg.Deepgram.APIKey)
	}
	if cfg.Deepgram.Model != "nova-2" {
		t.Errorf("expected default model 'nova-2', got %s", cfg.Deepgram.Model)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Error("expected smart format on by default")
	}
	if cfg.Gemini.Model != "gemini-2.5-pro-preview-03-25" {
		t.Errorf("unexpected default gemini model %s", cfg.Gemini.Model)
	}
	if cfg.Storage.Bucket != "scribes" {
		t.Errorf("expected default bucket 'scribes', got %s", cfg.Storage.Bucket)
	}
	if cfg.Recording.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Recording.SampleRateHz)
	}
	if cfg.Recording.Timeslice != time.Second {
		t.Errorf("expected default timeslice 1s, got %v", cfg.Recording.Timeslice)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("DEEPGRAM_TIMEOUT", "30s")
	t.Setenv("GEMINI_DEPARTMENTS", "Cardiology, Pediatrics,,ENT")
	t.Setenv("RECORDING_TIMESLICE", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.Deepgram.APIKey != "dg-key" {
		t.Errorf("expected deepgram key, got %q", cfg.Deepgram.APIKey)
	}
	if cfg.Deepgram.SmartFormat {
		t.Error("expected smart format false")
	}
	if cfg.Deepgram.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Deepgram.Timeout)
	}
	want := []string{"Cardiology", "Pediatrics", "ENT"}
	if len(cfg.Gemini.Departments) != len(want) {
		t.Fatalf("expected %d departments, got %v", len(want), cfg.Gemini.Departments)
	}
	for i := range want {
		if cfg.Gemini.Departments[i] != want[i] {
			t.Errorf("department %d: expected %s, got %s", i, want[i], cfg.Gemini.Departments[i])
		}
	}
	if cfg.Recording.Timeslice != 250*time.Millisecond {
		t.Errorf("expected timeslice 250ms, got %v", cfg.Recording.Timeslice)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDING_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("RECORDING_TIMESLICE", "invalid")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "invalid")
	t.Setenv("KAFKA_ENABLED", "invalid")

	cfg := Load()

	if cfg.Recording.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Recording.SampleRateHz)
	}
	if cfg.Recording.Timeslice != time.Second {
		t.Errorf("expected default timeslice on invalid input, got %v", cfg.Recording.Timeslice)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Error("expected default smart format on invalid input")
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default kafka enabled on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		wantErr bool
	}{
		{
			name: "s3 complete",
			storage: StorageConfig{
				Backend: "s3", Bucket: "scribes", Endpoint: "https://example.supabase.co/storage/v1/s3",
				Region: "us-east-1", AccessKeyID: "id", SecretAccessKey: "secret",
			},
		},
		{
			name:    "s3 missing credentials",
			storage: StorageConfig{Backend: "s3", Bucket: "scribes", Endpoint: "https://example.com", Region: "us-east-1"},
			wantErr: true,
		},
		{
			name:    "local complete",
			storage: StorageConfig{Backend: "local", Bucket: "scribes", LocalPath: "/tmp/scribes"},
		},
		{
			name:    "local missing path",
			storage: StorageConfig{Backend: "local", Bucket: "scribes"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			storage: StorageConfig{Backend: "ftp", Bucket: "scribes"},
			wantErr: true,
		},
		{
			name:    "missing bucket",
			storage: StorageConfig{Backend: "local", LocalPath: "/tmp/scribes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Storage: tt.storage}
			err := cfg.ValidateStorage()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DEEPGRAM_MODEL=nova-3\nexport GEMINI_MODEL=\"gemini-test\"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_MODEL")
		os.Unsetenv("GEMINI_MODEL")
	})
	os.Unsetenv("DEEPGRAM_MODEL")
	os.Unsetenv("GEMINI_MODEL")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := Load()
	if cfg.Deepgram.Model != "nova-3" {
		t.Errorf("expected model from env file, got %s", cfg.Deepgram.Model)
	}
	if cfg.Gemini.Model != "gemini-test" {
		t.Errorf("expected gemini model from env file, got %s", cfg.Gemini.Model)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envValue)

			got := envOrDefaultBool("TEST_BOOL_VAR", tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
