// Package google transcribes recordings with Google Cloud Speech-to-Text.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/apierror"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/stt"
)

const provider = "google"

// Recognizer is the subset of speech.Client used here.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Client implements stt.Transcriber with synchronous recognition.
type Client struct {
	cfg        config.GoogleSTTConfig
	recognizer Recognizer
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// New creates a Google STT client from a service account file.
func New(ctx context.Context, cfg config.GoogleSTTConfig) (*Client, error) {
	if cfg.CredentialsFile == "" {
		return nil, apierror.Missing("GOOGLE_APPLICATION_CREDENTIALS")
	}
	c, err := speech.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return NewWithRecognizer(cfg, c), nil
}

// NewWithRecognizer creates a client around an existing recognizer.
func NewWithRecognizer(cfg config.GoogleSTTConfig, r Recognizer) *Client {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	return &Client{
		cfg:        cfg,
		recognizer: r,
		metrics:    metrics.DefaultMetrics,
		log:        logging.WithProvider("stt", provider),
	}
}

// Provider implements stt.Transcriber.
func (c *Client) Provider() string {
	return provider
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.recognizer == nil {
		return nil
	}
	return c.recognizer.Close()
}

// Transcribe implements stt.Transcriber.
func (c *Client) Transcribe(ctx context.Context, a *recording.Artifact) (*stt.Result, error) {
	if c == nil || c.recognizer == nil {
		return nil, apierror.Missing("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if a.Empty() {
		return nil, stt.ErrNoAudio
	}

	start := time.Now()
	res, err := c.recognize(ctx, a)
	c.metrics.RecordSTTRequest(provider, err, time.Since(start).Seconds(), float64(a.ElapsedSeconds))
	if err != nil {
		c.metrics.RecordSTTError(provider, apierror.Kind(err))
		c.log.Error().Err(err).Str("sessionId", a.SessionID).Msg("Transcription failed")
		return nil, err
	}
	return res, nil
}

func (c *Client) recognize(ctx context.Context, a *recording.Artifact) (*stt.Result, error) {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   encodingFor(a.MimeType),
		LanguageCode:               c.cfg.LanguageCode,
		Model:                      c.cfg.Model,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		EnableWordConfidence:       true,
	}
	if c.cfg.SampleRateHz > 0 {
		rc.SampleRateHertz = int32(c.cfg.SampleRateHz)
	}

	resp, err := c.recognizer.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: a.Data}},
	})
	if err != nil {
		return nil, mapError(err)
	}
	return normalize(resp)
}

// normalize joins the sequential results. No results means silence.
func normalize(resp *speechpb.RecognizeResponse) (*stt.Result, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", apierror.ErrMalformedResponse)
	}

	var parts []string
	var confSum float64
	words := []stt.Word{}
	for i, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			return nil, fmt.Errorf("%w: result %d has no alternatives", apierror.ErrMalformedResponse, i)
		}
		alt := r.GetAlternatives()[0]
		if t := strings.TrimSpace(alt.GetTranscript()); t != "" {
			parts = append(parts, t)
		}
		confSum += float64(alt.GetConfidence())
		for _, w := range alt.GetWords() {
			words = append(words, stt.Word{
				Word:       w.GetWord(),
				Start:      w.GetStartTime().AsDuration().Seconds(),
				End:        w.GetEndTime().AsDuration().Seconds(),
				Confidence: float64(w.GetConfidence()),
			})
		}
	}

	var confidence float64
	if n := len(resp.GetResults()); n > 0 {
		confidence = confSum / float64(n)
	}
	return stt.NewResult(strings.Join(parts, " "), confidence, words), nil
}

func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.Canceled || st.Code() == codes.DeadlineExceeded {
		return fmt.Errorf("google speech request: %w", err)
	}
	return &apierror.ServiceError{
		Service: provider,
		Status:  int(st.Code()),
		Body:    st.Message(),
	}
}

// encodingFor maps a container MIME type to a recognition encoding.
// Unknown types are left for the service to detect.
func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch base {
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/wav", "audio/x-wav", "audio/wave":
		return speechpb.RecognitionConfig_LINEAR16
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC
	case "audio/amr":
		return speechpb.RecognitionConfig_AMR
	case "audio/basic":
		return speechpb.RecognitionConfig_MULAW
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
