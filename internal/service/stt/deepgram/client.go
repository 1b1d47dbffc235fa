// Package deepgram transcribes recordings with the Deepgram pre-recorded API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/apierror"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/stt"
)

const (
	provider   = "deepgram"
	listenPath = "/v1/listen"
)

// Client implements stt.Transcriber. It makes exactly one request per call
// and never retries.
type Client struct {
	cfg     config.DeepgramConfig
	http    *resty.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a Deepgram client. It fails with apierror.ErrConfiguration
// when no API key is configured.
func New(cfg config.DeepgramConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apierror.Missing("DEEPGRAM_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}

	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(0).
		SetAuthScheme("Token").
		SetAuthToken(cfg.APIKey)
	if cfg.Timeout > 0 {
		h.SetTimeout(cfg.Timeout)
	}

	return &Client{
		cfg:     cfg,
		http:    h,
		metrics: metrics.DefaultMetrics,
		log:     logging.WithProvider("stt", provider),
	}, nil
}

// Provider implements stt.Transcriber.
func (c *Client) Provider() string {
	return provider
}

// listenResponse mirrors the parts of the response that are read. Pointers
// distinguish absent fields from zero values.
type listenResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type alternative struct {
	Transcript *string  `json:"transcript"`
	Confidence *float64 `json:"confidence"`
	Words      []struct {
		Word           string  `json:"word"`
		PunctuatedWord string  `json:"punctuated_word"`
		Start          float64 `json:"start"`
		End            float64 `json:"end"`
		Confidence     float64 `json:"confidence"`
	} `json:"words"`
}

// Transcribe implements stt.Transcriber.
func (c *Client) Transcribe(ctx context.Context, a *recording.Artifact) (*stt.Result, error) {
	if c == nil || c.cfg.APIKey == "" {
		return nil, apierror.Missing("DEEPGRAM_API_KEY")
	}
	if a.Empty() {
		return nil, stt.ErrNoAudio
	}

	start := time.Now()
	res, err := c.transcribe(ctx, a)
	c.metrics.RecordSTTRequest(provider, err, time.Since(start).Seconds(), float64(a.ElapsedSeconds))
	if err != nil {
		c.metrics.RecordSTTError(provider, apierror.Kind(err))
		c.log.Error().Err(err).Str("sessionId", a.SessionID).Msg("Transcription failed")
		return nil, err
	}

	c.log.Info().
		Str("sessionId", a.SessionID).
		Int("bytes", a.Size()).
		Int("words", len(res.Words)).
		Float64("confidence", res.Confidence).
		Msg("Transcription complete")
	return res, nil
}

func (c *Client) transcribe(ctx context.Context, a *recording.Artifact) (*stt.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", a.MimeType).
		SetQueryParams(map[string]string{
			"model":        c.cfg.Model,
			"smart_format": strconv.FormatBool(c.cfg.SmartFormat),
		}).
		SetBody(a.Data).
		Post(listenPath)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &apierror.ServiceError{
			Service: provider,
			Status:  resp.StatusCode(),
			Body:    string(resp.Body()),
		}
	}

	return parse(resp.Body())
}

func parse(body []byte) (*stt.Result, error) {
	var lr listenResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("%w: %v", apierror.ErrMalformedResponse, err)
	}
	if lr.Results == nil || len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("%w: missing results.channels[0].alternatives[0]", apierror.ErrMalformedResponse)
	}

	alt := lr.Results.Channels[0].Alternatives[0]

	var transcript string
	if alt.Transcript != nil {
		transcript = *alt.Transcript
	}
	var confidence float64
	if alt.Confidence != nil {
		confidence = *alt.Confidence
	}
	words := make([]stt.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.Word{
			Word:           w.Word,
			PunctuatedWord: w.PunctuatedWord,
			Start:          w.Start,
			End:            w.End,
			Confidence:     w.Confidence,
		})
	}

	return stt.NewResult(transcript, confidence, words), nil
}
