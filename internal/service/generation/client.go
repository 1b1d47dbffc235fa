// Package generation turns transcripts into structured clinical notes with
// the Gemini streaming API.
package generation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/apierror"
)

const (
	service    = "gemini"
	dataPrefix = "data: "
)

// ErrEmptyTranscript is returned when there is nothing to generate from.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Generator produces a document from a transcript.
type Generator interface {
	Generate(ctx context.Context, transcript string) (string, error)
	Stream(ctx context.Context, transcript string, onFragment func(string)) (string, error)
	Model() string
}

// Client implements Generator against streamGenerateContent with alt=sse.
type Client struct {
	cfg               config.GeminiConfig
	http              *resty.Client
	systemInstruction string
	metrics           *metrics.Metrics
	log               zerolog.Logger
}

// New creates a Gemini client. It fails with apierror.ErrConfiguration
// when no API key is configured.
func New(cfg config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apierror.Missing("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro-preview-03-25"
	}

	prompt, err := RenderSystemInstruction(cfg.AssistantName, cfg.Departments)
	if err != nil {
		return nil, err
	}

	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(0).
		SetHeader("x-goog-api-key", cfg.APIKey)
	if cfg.Timeout > 0 {
		h.SetTimeout(cfg.Timeout)
	}

	return &Client{
		cfg:               cfg,
		http:              h,
		systemInstruction: prompt,
		metrics:           metrics.DefaultMetrics,
		log:               logging.WithProvider("generation", service),
	}, nil
}

type generateRequest struct {
	SystemInstruction *genai.Content          `json:"systemInstruction,omitempty"`
	Contents          []*genai.Content        `json:"contents"`
	GenerationConfig  *genai.GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []*genai.Tool           `json:"tools,omitempty"`
}

func (c *Client) buildRequest(transcript string) *generateRequest {
	req := &generateRequest{
		SystemInstruction: &genai.Content{
			Role:  "system",
			Parts: []*genai.Part{{Text: c.systemInstruction}},
		},
		Contents: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: transcript}},
		}},
		GenerationConfig: &genai.GenerationConfig{},
	}
	if c.cfg.EnableSearch {
		req.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return req
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate returns the full generated document.
func (c *Client) Generate(ctx context.Context, transcript string) (string, error) {
	return c.Stream(ctx, transcript, nil)
}

// Stream generates a document, calling onFragment with each text fragment
// in arrival order. Malformed stream lines are skipped. On a transport error
// mid-stream the text received so far is returned with the error.
func (c *Client) Stream(ctx context.Context, transcript string, onFragment func(string)) (string, error) {
	if c == nil || c.cfg.APIKey == "" {
		return "", apierror.Missing("GEMINI_API_KEY")
	}
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	start := time.Now()
	text, err := c.stream(ctx, transcript, onFragment)
	c.metrics.RecordGeneration(err, time.Since(start).Seconds())
	if err != nil {
		c.log.Error().Err(err).Msg("Document generation failed")
		return text, err
	}
	c.log.Info().Int("chars", len(text)).Dur("duration", time.Since(start)).Msg("Document generated")
	return text, nil
}

func (c *Client) stream(ctx context.Context, transcript string, onFragment func(string)) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetQueryParam("alt", "sse").
		SetBody(c.buildRequest(transcript)).
		Post(fmt.Sprintf("/v1beta/models/%s:streamGenerateContent", c.cfg.Model))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		raw, _ := io.ReadAll(body)
		return "", &apierror.ServiceError{
			Service: service,
			Status:  resp.StatusCode(),
			Body:    string(raw),
		}
	}

	var sb strings.Builder
	r := bufio.NewReader(body)
	for {
		line, readErr := r.ReadString('\n')
		if line != "" {
			if frag, ok := c.parseLine(line); ok {
				sb.WriteString(frag)
				c.metrics.RecordFragment()
				if onFragment != nil {
					onFragment(frag)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sb.String(), fmt.Errorf("read gemini stream: %w", readErr)
		}
	}
	return sb.String(), nil
}

// parseLine extracts candidates[0].content.parts[0].text from one event line.
func (c *Client) parseLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	var chunk genai.GenerateContentResponse
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &chunk); err != nil {
		c.metrics.RecordMalformedLine()
		c.log.Warn().Err(err).Str("line", truncate(line, 200)).Msg("Skipping malformed stream line")
		return "", false
	}
	return fragmentText(&chunk)
}

func fragmentText(chunk *genai.GenerateContentResponse) (string, bool) {
	if len(chunk.Candidates) == 0 || chunk.Candidates[0] == nil {
		return "", false
	}
	content := chunk.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", false
	}
	text := content.Parts[0].Text
	return text, text != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Unavailable returns a Generator that fails every call with err. It stands
// in when the API key is missing.
func Unavailable(model string, err error) Generator {
	return unavailable{model: model, err: err}
}

type unavailable struct {
	model string
	err   error
}

func (u unavailable) Generate(context.Context, string) (string, error) { return "", u.err }

func (u unavailable) Stream(context.Context, string, func(string)) (string, error) {
	return "", u.err
}

func (u unavailable) Model() string { return u.model }
