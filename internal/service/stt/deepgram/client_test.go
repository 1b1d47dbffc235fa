package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/service/apierror"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/stt"
)

type captured struct {
	auth        string
	contentType string
	query       string
	body        []byte
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, *captured) {
	t.Helper()
	var hits atomic.Int32
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		got.query = r.URL.RawQuery
		got.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, got
}

func testConfig(url string) config.DeepgramConfig {
	return config.DeepgramConfig{APIKey: "dg-key", BaseURL: url, Model: "nova-2", SmartFormat: true}
}

func testArtifact() *recording.Artifact {
	return &recording.Artifact{SessionID: "s-1", MimeType: "audio/webm;codecs=opus", Data: []byte("audio"), ElapsedSeconds: 3}
}

const fullResponse = `{"results":{"channels":[{"alternatives":[{
	"transcript":"Patient reports chest pain.",
	"confidence":0.97,
	"words":[
		{"word":"patient","punctuated_word":"Patient","start":0.1,"end":0.5,"confidence":0.99},
		{"word":"reports","start":0.5,"end":0.9,"confidence":0.95}
	]}]}]}}`

func TestNew_MissingKey(t *testing.T) {
	_, err := New(config.DeepgramConfig{})
	assert.ErrorIs(t, err, apierror.ErrConfiguration)
}

func TestTranscribe_MissingKeyMakesNoRequest(t *testing.T) {
	srv, hits, _ := newServer(t, http.StatusOK, fullResponse)

	c := &Client{cfg: config.DeepgramConfig{BaseURL: srv.URL}}
	_, err := c.Transcribe(context.Background(), testArtifact())

	assert.ErrorIs(t, err, apierror.ErrConfiguration)
	assert.Equal(t, int32(0), hits.Load())
}

func TestTranscribe_Success(t *testing.T) {
	srv, hits, got := newServer(t, http.StatusOK, fullResponse)
	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	res, err := c.Transcribe(context.Background(), testArtifact())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Token dg-key", got.auth)
	assert.Equal(t, "audio/webm;codecs=opus", got.contentType)
	assert.Contains(t, got.query, "model=nova-2")
	assert.Contains(t, got.query, "smart_format=true")
	assert.Equal(t, "audio", string(got.body))

	assert.Equal(t, "Patient reports chest pain.", res.Transcript)
	assert.InDelta(t, 0.97, res.Confidence, 1e-9)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "Patient", res.Words[0].PunctuatedWord)
	assert.InDelta(t, 0.9, res.Words[1].End, 1e-9)
}

func TestTranscribe_ServiceError(t *testing.T) {
	srv, hits, _ := newServer(t, http.StatusInternalServerError, "overloaded")
	c, _ := New(testConfig(srv.URL))

	_, err := c.Transcribe(context.Background(), testArtifact())

	se, ok := apierror.AsServiceError(err)
	require.True(t, ok, "expected ServiceError, got %v", err)
	assert.Equal(t, 500, se.Status)
	assert.Equal(t, "overloaded", se.Body)
	assert.Equal(t, int32(1), hits.Load(), "no retry")
}

func TestTranscribe_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"no results", `{"metadata":{}}`},
		{"no channels", `{"results":{"channels":[]}}`},
		{"no alternatives", `{"results":{"channels":[{"alternatives":[]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newServer(t, http.StatusOK, tt.body)
			c, _ := New(testConfig(srv.URL))

			_, err := c.Transcribe(context.Background(), testArtifact())
			assert.ErrorIs(t, err, apierror.ErrMalformedResponse)
		})
	}
}

func TestTranscribe_NormalizesMissingFields(t *testing.T) {
	srv, _, _ := newServer(t, http.StatusOK, `{"results":{"channels":[{"alternatives":[{}]}]}}`)
	c, _ := New(testConfig(srv.URL))

	res, err := c.Transcribe(context.Background(), testArtifact())
	require.NoError(t, err)

	assert.Equal(t, "", res.Transcript)
	assert.Equal(t, 0.0, res.Confidence)
	assert.NotNil(t, res.Words)
	assert.Empty(t, res.Words)
}

func TestTranscribe_WordsEmptyIffOmitted(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantWords int
	}{
		{"omitted", `{"results":{"channels":[{"alternatives":[{"transcript":"hi"}]}]}}`, 0},
		{"present", `{"results":{"channels":[{"alternatives":[{"transcript":"hi","words":[{"word":"hi"}]}]}]}}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newServer(t, http.StatusOK, tt.body)
			c, _ := New(testConfig(srv.URL))

			res, err := c.Transcribe(context.Background(), testArtifact())
			require.NoError(t, err)
			assert.Len(t, res.Words, tt.wantWords)
		})
	}
}

func TestTranscribe_EmptyArtifact(t *testing.T) {
	srv, hits, _ := newServer(t, http.StatusOK, fullResponse)
	c, _ := New(testConfig(srv.URL))

	_, err := c.Transcribe(context.Background(), &recording.Artifact{MimeType: "audio/webm"})

	assert.True(t, errors.Is(err, stt.ErrNoAudio))
	assert.Equal(t, int32(0), hits.Load())
}
