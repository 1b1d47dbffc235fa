// Package stt defines the speech-to-text contract used for finished recordings.
package stt

import (
	"context"
	"errors"
	"math"

	"daisy-dictation-service/internal/service/recording"
)

// ErrNoAudio is returned for a nil or empty artifact. No request is made.
var ErrNoAudio = errors.New("no audio recorded")

// costPerMinute is the pre-recorded transcription price in USD.
const costPerMinute = 0.0042

// Word is one recognized word with timing in seconds.
type Word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuatedWord,omitempty"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

// Result is a normalized transcription. Words is never nil.
type Result struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// NewResult builds a normalized result. Confidence is clamped to [0,1].
func NewResult(transcript string, confidence float64, words []Word) *Result {
	if words == nil {
		words = []Word{}
	}
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &Result{Transcript: transcript, Confidence: confidence, Words: words}
}

// Transcriber converts a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, a *recording.Artifact) (*Result, error)
	Provider() string
}

// Unavailable returns a Transcriber that fails every call with err. It stands
// in for a provider whose credentials are missing.
func Unavailable(provider string, err error) Transcriber {
	return unavailable{provider: provider, err: err}
}

type unavailable struct {
	provider string
	err      error
}

func (u unavailable) Transcribe(context.Context, *recording.Artifact) (*Result, error) {
	return nil, u.err
}

func (u unavailable) Provider() string { return u.provider }

// EstimateCost returns the transcription price in USD for a recording of
// the given length.
func EstimateCost(seconds int) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(seconds) / 60 * costPerMinute
}
