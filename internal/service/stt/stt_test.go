package stt

import (
	"context"
	"errors"
	"math"
	"testing"

	"daisy-dictation-service/internal/service/apierror"
)

func TestNewResult_Normalizes(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		words      []Word
		wantConf   float64
	}{
		{"nil words", 0.9, nil, 0.9},
		{"negative confidence", -1, []Word{{Word: "a"}}, 0},
		{"nan confidence", math.NaN(), nil, 0},
		{"over one", 1.5, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult("text", tt.confidence, tt.words)
			if r.Words == nil {
				t.Error("expected non-nil words")
			}
			if r.Confidence != tt.wantConf {
				t.Errorf("expected confidence %v, got %v", tt.wantConf, r.Confidence)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	tr := Unavailable("deepgram", apierror.Missing("DEEPGRAM_API_KEY"))

	_, err := tr.Transcribe(context.Background(), nil)
	if !errors.Is(err, apierror.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if tr.Provider() != "deepgram" {
		t.Errorf("unexpected provider %s", tr.Provider())
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		seconds int
		want    float64
	}{
		{0, 0},
		{-3, 0},
		{60, 0.0042},
		{90, 0.0063},
	}

	for _, tt := range tests {
		got := EstimateCost(tt.seconds)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateCost(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
