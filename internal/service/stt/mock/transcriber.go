// Package mock provides a scripted transcriber for demos and tests without
// provider credentials. It cycles through canned dictations and derives
// evenly spaced word timings from the recording length.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/stt"
)

// SimulatedDictation is one canned transcription.
type SimulatedDictation struct {
	Transcript string
	Confidence float64
}

// DefaultDictations provides sample clinical dictations.
var DefaultDictations = []SimulatedDictation{
	{
		Transcript: "Forty five year old male presents with chest pain radiating to the left arm for two hours.",
		Confidence: 0.94,
	},
	{
		Transcript: "Six year old with fever and ear pain since yesterday. Tympanic membrane is bulging on the right.",
		Confidence: 0.91,
	},
	{
		Transcript: "Follow up for hypertension. Blood pressure one thirty eight over eighty six. Continue amlodipine.",
		Confidence: 0.96,
	},
}

// Transcriber implements stt.Transcriber with scripted results.
type Transcriber struct {
	mu    sync.Mutex
	next  int
	calls int
	err   error
	delay time.Duration
	gate  <-chan struct{}
}

// Option configures a mock Transcriber.
type Option func(*Transcriber)

// WithDelay simulates network latency.
func WithDelay(d time.Duration) Option {
	return func(t *Transcriber) {
		t.delay = d
	}
}

// WithGate blocks every call until gate is closed or the context ends.
func WithGate(gate <-chan struct{}) Option {
	return func(t *Transcriber) {
		t.gate = gate
	}
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(t *Transcriber) {
		t.err = err
	}
}

// New creates a mock transcriber.
func New(opts ...Option) *Transcriber {
	t := &Transcriber{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Provider implements stt.Transcriber.
func (t *Transcriber) Provider() string {
	return "mock"
}

// SetError changes the failure returned by later calls. nil clears it.
func (t *Transcriber) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Calls returns how many calls reached the simulated service.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, a *recording.Artifact) (*stt.Result, error) {
	if a.Empty() {
		return nil, stt.ErrNoAudio
	}

	t.mu.Lock()
	t.calls++
	gate, delay := t.gate, t.delay
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	d := DefaultDictations[t.next%len(DefaultDictations)]
	t.next++

	return stt.NewResult(d.Transcript, d.Confidence, simulateWords(d.Transcript, d.Confidence, a.ElapsedSeconds)), nil
}

// simulateWords spreads the words evenly over the recording length.
func simulateWords(transcript string, confidence float64, seconds int) []stt.Word {
	fields := strings.Fields(transcript)
	if len(fields) == 0 {
		return []stt.Word{}
	}
	total := float64(seconds)
	if total <= 0 {
		total = float64(len(fields)) * 0.4
	}
	step := total / float64(len(fields))

	words := make([]stt.Word, 0, len(fields))
	for i, f := range fields {
		words = append(words, stt.Word{
			Word:           strings.ToLower(strings.Trim(f, ".,")),
			PunctuatedWord: f,
			Start:          float64(i) * step,
			End:            float64(i+1) * step,
			Confidence:     confidence,
		})
	}
	return words
}
