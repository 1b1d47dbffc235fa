// Package mock provides a scripted document generator for local runs and tests.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"daisy-dictation-service/internal/service/generation"
)

// Generator implements generation.Generator by splitting a canned SOAP
// note into fragments.
type Generator struct {
	mu        sync.Mutex
	calls     int
	err       error
	delay     time.Duration
	fragments []string
}

// New creates a mock generator.
func New() *Generator {
	return &Generator{}
}

// SetError makes later calls fail with err. nil clears it.
func (g *Generator) SetError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// SetDelay sleeps between fragments.
func (g *Generator) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// SetFragments overrides the emitted fragments.
func (g *Generator) SetFragments(f ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fragments = f
}

// Calls returns how many generations were requested.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *Generator) Model() string { return "mock" }

func (g *Generator) Generate(ctx context.Context, transcript string) (string, error) {
	return g.Stream(ctx, transcript, nil)
}

func (g *Generator) Stream(ctx context.Context, transcript string, onFragment func(string)) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", generation.ErrEmptyTranscript
	}

	g.mu.Lock()
	g.calls++
	err, delay := g.err, g.delay
	fragments := g.fragments
	g.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fragments == nil {
		fragments = soapNote(transcript)
	}

	var b strings.Builder
	for _, f := range fragments {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return b.String(), ctx.Err()
			}
		}
		b.WriteString(f)
		if onFragment != nil {
			onFragment(f)
		}
	}
	return b.String(), nil
}

func soapNote(transcript string) []string {
	return []string{
		"Department: General Practice\n\n",
		"Subjective:\n" + transcript + "\n\n",
		"Objective:\nNot documented.\n\n",
		"Assessment:\nPending clinician review.\n\n",
		"Plan:\nFollow up as needed.\n",
	}
}
