package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daisy-dictation-service/internal/service/device"
	"daisy-dictation-service/internal/service/device/mock"
)

func newTestController(t *testing.T, opts ...mock.Option) (*Controller, *mock.Device, *ManualTickers) {
	t.Helper()
	dev := mock.New(opts...)
	tickers := &ManualTickers{}
	c := NewController(dev, WithTicker(tickers.New), WithIDGenerator(NewIDGenerator("test")))
	t.Cleanup(c.Close)
	return c, dev, tickers
}

func tick(t *testing.T, c *Controller, tickers *ManualTickers, want int) {
	t.Helper()
	require.True(t, tickers.Last().Tick(), "ticker stopped")
	require.Eventually(t, func() bool { return c.Elapsed() == want }, time.Second, time.Millisecond)
}

func TestController_InitialState(t *testing.T) {
	c, _, _ := newTestController(t)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, c.Elapsed())
	assert.Nil(t, c.Artifact())
}

func TestController_StartStopScenario(t *testing.T) {
	c, dev, tickers := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, 1, dev.Held())

	stream := dev.Last()
	for i := 1; i <= 3; i++ {
		stream.Write([]byte{byte(i), byte(i)})
		stream.Flush()
		tick(t, c, tickers, i)
	}

	a, err := c.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, c.Elapsed(), "elapsed must reset on stop")
	assert.Equal(t, 3, a.ElapsedSeconds)
	assert.Equal(t, 3, a.ChunkCount)
	assert.Equal(t, []byte{1, 1, 2, 2, 3, 3}, a.Data)
	assert.Equal(t, "audio/webm;codecs=opus", a.MimeType)
	assert.Equal(t, "test-rec-1", a.SessionID)
	assert.True(t, stream.Stopped(), "device track must be stopped")
	assert.Equal(t, 0, dev.Held())
	assert.Same(t, a, c.Artifact())
}

func TestController_PauseScenario(t *testing.T) {
	c, _, tickers := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	tick(t, c, tickers, 1)

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())
	paused := tickers.Last()
	assert.True(t, paused.Stopped(), "ticker must stop while paused")
	assert.False(t, paused.Tick())
	assert.Equal(t, 1, c.Elapsed(), "elapsed frozen while paused")

	require.NoError(t, c.Resume())
	assert.Equal(t, StateRecording, c.State())
	tick(t, c, tickers, 2)

	a, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, a.ElapsedSeconds)
}

func TestController_StartWhileRecording(t *testing.T) {
	c, dev, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	err := c.Start(ctx)

	assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
	assert.Equal(t, 1, dev.Acquired(), "held device must not be touched")
	assert.False(t, dev.Last().Stopped())
	assert.Equal(t, StateRecording, c.State())
}

func TestController_InvalidTransitions(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Resume(), ErrInvalidTransition)
	_, err := c.Stop(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Resume(), ErrInvalidTransition)

	require.NoError(t, c.Pause())
	assert.ErrorIs(t, c.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Start(ctx), ErrInvalidTransition)

	_, err = c.Stop(ctx)
	require.NoError(t, err, "stop is valid from paused")
	assert.ErrorIs(t, c.Pause(), ErrInvalidTransition)
}

func TestController_PauseRequiresCapturingStream(t *testing.T) {
	c, dev, _ := newTestController(t)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, dev.Last().Pause())

	assert.ErrorIs(t, c.Pause(), ErrInvalidTransition)
	assert.Equal(t, StateRecording, c.State())
}

func TestController_StartFailure(t *testing.T) {
	c, dev, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	dev.Last().Write([]byte("abc"))
	prior, err := c.Stop(ctx)
	require.NoError(t, err)

	dev.SetAcquireError(device.ErrPermissionDenied)
	err = c.Start(ctx)

	assert.ErrorIs(t, err, device.ErrPermissionDenied)
	assert.Equal(t, StateIdle, c.State())
	assert.Same(t, prior, c.Artifact(), "failed start keeps the previous artifact")
}

func TestController_StartDiscardsArtifact(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	_, err := c.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, c.Artifact())

	require.NoError(t, c.Start(ctx))
	assert.Nil(t, c.Artifact())
	assert.Equal(t, "test-rec-2", c.Snapshot().SessionID)
}

func TestController_EmptyChunksIgnored(t *testing.T) {
	c, dev, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	dev.Last().EmitEmpty()
	dev.Last().EmitEmpty()

	a, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, a.ChunkCount)
	assert.True(t, a.Empty())
}

func TestController_DoubleClose(t *testing.T) {
	c, dev, tickers := newTestController(t)

	require.NoError(t, c.Start(context.Background()))
	c.Close()
	c.Close()

	assert.Equal(t, 1, dev.Released(), "device released exactly once")
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, tickers.Last().Stopped())
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
}

func TestController_CloseAfterStop(t *testing.T) {
	c, dev, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	_, err := c.Stop(ctx)
	require.NoError(t, err)

	c.Close()
	assert.Equal(t, 1, dev.Released())
}

func TestController_DiscardArtifact(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	a, err := c.Stop(ctx)
	require.NoError(t, err)

	assert.False(t, c.DiscardArtifact(&Artifact{}))
	assert.True(t, c.DiscardArtifact(a))
	assert.Nil(t, c.Artifact())
	assert.False(t, c.DiscardArtifact(a))
}

func TestController_StopDeadline(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Start(context.Background()))
	a, err := c.Stop(ctx)

	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, StateStopped, c.State())
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{61, "01:01"},
		{3600, "60:00"},
		{-5, "00:00"},
	}

	for _, tt := range tests {
		if got := FormatElapsed(tt.seconds); got != tt.want {
			t.Errorf("FormatElapsed(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestIDGenerator_Next(t *testing.T) {
	g := NewIDGenerator("cli")

	if id := g.Next(); id != "cli-rec-1" {
		t.Errorf("expected 'cli-rec-1', got %s", id)
	}
	if id := g.Next(); id != "cli-rec-2" {
		t.Errorf("expected 'cli-rec-2', got %s", id)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateRecording, "RECORDING"},
		{StatePaused, "PAUSED"},
		{StateStopped, "STOPPED"},
		{State(42), "UNKNOWN(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
