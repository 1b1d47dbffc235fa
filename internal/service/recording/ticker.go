package recording

import (
	"sync"
	"time"
)

// Ticker delivers the one-second elapsed-time ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTicker returns a Ticker backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// ManualTicker fires only when Tick is called.
type ManualTicker struct {
	c        chan time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// C implements Ticker.
func (m *ManualTicker) C() <-chan time.Time { return m.c }

// Stop implements Ticker. Idempotent.
func (m *ManualTicker) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// Tick delivers one tick. It blocks until the tick is received and returns
// false if the ticker was stopped first.
func (m *ManualTicker) Tick() bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.c <- time.Now():
		return true
	case <-m.done:
		return false
	}
}

// Stopped reports whether Stop was called.
func (m *ManualTicker) Stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// ManualTickers is a TickerFactory source that records every ticker it creates.
type ManualTickers struct {
	mu  sync.Mutex
	all []*ManualTicker
}

// New implements TickerFactory.
func (f *ManualTickers) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &ManualTicker{c: make(chan time.Time), done: make(chan struct{})}
	f.all = append(f.all, t)
	return t
}

// Last returns the most recently created ticker, or nil.
func (f *ManualTickers) Last() *ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) == 0 {
		return nil
	}
	return f.all[len(f.all)-1]
}

// Count returns how many tickers were created.
func (f *ManualTickers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}
