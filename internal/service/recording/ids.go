package recording

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out recording session IDs of the form <prefix>-rec-<n>.
type IDGenerator struct {
	prefix  string
	counter uint64
}

// NewIDGenerator creates a generator for the given prefix.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns the next session ID. Safe for concurrent use.
func (g *IDGenerator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-rec-%d", g.prefix, n)
}
