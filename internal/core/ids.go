package core

import (
	"sync"
	"time"
)

// IDGenerator hands out record identifiers.
//
// Each import reserves a contiguous block whose base is the current Unix
// millisecond timestamp, raised above every id issued before. Files get
// offsets into the block by cumulative row count, so ids are unique across
// the files of one import and monotonic across imports.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator creates a generator using the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Observe raises the floor so future ids are greater than id.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}

// Reserve claims n consecutive ids and returns the first.
func (g *IDGenerator) Reserve(n int) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.now().UnixMilli()
	if base <= g.last {
		base = g.last + 1
	}
	if n > 0 {
		g.last = base + int64(n) - 1
	}
	return base
}
