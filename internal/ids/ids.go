// Package ids hands out time-based integer identifiers for entries and tasks.
package ids

import (
	"sync"
	"time"
)

// Generator returns millisecond timestamps, bumped when needed so that every
// value is strictly greater than the previous one.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// New creates a generator reading the wall clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a generator reading the given clock.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns the next identifier.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe makes sure future identifiers stay above id.
func (g *Generator) Observe(id int64) {
	g.mu.Lock()
	if id > g.last {
		g.last = id
	}
	g.mu.Unlock()
}
