package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates numbered resolution ids: "<prefix>-1",
// "<prefix>-2", and so on.
//
// Every resolution needs its own id, nested ones included, so a constant
// token cannot be used. Numbering from a fixed prefix keeps golden traces
// byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. If prefix is empty, "res"
// is used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "res"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
