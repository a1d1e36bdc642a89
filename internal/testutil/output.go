package testutil

import (
	"bytes"
	"strings"
	"sync"
)

// OutputBuffer collects the say output of predicate clauses.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type OutputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *OutputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the written output split into lines, without the trailing
// empty line. Returns nil if nothing was written.
func (b *OutputBuffer) Lines() []string {
	s := strings.TrimSuffix(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Reset discards the collected output.
//
// Used between scenario calls so each call's output is checked on its own.
func (b *OutputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
