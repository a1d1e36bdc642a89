package engine

import (
	"fmt"
	"iter"
)

// Item is one element produced by a Backtracking clause body.
//
// This is a sealed interface: only Solution and CutMarker implement it,
// so a cut can never be confused with a solution value.
type Item interface {
	item() // Sealed - only these types implement it
}

// Solution is an ordinary result value.
type Solution struct {
	Value any
}

func (Solution) item() {}

// CutMarker requests that no clause after the current one is tried.
// The producer that yields it still runs to exhaustion.
type CutMarker struct{}

func (CutMarker) item() {}

// Cut returns the cut marker. It only has meaning when yielded by a
// Backtracking clause body.
func Cut() Item {
	return CutMarker{}
}

// Producer is a lazy, suspendable sequence of items.
//
// Next returns the next item and true, or false once the sequence is
// exhausted. A non-nil error means the producer failed mid-stream; it
// yields nothing further after that. Stop releases the producer early and
// is safe to call more than once.
type Producer interface {
	Next() (Item, bool, error)
	Stop()
}

// Generate builds a Producer from a generator function. The function runs
// suspended: it only advances when the consumer calls Next, and each call
// to yield hands one item over. Returning an error (for example a Failure
// from Check) ends the sequence with that error.
//
//	engine.Generate(func(yield func(engine.Item) bool) error {
//	    for _, n := range numbers {
//	        if !yield(engine.Solution{Value: n}) {
//	            return nil
//	        }
//	    }
//	    return nil
//	})
func Generate(fn func(yield func(Item) bool) error) Producer {
	seq := func(yield func(Item, error) bool) {
		stopped := false
		err := fn(func(it Item) bool {
			if !yield(it, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
	next, stop := iter.Pull2(seq)
	return &pullProducer{next: next, stop: stop}
}

// pullProducer drives a generator through iter.Pull2.
type pullProducer struct {
	next func() (Item, error, bool)
	stop func()
	done bool
}

func (p *pullProducer) Next() (it Item, ok bool, err error) {
	if p.done {
		return nil, false, nil
	}

	// A panic inside the generator surfaces here; report it as an error.
	defer func() {
		if r := recover(); r != nil {
			p.done = true
			it, ok, err = nil, false, fmt.Errorf("producer panicked: %v", r)
		}
	}()

	item, itemErr, more := p.next()
	if !more {
		p.done = true
		return nil, false, nil
	}
	if itemErr != nil {
		p.done = true
		p.stop()
		return nil, false, itemErr
	}
	return item, true, nil
}

func (p *pullProducer) Stop() {
	p.done = true
	defer func() { _ = recover() }()
	p.stop()
}

// Solutions returns a Producer over fixed values. Items that already are
// Items (such as Cut()) are passed through unchanged.
func Solutions(values ...any) Producer {
	items := make([]Item, len(values))
	for i, v := range values {
		if it, ok := v.(Item); ok {
			items[i] = it
			continue
		}
		items[i] = Solution{Value: v}
	}
	return &sliceProducer{items: items}
}

// FromSeq adapts a standard iterator of values into a Producer.
func FromSeq(seq iter.Seq[any]) Producer {
	return Generate(func(yield func(Item) bool) error {
		for v := range seq {
			it, ok := v.(Item)
			if !ok {
				it = Solution{Value: v}
			}
			if !yield(it) {
				return nil
			}
		}
		return nil
	})
}

// FailWith returns a Producer that yields nothing and fails with err.
func FailWith(err error) Producer {
	return &sliceProducer{err: err}
}

// sliceProducer serves items from memory, then an optional error.
type sliceProducer struct {
	items []Item
	pos   int
	err   error
	done  bool
}

func (p *sliceProducer) Next() (Item, bool, error) {
	if p.done {
		return nil, false, nil
	}
	if p.pos < len(p.items) {
		it := p.items[p.pos]
		p.pos++
		return it, true, nil
	}
	p.done = true
	return nil, false, p.err
}

func (p *sliceProducer) Stop() {
	p.done = true
}
