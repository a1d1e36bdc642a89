package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains p and returns its items and terminal error.
func collect(p Producer) ([]Item, error) {
	defer p.Stop()
	var items []Item
	for {
		it, ok, err := p.Next()
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, it)
	}
}

func TestGenerate_YieldsInOrder(t *testing.T) {
	p := Generate(func(yield func(Item) bool) error {
		for _, v := range []string{"a", "b"} {
			if !yield(Solution{Value: v}) {
				return nil
			}
		}
		return nil
	})

	items, err := collect(p)
	require.NoError(t, err)
	assert.Equal(t, []Item{Solution{Value: "a"}, Solution{Value: "b"}}, items)

	// Exhausted producers stay exhausted.
	_, ok, err := p.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestGenerate_ErrorEndsSequence(t *testing.T) {
	p := Generate(func(yield func(Item) bool) error {
		yield(Solution{Value: 1})
		return Fail("stop here")
	})

	items, err := collect(p)
	assert.Len(t, items, 1)
	assert.True(t, IsFailure(err))

	_, ok, err := p.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestGenerate_IsLazy(t *testing.T) {
	started := false
	p := Generate(func(yield func(Item) bool) error {
		started = true
		yield(Solution{Value: 1})
		return nil
	})
	assert.False(t, started, "body must not run before the first Next")

	_, ok, err := p.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, started)
	p.Stop()
}

func TestGenerate_StopEarly(t *testing.T) {
	sawStop := false
	p := Generate(func(yield func(Item) bool) error {
		for i := 0; ; i++ {
			if !yield(Solution{Value: i}) {
				sawStop = true
				return errors.New("ignored after stop")
			}
		}
	})

	_, _, _ = p.Next()
	p.Stop()
	p.Stop()

	assert.True(t, sawStop)
	_, ok, err := p.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestGenerate_PanicBecomesError(t *testing.T) {
	p := Generate(func(yield func(Item) bool) error {
		panic("generator exploded")
	})

	_, ok, err := p.Next()
	assert.False(t, ok)
	assert.ErrorContains(t, err, "generator exploded")
	p.Stop()
}

func TestSolutions_PassesItemsThrough(t *testing.T) {
	items, err := collect(Solutions(1, Cut(), Solution{Value: 2}))
	require.NoError(t, err)
	assert.Equal(t, []Item{Solution{Value: 1}, CutMarker{}, Solution{Value: 2}}, items)
}

func TestFromSeq(t *testing.T) {
	seq := func(yield func(any) bool) {
		_ = yield("x") && yield(Cut()) && yield("y")
	}
	items, err := collect(FromSeq(seq))
	require.NoError(t, err)
	assert.Equal(t, []Item{Solution{Value: "x"}, CutMarker{}, Solution{Value: "y"}}, items)
}

func TestFailWith(t *testing.T) {
	boom := errors.New("boom")
	items, err := collect(FailWith(boom))
	assert.Empty(t, items)
	assert.ErrorIs(t, err, boom)
}
