package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// describeNumber registers three clauses: even-guarded, positive-guarded
// with an odd check in the body, and a guardless catch-all. Each body
// appends its label to ran.
func describeNumber(reg *Registry, ran *[]string) {
	isEven := When(func(a Args) bool {
		n, ok := a.Int(0)
		return ok && n > 0 && n%2 == 0
	})
	isPositive := When(func(a Args) bool {
		n, ok := a.Int(0)
		return ok && n > 0
	})

	reg.MustRegister(FirstSuccess, "describe_number", Clause{
		Label: "positive even",
		Guard: isPositive,
		Body: func(a Args) error {
			n, _ := a.Int(0)
			if err := Check(n%2 == 0, "not even"); err != nil {
				return err
			}
			*ran = append(*ran, "positive even")
			return nil
		},
	})
	reg.MustRegister(FirstSuccess, "describe_number", Clause{
		Label: "positive odd",
		Guard: Guard(func(a Args) (bool, error) {
			ok, err := isPositive(a)
			if !ok || err != nil {
				return ok, err
			}
			even, _ := isEven(a)
			return !even, nil
		}),
		Body: func(Args) error {
			*ran = append(*ran, "positive odd")
			return nil
		},
	})
	reg.MustRegister(FirstSuccess, "describe_number", Clause{
		Label: "other",
		Body: func(Args) error {
			*ran = append(*ran, "other")
			return nil
		},
	})
}

func TestFirstSuccess_DescribeNumber(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		ran     []string
		entered []int
		skipped int
	}{
		{"even takes first clause", 4, []string{"positive even"}, []int{0}, 0},
		{"odd fails check then second clause", 7, []string{"positive odd"}, []int{0, 1}, 0},
		{"negative reaches catch-all", -5, []string{"other"}, []int{2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			var ran []string
			describeNumber(reg, &ran)

			log := &TraceLog{}
			e := New(reg, WithTracer(log), WithLogger(discardLogger()))

			ok, err := e.ResolveFirstSuccess("describe_number", tt.n)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.ran, ran)
			assert.Equal(t, tt.entered, log.Entered())
			assert.Len(t, log.Filter(TraceGuardSkip), tt.skipped)
		})
	}
}

func TestFirstSuccess_StopsAtFirstSuccess(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	for i := 0; i < 3; i++ {
		reg.MustRegister(FirstSuccess, "p", Clause{
			Guard: func(Args) (bool, error) { calls++; return true, nil },
			Body:  okBody,
		})
	}

	ok, err := New(reg, WithLogger(discardLogger())).ResolveFirstSuccess("p")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls, "later guards must not be evaluated")
}

func TestFirstSuccess_AllFail(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(FirstSuccess, "p", Clause{Body: func(Args) error { return Fail("first") }})
	reg.MustRegister(FirstSuccess, "p", Clause{Guard: When(func(Args) bool { return false }), Body: okBody})
	reg.MustRegister(FirstSuccess, "p", Clause{Body: func(Args) error { return errors.New("unexpected") }})
	reg.MustRegister(FirstSuccess, "p", Clause{Body: func(Args) error { panic("oops") }})

	log := &TraceLog{}
	ok, err := New(reg, WithTracer(log), WithLogger(discardLogger())).ResolveFirstSuccess("p")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []int{0, 2, 3}, log.Entered())
	assert.Len(t, log.Filter(TraceClauseFail), 1)
	assert.Len(t, log.Filter(TraceClauseError), 2)
}

func TestFirstSuccess_UnexpectedErrorThenSuccess(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(FirstSuccess, "p", Clause{Body: func(Args) error { return errors.New("boom") }})
	reg.MustRegister(FirstSuccess, "p", Clause{Body: okBody})

	ok, err := New(reg, WithLogger(discardLogger())).ResolveFirstSuccess("p")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFirstSuccess_UnknownPredicate(t *testing.T) {
	ok, err := New(NewRegistry(), WithLogger(discardLogger())).ResolveFirstSuccess("nothing")
	assert.False(t, ok)
	assert.True(t, IsUnknownPredicate(err))
}
