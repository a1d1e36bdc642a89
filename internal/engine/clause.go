package engine

// Args are the call arguments of a resolution. They are opaque to the
// engine and passed unchanged to every guard and body.
type Args []any

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// At returns argument i, or nil if i is out of range.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Int returns argument i as an int and whether it was one.
// Any Go integer type is accepted.
func (a Args) Int(i int) (int64, bool) {
	switch v := a.At(i).(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

// Guard decides whether a clause is attempted for the given arguments.
// Returning false, an error, or panicking all mean "skip".
type Guard func(args Args) (bool, error)

// When adapts a plain boolean function into a Guard.
func When(fn func(args Args) bool) Guard {
	return func(args Args) (bool, error) {
		return fn(args), nil
	}
}

// Body is the clause body of FirstSuccess and AllRequired predicates.
// A nil return means the clause completed; a Failure means it failed.
type Body func(args Args) error

// Search is the clause body of Backtracking predicates. It returns the
// lazy Producer whose items the resolver drains.
type Search func(args Args) Producer

// Clause is one guarded implementation of a predicate name.
//
// Exactly one of Body or Search must be set, matching the kind the clause
// is registered under. A clause is immutable once registered.
type Clause struct {
	// Label is an optional diagnostic name shown in logs and traces.
	Label string

	// Guard is optional; nil always passes.
	Guard Guard

	Body   Body
	Search Search
}

// ClauseHandle identifies a registered clause.
type ClauseHandle struct {
	Kind  Kind
	Name  string
	Index int // position in the clause list, 0-based
}
