package engine

import "fmt"

// Kind selects the resolution discipline of a predicate name.
type Kind int

const (
	// FirstSuccess resolves to true on the first clause that completes.
	FirstSuccess Kind = iota + 1
	// AllRequired resolves to true only if every clause passes in order.
	AllRequired
	// Backtracking collects solutions from every clause until a cut.
	Backtracking
)

var kindNames = map[Kind]string{
	FirstSuccess: "first_success",
	AllRequired:  "all_required",
	Backtracking: "backtracking",
}

// String returns the snake_case name used in specs, traces and the CLI.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the three disciplines.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a snake_case kind name into a Kind.
// The aliases "predicate", "principles" and "prolog" are accepted as well.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "first_success", "predicate":
		return FirstSuccess, nil
	case "all_required", "principles":
		return AllRequired, nil
	case "backtracking", "prolog":
		return Backtracking, nil
	default:
		return 0, fmt.Errorf("unknown resolution kind %q", s)
	}
}
