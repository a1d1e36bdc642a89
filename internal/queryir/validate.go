package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/predicate/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks that a query only names known sources and columns, and
// that literals are usable as SQL parameters.
func Validate(q Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(q)
	return ValidationResult{Valid: len(v.errors) == 0, Errors: v.errors}
}

type validator struct {
	source string
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	var sel Select
	switch query := q.(type) {
	case Select:
		sel = query
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		sel = *query
	default:
		v.addError("unsupported query type: %T", q)
		return
	}

	if _, ok := Columns[sel.From]; !ok {
		v.addError("unknown source %q", sel.From)
		return
	}
	v.source = sel.From

	for _, col := range sel.OrderBy {
		v.checkField(col)
	}
	if sel.Limit < 0 {
		v.addError("limit must be >= 0, got %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case Compare:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Value)
		switch pred.Op {
		case OpLt, OpLe, OpGt, OpGe, OpNe:
		default:
			v.addError("unknown comparison %q on %s", pred.Op, pred.Field)
		}
	case *Compare:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addError("unsupported predicate type: %T", p)
	}
}

func (v *validator) checkField(field string) {
	if !slices.Contains(Columns[v.source], field) {
		v.addError("unknown column %q for %s", field, v.source)
	}
}

func (v *validator) checkValue(field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil, ir.IRNull:
		v.addError("%s: null never equals anything", field)
	default:
		v.addError("%s: only scalar values can be compared, got %s", field, ir.TypeName(val))
	}
}
