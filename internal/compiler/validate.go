package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/predicate/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	// PredicateSpec errors (E201-E209)
	ErrPredicateNameEmpty = "E201" // name is required
	ErrUnknownKind        = "E202" // kind is not one of the three disciplines
	ErrNoClauses          = "E203" // at least one clause required
	ErrUnknownOp          = "E204" // condition op not recognised
	ErrOpArity            = "E205" // right operand missing or unexpected
	ErrInvalidOperand     = "E206" // operand has zero or several sources, or a negative arg
	ErrLoopRefOutsideEach = "E207" // elem/index used outside an each loop
	ErrStepNotAllowed     = "E208" // yield/cut/solve outside a backtracking predicate
	ErrNullConstant       = "E209" // null constants are not hashable

	// Predicate set errors (E210-E219)
	ErrDuplicatePredicate = "E210" // same name declared twice
	ErrUnknownSolveTarget = "E211" // solve refers to an undeclared predicate
	ErrSolveTargetKind    = "E212" // solve refers to a non-backtracking predicate
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled predicate against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.PredicateSpec:
		return validatePredicate(spec)
	case ir.PredicateSpec:
		return validatePredicate(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateSet validates every predicate and the references between them:
// duplicate names and solve targets.
func ValidateSet(specs []*ir.PredicateSpec) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ir.PredicateSpec, len(specs))
	for _, spec := range specs {
		errs = append(errs, validatePredicate(spec)...)

		if _, dup := byName[spec.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   "predicate." + spec.Name,
				Message: fmt.Sprintf("duplicate predicate name: %q", spec.Name),
				Code:    ErrDuplicatePredicate,
			})
			continue
		}
		byName[spec.Name] = spec
	}

	for _, spec := range specs {
		for _, ref := range solveRefs(spec) {
			target, ok := byName[ref.name]
			switch {
			case !ok:
				errs = append(errs, ValidationError{
					Field:   ref.field,
					Message: fmt.Sprintf("solve refers to undeclared predicate %q", ref.name),
					Code:    ErrUnknownSolveTarget,
				})
			case target.Kind != ir.KindBacktracking:
				errs = append(errs, ValidationError{
					Field:   ref.field,
					Message: fmt.Sprintf("solve target %q is %s, not backtracking", ref.name, target.Kind),
					Code:    ErrSolveTargetKind,
				})
			}
		}
	}

	return errs
}

// validatePredicate validates one predicate declaration.
func validatePredicate(spec *ir.PredicateSpec) []ValidationError {
	var errs []ValidationError
	field := "predicate." + spec.Name

	// E201: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "predicate",
			Message: "predicate name is required and must be non-empty",
			Code:    ErrPredicateNameEmpty,
		})
	}

	// E202: kind must be known
	if !ir.ValidKinds[spec.Kind] {
		errs = append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown kind %q (must be first_success, all_required or backtracking)", spec.Kind),
			Code:    ErrUnknownKind,
		})
	}

	// E203: a predicate with no clauses can never be resolved
	if len(spec.Clauses) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".clauses",
			Message: "at least one clause is required",
			Code:    ErrNoClauses,
		})
	}

	v := &stepValidator{backtracking: spec.Kind == ir.KindBacktracking}
	for i, clause := range spec.Clauses {
		clauseField := fmt.Sprintf("%s.clauses[%d]", field, i)
		for j, cond := range clause.Guard {
			v.condition(cond, fmt.Sprintf("%s.guard[%d]", clauseField, j), 0)
		}
		v.steps(clause.Body, clauseField+".body", 0)
	}
	return append(errs, v.errs...)
}

// stepValidator walks clause bodies, tracking each-loop depth.
type stepValidator struct {
	backtracking bool
	errs         []ValidationError
}

func (v *stepValidator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *stepValidator) steps(steps []ir.Step, field string, depth int) {
	for i, step := range steps {
		v.step(step, fmt.Sprintf("%s[%d]", field, i), depth)
	}
}

func (v *stepValidator) step(step ir.Step, field string, depth int) {
	switch s := step.(type) {
	case ir.CheckStep:
		v.condition(s.Cond, field+".check", depth)
	case ir.FailStep:
	case ir.SayStep:
		v.template(s.Text, field+".say", depth)
	case ir.YieldStep:
		v.backtrackingOnly("yield", field)
		v.operand(s.Value, field+".yield", depth)
	case ir.CutStep:
		v.backtrackingOnly("cut", field)
	case ir.EachStep:
		v.operand(s.Over, field+".each.over", depth)
		v.steps(s.Body, field+".each.body", depth+1)
	case ir.WhenStep:
		for i, cond := range s.Cond {
			v.condition(cond, fmt.Sprintf("%s.when.cond[%d]", field, i), depth)
		}
		v.steps(s.Then, field+".when.then", depth)
		v.steps(s.Else, field+".when.else", depth)
	case ir.SolveStep:
		v.backtrackingOnly("solve", field)
		for i, arg := range s.Args {
			v.operand(arg, fmt.Sprintf("%s.solve.args[%d]", field, i), depth)
		}
	}
}

func (v *stepValidator) backtrackingOnly(name, field string) {
	if !v.backtracking {
		v.add(field, ErrStepNotAllowed, "%s is only allowed in backtracking predicates", name)
	}
}

func (v *stepValidator) condition(cond ir.Condition, field string, depth int) {
	switch {
	case ir.UnaryOps[cond.Op]:
		if cond.Right != nil {
			v.add(field+".right", ErrOpArity, "op %q takes no right operand", cond.Op)
		}
	case ir.BinaryOps[cond.Op]:
		if cond.Right == nil {
			v.add(field+".right", ErrOpArity, "op %q requires a right operand", cond.Op)
		}
	default:
		v.add(field+".op", ErrUnknownOp, "unknown op %q", cond.Op)
	}

	v.operand(cond.Left, field+".left", depth)
	if cond.Right != nil {
		v.operand(*cond.Right, field+".right", depth)
	}
}

func (v *stepValidator) operand(op ir.Operand, field string, depth int) {
	if n := op.Sources(); n != 1 {
		v.add(field, ErrInvalidOperand, "operand needs exactly one source, found %d", n)
	}
	if op.Arg != nil && *op.Arg < 0 {
		v.add(field+".arg", ErrInvalidOperand, "argument index must be >= 0, got %d", *op.Arg)
	}
	if (op.Elem || op.Index) && depth == 0 {
		v.add(field, ErrLoopRefOutsideEach, "elem and index are only available inside each")
	}
	if op.Value != nil && containsNull(op.Value) {
		v.add(field+".value", ErrNullConstant, "null constants are not allowed")
	}
	if op.Text != "" {
		v.template(op.Text, field+".text", depth)
	}
	if op.Fenced != "" && op.Braced {
		v.add(field, ErrInvalidOperand, "fenced and braced cannot be combined")
	}
	if (op.Fenced != "" || op.Braced) && (op.Add != 0 || op.Mul != 0) {
		v.add(field, ErrInvalidOperand, "add/mul cannot follow a string extraction")
	}
	for i, elem := range op.List {
		v.operand(elem, fmt.Sprintf("%s.list[%d]", field, i), depth)
	}
}

// template checks placeholders: {elem} and {index} need an enclosing each.
func (v *stepValidator) template(text, field string, depth int) {
	if depth > 0 {
		return
	}
	if strings.Contains(text, "{elem}") || strings.Contains(text, "{index}") {
		v.add(field, ErrLoopRefOutsideEach, "{elem} and {index} are only available inside each")
	}
}

func containsNull(v ir.IRValue) bool {
	switch val := v.(type) {
	case ir.IRNull:
		return true
	case ir.IRArray:
		for _, elem := range val {
			if containsNull(elem) {
				return true
			}
		}
	case ir.IRObject:
		for _, elem := range val {
			if containsNull(elem) {
				return true
			}
		}
	}
	return false
}

// solveRef is one solve step found in a predicate body.
type solveRef struct {
	name  string
	field string
}

func solveRefs(spec *ir.PredicateSpec) []solveRef {
	var refs []solveRef
	var walk func(steps []ir.Step, field string)
	walk = func(steps []ir.Step, field string) {
		for i, step := range steps {
			f := fmt.Sprintf("%s[%d]", field, i)
			switch s := step.(type) {
			case ir.SolveStep:
				refs = append(refs, solveRef{name: s.Predicate, field: f + ".solve.predicate"})
			case ir.EachStep:
				walk(s.Body, f+".each.body")
			case ir.WhenStep:
				walk(s.Then, f+".when.then")
				walk(s.Else, f+".when.else")
			}
		}
	}
	for i, clause := range spec.Clauses {
		walk(clause.Body, fmt.Sprintf("predicate.%s.clauses[%d].body", spec.Name, i))
	}
	return refs
}
