package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/predicate/internal/ir"
)

// stepKeys are the keys that select a step kind, in lookup order.
var stepKeys = []string{"check", "fail", "say", "yield", "cut", "each", "when", "solve"}

// CompileAll compiles every predicate declared under the top-level
// `predicate` field of v, in declaration order.
func CompileAll(v cue.Value) ([]*ir.PredicateSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	predVal := v.LookupPath(cue.ParsePath("predicate"))
	if !predVal.Exists() {
		return nil, nil
	}

	iter, err := predVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*ir.PredicateSpec
	for iter.Next() {
		spec, err := CompilePredicate(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CompilePredicate parses a CUE value into a PredicateSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the predicate struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`predicate: describe_number: { kind: "first_success", clauses: [...] }`)
//	spec, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.describe_number")))
func CompilePredicate(v cue.Value) (*ir.PredicateSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.PredicateSpec{}

	// Predicate name is the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquoteLabel(labels[len(labels)-1].String())
	}
	field := "predicate." + spec.Name

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".kind",
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Kind = normalizeKind(kind)

	if docVal := v.LookupPath(cue.ParsePath("doc")); docVal.Exists() {
		doc, err := docVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Doc = doc
	}

	clausesVal := v.LookupPath(cue.ParsePath("clauses"))
	if !clausesVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".clauses",
			Message: "clauses are required",
			Pos:     v.Pos(),
		}
	}
	clauseIter, err := clausesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; clauseIter.Next(); i++ {
		clause, err := parseClause(clauseIter.Value(), fmt.Sprintf("%s.clauses[%d]", field, i))
		if err != nil {
			return nil, err
		}
		spec.Clauses = append(spec.Clauses, clause)
	}

	return spec, nil
}

// normalizeKind maps the declaration-style aliases onto kind names.
func normalizeKind(kind string) string {
	switch kind {
	case "predicate":
		return ir.KindFirstSuccess
	case "principles":
		return ir.KindAllRequired
	case "prolog":
		return ir.KindBacktracking
	default:
		return kind
	}
}

func parseClause(v cue.Value, field string) (ir.ClauseSpec, error) {
	var clause ir.ClauseSpec

	if labelVal := v.LookupPath(cue.ParsePath("label")); labelVal.Exists() {
		label, err := labelVal.String()
		if err != nil {
			return clause, formatCUEError(err)
		}
		clause.Label = label
	}

	if guardVal := v.LookupPath(cue.ParsePath("guard")); guardVal.Exists() {
		conds, err := parseConditions(guardVal, field+".guard")
		if err != nil {
			return clause, err
		}
		clause.Guard = conds
	}

	// A clause without body is allowed: it completes as soon as its guard passes.
	if bodyVal := v.LookupPath(cue.ParsePath("body")); bodyVal.Exists() {
		steps, err := parseSteps(bodyVal, field+".body")
		if err != nil {
			return clause, err
		}
		clause.Body = steps
	}

	return clause, nil
}

func parseConditions(v cue.Value, field string) ([]ir.Condition, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of conditions", Pos: v.Pos()}
	}

	var conds []ir.Condition
	for i := 0; iter.Next(); i++ {
		cond, err := parseCondition(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func parseCondition(v cue.Value, field string) (ir.Condition, error) {
	var cond ir.Condition

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return cond, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return cond, formatCUEError(err)
	}
	cond.Op = op

	leftVal := v.LookupPath(cue.ParsePath("left"))
	if !leftVal.Exists() {
		return cond, &CompileError{Field: field + ".left", Message: "left operand is required", Pos: v.Pos()}
	}
	cond.Left, err = parseOperand(leftVal, field+".left")
	if err != nil {
		return cond, err
	}

	if rightVal := v.LookupPath(cue.ParsePath("right")); rightVal.Exists() {
		right, err := parseOperand(rightVal, field+".right")
		if err != nil {
			return cond, err
		}
		cond.Right = &right
	}

	if notVal := v.LookupPath(cue.ParsePath("not")); notVal.Exists() {
		not, err := notVal.Bool()
		if err != nil {
			return cond, formatCUEError(err)
		}
		cond.Not = not
	}

	return cond, nil
}

// parseOperand accepts either a reference struct ({arg: 0}, {elem: true},
// {text: "..."}, ...) or a bare scalar/list, which becomes a constant.
func parseOperand(v cue.Value, field string) (ir.Operand, error) {
	var op ir.Operand

	if v.IncompleteKind() != cue.StructKind {
		val, err := decodeValue(v, field)
		if err != nil {
			return op, err
		}
		op.Value = val
		return op, nil
	}

	if argVal := v.LookupPath(cue.ParsePath("arg")); argVal.Exists() {
		n, err := argVal.Int64()
		if err != nil {
			return op, formatCUEError(err)
		}
		idx := int(n)
		op.Arg = &idx
	}
	if elemVal := v.LookupPath(cue.ParsePath("elem")); elemVal.Exists() {
		b, err := elemVal.Bool()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Elem = b
	}
	if indexVal := v.LookupPath(cue.ParsePath("index")); indexVal.Exists() {
		b, err := indexVal.Bool()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Index = b
	}
	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		val, err := decodeValue(valueVal, field+".value")
		if err != nil {
			return op, err
		}
		op.Value = val
	}
	if textVal := v.LookupPath(cue.ParsePath("text")); textVal.Exists() {
		s, err := textVal.String()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Text = s
	}
	if listVal := v.LookupPath(cue.ParsePath("list")); listVal.Exists() {
		iter, err := listVal.List()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.List = []ir.Operand{}
		for i := 0; iter.Next(); i++ {
			elem, err := parseOperand(iter.Value(), fmt.Sprintf("%s.list[%d]", field, i))
			if err != nil {
				return op, err
			}
			op.List = append(op.List, elem)
		}
	}
	if fencedVal := v.LookupPath(cue.ParsePath("fenced")); fencedVal.Exists() {
		s, err := fencedVal.String()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Fenced = s
	}
	if bracedVal := v.LookupPath(cue.ParsePath("braced")); bracedVal.Exists() {
		b, err := bracedVal.Bool()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Braced = b
	}
	if addVal := v.LookupPath(cue.ParsePath("add")); addVal.Exists() {
		n, err := addVal.Int64()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Add = n
	}
	if mulVal := v.LookupPath(cue.ParsePath("mul")); mulVal.Exists() {
		n, err := mulVal.Int64()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Mul = n
	}

	if op.Sources() != 1 {
		return op, &CompileError{
			Field:   field,
			Message: "operand needs exactly one of arg, elem, index, value, text, list",
			Pos:     v.Pos(),
		}
	}
	return op, nil
}

// decodeValue converts a concrete CUE value into an IRValue.
// Floats are rejected.
func decodeValue(v cue.Value, field string) (ir.IRValue, error) {
	if k := v.IncompleteKind(); k == cue.FloatKind || k == cue.NumberKind {
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	}
	var raw any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	val, err := ir.FromAny(raw)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return val, nil
}

func parseSteps(v cue.Value, field string) ([]ir.Step, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of steps", Pos: v.Pos()}
	}

	steps := []ir.Step{}
	for i := 0; iter.Next(); i++ {
		step, err := parseStep(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(v cue.Value, field string) (ir.Step, error) {
	var found []string
	for _, key := range stepKeys {
		if v.LookupPath(cue.ParsePath(key)).Exists() {
			found = append(found, key)
		}
	}
	if len(found) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("step must have exactly one of %v, found %v", stepKeys, found),
			Pos:     v.Pos(),
		}
	}

	key := found[0]
	body := v.LookupPath(cue.ParsePath(key))
	field = field + "." + key

	switch key {
	case "check":
		cond, err := parseCondition(body, field)
		if err != nil {
			return nil, err
		}
		step := ir.CheckStep{Cond: cond}
		if msgVal := v.LookupPath(cue.ParsePath("message")); msgVal.Exists() {
			msg, err := msgVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			step.Message = msg
		}
		return step, nil

	case "fail":
		// fail: "message" or fail: true
		if msg, err := body.String(); err == nil {
			return ir.FailStep{Message: msg}, nil
		}
		if _, err := body.Bool(); err != nil {
			return nil, &CompileError{Field: field, Message: "must be a message string or true", Pos: body.Pos()}
		}
		return ir.FailStep{}, nil

	case "say":
		text, err := body.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.SayStep{Text: text}, nil

	case "yield":
		operand, err := parseOperand(body, field)
		if err != nil {
			return nil, err
		}
		return ir.YieldStep{Value: operand}, nil

	case "cut":
		b, err := body.Bool()
		if err != nil || !b {
			return nil, &CompileError{Field: field, Message: "cut must be true", Pos: body.Pos()}
		}
		return ir.CutStep{}, nil

	case "each":
		overVal := body.LookupPath(cue.ParsePath("over"))
		if !overVal.Exists() {
			return nil, &CompileError{Field: field + ".over", Message: "over is required", Pos: body.Pos()}
		}
		over, err := parseOperand(overVal, field+".over")
		if err != nil {
			return nil, err
		}
		steps, err := parseOptionalSteps(body, "body", field)
		if err != nil {
			return nil, err
		}
		return ir.EachStep{Over: over, Body: steps}, nil

	case "when":
		condVal := body.LookupPath(cue.ParsePath("cond"))
		if !condVal.Exists() {
			return nil, &CompileError{Field: field + ".cond", Message: "cond is required", Pos: body.Pos()}
		}
		conds, err := parseConditions(condVal, field+".cond")
		if err != nil {
			return nil, err
		}
		then, err := parseOptionalSteps(body, "then", field)
		if err != nil {
			return nil, err
		}
		els, err := parseOptionalSteps(body, "else", field)
		if err != nil {
			return nil, err
		}
		return ir.WhenStep{Cond: conds, Then: then, Else: els}, nil

	case "solve":
		predVal := body.LookupPath(cue.ParsePath("predicate"))
		if !predVal.Exists() {
			return nil, &CompileError{Field: field + ".predicate", Message: "predicate is required", Pos: body.Pos()}
		}
		name, err := predVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		step := ir.SolveStep{Predicate: name}
		if argsVal := body.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			iter, err := argsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for i := 0; iter.Next(); i++ {
				arg, err := parseOperand(iter.Value(), fmt.Sprintf("%s.args[%d]", field, i))
				if err != nil {
					return nil, err
				}
				step.Args = append(step.Args, arg)
			}
		}
		return step, nil
	}

	return nil, &CompileError{Field: field, Message: "unknown step", Pos: v.Pos()}
}

// parseOptionalSteps parses the step list under key, or returns nil if absent.
func parseOptionalSteps(v cue.Value, key, field string) ([]ir.Step, error) {
	stepsVal := v.LookupPath(cue.ParsePath(key))
	if !stepsVal.Exists() {
		return nil, nil
	}
	return parseSteps(stepsVal, field+"."+key)
}

func unquoteLabel(label string) string {
	if s, err := strconv.Unquote(label); err == nil {
		return s
	}
	return label
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
