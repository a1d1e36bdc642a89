package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/ir"
)

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompilePredicate_DescribeNumber(t *testing.T) {
	v := compileString(t, `
		predicate: describe_number: {
			kind: "first_success"
			doc:  "Describes a number"
			clauses: [
				{
					label: "positive even"
					guard: [{op: "gt", left: {arg: 0}, right: 0}]
					body: [
						{check: {op: "even", left: {arg: 0}}, message: "not even"},
						{say: "{0} is positive and even"},
					]
				},
				{
					label: "positive odd"
					guard: [{op: "gt", left: {arg: 0}, right: 0}, {op: "odd", left: {arg: 0}}]
					body: [{say: "{0} is positive and odd"}]
				},
				{
					label: "other"
					body: [{say: "{0} is neither"}]
				},
			]
		}
	`)

	spec, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.describe_number")))
	require.NoError(t, err)

	assert.Equal(t, "describe_number", spec.Name)
	assert.Equal(t, ir.KindFirstSuccess, spec.Kind)
	assert.Equal(t, "Describes a number", spec.Doc)
	require.Len(t, spec.Clauses, 3)

	first := spec.Clauses[0]
	assert.Equal(t, "positive even", first.Label)
	require.Len(t, first.Guard, 1)
	assert.Equal(t, ir.OpGt, first.Guard[0].Op)
	require.NotNil(t, first.Guard[0].Left.Arg)
	assert.Equal(t, 0, *first.Guard[0].Left.Arg)
	require.NotNil(t, first.Guard[0].Right)
	assert.Equal(t, ir.IRInt(0), first.Guard[0].Right.Value)

	require.Len(t, first.Body, 2)
	check, ok := first.Body[0].(ir.CheckStep)
	require.True(t, ok)
	assert.Equal(t, ir.OpEven, check.Cond.Op)
	assert.Nil(t, check.Cond.Right)
	assert.Equal(t, "not even", check.Message)
	assert.Equal(t, ir.SayStep{Text: "{0} is positive and even"}, first.Body[1])

	assert.Empty(t, spec.Clauses[2].Guard)
}

func TestCompilePredicate_BacktrackingSteps(t *testing.T) {
	v := compileString(t, `
		predicate: find_first_positive_even: {
			kind: "prolog"
			clauses: [{
				body: [{
					each: {
						over: {arg: 0}
						body: [{
							when: {
								cond: [{op: "gt", left: {elem: true}, right: 0}, {op: "even", left: {elem: true}}]
								then: [{yield: {elem: true}}, {cut: true}]
								else: [{fail: "not a positive even number"}]
							}
						}]
					}
				}]
			}]
		}
	`)

	spec, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.find_first_positive_even")))
	require.NoError(t, err)
	assert.Equal(t, ir.KindBacktracking, spec.Kind, "prolog is an alias")

	each, ok := spec.Clauses[0].Body[0].(ir.EachStep)
	require.True(t, ok)
	require.NotNil(t, each.Over.Arg)

	when, ok := each.Body[0].(ir.WhenStep)
	require.True(t, ok)
	assert.Len(t, when.Cond, 2)
	assert.Equal(t, []ir.Step{ir.YieldStep{Value: ir.Operand{Elem: true}}, ir.CutStep{}}, when.Then)
	assert.Equal(t, []ir.Step{ir.FailStep{Message: "not a positive even number"}}, when.Else)
}

func TestCompilePredicate_OperandForms(t *testing.T) {
	v := compileString(t, `
		predicate: p: {
			kind: "backtracking"
			clauses: [{
				body: [
					{yield: {list: [{arg: 1}, {index: true}]}},
					{yield: {arg: 0, mul: 10, add: 1}},
					{yield: {text: "Fallback solution for {1}"}},
					{yield: {value: {a: [1, "x"]}}},
					{yield: "bare"},
					{solve: {predicate: "p", args: [{elem: true}, {arg: 1}]}},
					{fail: true},
				]
			}]
		}
	`)

	spec, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.p")))
	require.NoError(t, err)
	body := spec.Clauses[0].Body
	require.Len(t, body, 7)

	list := body[0].(ir.YieldStep).Value
	require.Len(t, list.List, 2)
	assert.True(t, list.List[1].Index)

	scaled := body[1].(ir.YieldStep).Value
	assert.Equal(t, int64(10), scaled.Mul)
	assert.Equal(t, int64(1), scaled.Add)

	assert.Equal(t, "Fallback solution for {1}", body[2].(ir.YieldStep).Value.Text)
	assert.Equal(t, ir.IRObject{"a": ir.IRArray{ir.IRInt(1), ir.IRString("x")}}, body[3].(ir.YieldStep).Value.Value)
	assert.Equal(t, ir.IRString("bare"), body[4].(ir.YieldStep).Value.Value)

	solve := body[5].(ir.SolveStep)
	assert.Equal(t, "p", solve.Predicate)
	assert.Len(t, solve.Args, 2)

	assert.Equal(t, ir.FailStep{}, body[6])
}

func TestCompilePredicate_Extraction(t *testing.T) {
	v := compileString(t, `
		predicate: p: {
			kind: "first_success"
			clauses: [{
				guard: [{op: "len_eq", left: {arg: 0, fenced: "json"}, right: 0, not: true}]
				body: [{each: {over: {list: [{arg: 0, braced: true}]}, body: [{say: "{elem}"}]}}]
			}]
		}
	`)

	spec, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.p")))
	require.NoError(t, err)
	require.Empty(t, Validate(spec))

	guard := spec.Clauses[0].Guard[0]
	assert.Equal(t, "json", guard.Left.Fenced)
	assert.True(t, guard.Not)

	each := spec.Clauses[0].Body[0].(ir.EachStep)
	assert.True(t, each.Over.List[0].Braced)
	assert.Equal(t, ir.IRString("json"), guard.Left.ToIR()["fenced"])
}

func TestCompilePredicate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"missing kind", `predicate: p: {clauses: []}`, "kind is required"},
		{"missing clauses", `predicate: p: {kind: "first_success"}`, "clauses are required"},
		{"missing op", `predicate: p: {kind: "first_success", clauses: [{guard: [{left: {arg: 0}}]}]}`, "op is required"},
		{"two step keys", `predicate: p: {kind: "backtracking", clauses: [{body: [{say: "x", cut: true}]}]}`, "exactly one of"},
		{"no step key", `predicate: p: {kind: "backtracking", clauses: [{body: [{message: "x"}]}]}`, "exactly one of"},
		{"cut false", `predicate: p: {kind: "backtracking", clauses: [{body: [{cut: false}]}]}`, "cut must be true"},
		{"float constant", `predicate: p: {kind: "first_success", clauses: [{guard: [{op: "gt", left: {arg: 0}, right: 1.5}]}]}`, "float"},
		{"ambiguous operand", `predicate: p: {kind: "backtracking", clauses: [{body: [{yield: {arg: 0, elem: true}}]}]}`, "exactly one of arg"},
		{"each without over", `predicate: p: {kind: "backtracking", clauses: [{body: [{each: {body: []}}]}]}`, "over is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			_, err := CompilePredicate(v.LookupPath(cue.ParsePath("predicate.p")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)

			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileAll_DeclarationOrder(t *testing.T) {
	v := compileString(t, `
		predicate: zeta: {kind: "first_success", clauses: [{}]}
		predicate: alpha: {kind: "all_required", clauses: [{}]}
		predicate: "with-dash": {kind: "backtracking", clauses: [{body: [{yield: 1}]}]}
	`)

	specs, err := CompileAll(v)
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "zeta", specs[0].Name)
	assert.Equal(t, "alpha", specs[1].Name)
	assert.Equal(t, "with-dash", specs[2].Name, "quoted labels are unquoted")
}

func TestCompileAll_NoPredicates(t *testing.T) {
	specs, err := CompileAll(compileString(t, `other: 1`))
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "predicate.p.kind", Message: "kind is required"}
	assert.Equal(t, "predicate.p.kind: kind is required", err.Error())
}
