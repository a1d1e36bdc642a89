package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
)

// frame is one level of each-loop iteration.
type frame struct {
	elem  ir.IRValue
	index int
}

// env is the evaluation environment of one clause execution.
type env struct {
	args   []ir.IRValue
	frames []frame
}

func newEnv(args engine.Args) (*env, error) {
	vals, err := ir.FromAnySlice(args)
	if err != nil {
		return nil, err
	}
	return &env{args: vals}, nil
}

// push returns a child environment with one more loop frame.
func (e *env) push(elem ir.IRValue, index int) *env {
	frames := make([]frame, len(e.frames), len(e.frames)+1)
	copy(frames, e.frames)
	return &env{args: e.args, frames: append(frames, frame{elem: elem, index: index})}
}

func (e *env) arg(i int) (ir.IRValue, error) {
	if i < 0 || i >= len(e.args) {
		return nil, fmt.Errorf("argument %d out of range (%d arguments)", i, len(e.args))
	}
	return e.args[i], nil
}

func (e *env) top() (frame, error) {
	if len(e.frames) == 0 {
		return frame{}, fmt.Errorf("elem and index are only available inside each")
	}
	return e.frames[len(e.frames)-1], nil
}

// operand evaluates an operand reference.
func (e *env) operand(op ir.Operand) (ir.IRValue, error) {
	v, err := e.source(op)
	if err != nil {
		return nil, err
	}
	if op.Fenced != "" || op.Braced {
		if v, err = extract(op, v); err != nil {
			return nil, err
		}
	}
	if op.Add == 0 && op.Mul == 0 {
		return v, nil
	}

	n, ok := v.(ir.IRInt)
	if !ok {
		return nil, fmt.Errorf("add/mul need an int, got %s", ir.TypeName(v))
	}
	if op.Mul != 0 {
		n *= ir.IRInt(op.Mul)
	}
	return n + ir.IRInt(op.Add), nil
}

func (e *env) source(op ir.Operand) (ir.IRValue, error) {
	switch {
	case op.Arg != nil:
		return e.arg(*op.Arg)
	case op.Elem:
		f, err := e.top()
		return f.elem, err
	case op.Index:
		f, err := e.top()
		return ir.IRInt(f.index), err
	case op.Value != nil:
		return op.Value, nil
	case op.Text != "":
		s, err := e.render(op.Text)
		return ir.IRString(s), err
	case op.List != nil:
		out := make(ir.IRArray, len(op.List))
		for i, elem := range op.List {
			v, err := e.operand(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("operand has no value source")
	}
}

// fence closes every fenced block.
const fence = "```"

// extract applies the Fenced or Braced extraction of op to a string.
func extract(op ir.Operand, v ir.IRValue) (ir.IRValue, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return nil, fmt.Errorf("fenced/braced need a string, got %s", ir.TypeName(v))
	}
	if op.Braced {
		return ir.IRString(braced(string(s))), nil
	}
	return fencedBlocks(string(s), fence+op.Fenced), nil
}

func fencedBlocks(s, open string) ir.IRArray {
	blocks := ir.IRArray{}
	for {
		start := strings.Index(s, open)
		if start < 0 {
			return blocks
		}
		s = s[start+len(open):]
		end := strings.Index(s, fence)
		if end < 0 {
			return blocks
		}
		blocks = append(blocks, ir.IRString(strings.TrimSpace(s[:end])))
		// the closing fence may itself open the next block
		s = s[end:]
	}
}

func braced(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// render substitutes {N}, {elem} and {index} in a template. Any other
// brace text is copied unchanged.
func (e *env) render(tmpl string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end += open

		b.WriteString(rest[:open])
		name := rest[open+1 : end]
		v, ok, err := e.placeholder(name)
		if err != nil {
			return "", err
		}
		if ok {
			b.WriteString(ir.Render(v))
		} else {
			b.WriteString(rest[open : end+1])
		}
		rest = rest[end+1:]
	}
}

func (e *env) placeholder(name string) (ir.IRValue, bool, error) {
	switch name {
	case "elem":
		f, err := e.top()
		return f.elem, true, err
	case "index":
		f, err := e.top()
		return ir.IRInt(f.index), true, err
	}
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 {
		return nil, false, nil
	}
	v, err := e.arg(i)
	return v, true, err
}

// holds evaluates every condition in order and reports whether all hold.
// Evaluation stops at the first false condition, so a type test can
// protect the conditions after it.
func (e *env) holds(conds []ir.Condition) (bool, error) {
	for _, c := range conds {
		ok, err := e.condition(c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *env) condition(c ir.Condition) (bool, error) {
	left, err := e.operand(c.Left)
	if err != nil {
		return false, fmt.Errorf("%s: left: %w", c.Op, err)
	}
	var right ir.IRValue
	if c.Right != nil {
		right, err = e.operand(*c.Right)
		if err != nil {
			return false, fmt.Errorf("%s: right: %w", c.Op, err)
		}
	}

	ok, err := apply(c.Op, left, right)
	if err != nil {
		return false, err
	}
	return ok != c.Not, nil
}

// apply evaluates one op. Type mismatches are errors, not false: a
// condition over the wrong type means the clause was called with
// arguments it was not written for.
func apply(op string, left, right ir.IRValue) (bool, error) {
	switch op {
	case ir.OpEq:
		return ir.Equal(left, right), nil
	case ir.OpNe:
		return !ir.Equal(left, right), nil
	case ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		cmp, ok := ir.Compare(left, right)
		if !ok {
			return false, fmt.Errorf("%s: cannot compare %s with %s", op, ir.TypeName(left), ir.TypeName(right))
		}
		switch op {
		case ir.OpLt:
			return cmp < 0, nil
		case ir.OpLe:
			return cmp <= 0, nil
		case ir.OpGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case ir.OpEven, ir.OpOdd:
		n, ok := left.(ir.IRInt)
		if !ok {
			return false, fmt.Errorf("%s: need an int, got %s", op, ir.TypeName(left))
		}
		return (n%2 == 0) == (op == ir.OpEven), nil
	case ir.OpDivisible:
		n, nok := left.(ir.IRInt)
		d, dok := right.(ir.IRInt)
		if !nok || !dok {
			return false, fmt.Errorf("%s: need ints, got %s and %s", op, ir.TypeName(left), ir.TypeName(right))
		}
		if d == 0 {
			return false, fmt.Errorf("%s: division by zero", op)
		}
		return n%d == 0, nil
	case ir.OpIsInt:
		return ir.TypeName(left) == "int", nil
	case ir.OpIsString:
		return ir.TypeName(left) == "string", nil
	case ir.OpIsArray:
		return ir.TypeName(left) == "array", nil
	case ir.OpIsBool:
		return ir.TypeName(left) == "bool", nil
	case ir.OpContains:
		return contains(left, right)
	case ir.OpLenEq:
		n, ok := ir.Length(left)
		if !ok {
			return false, fmt.Errorf("%s: %s has no length", op, ir.TypeName(left))
		}
		if want, ok := right.(ir.IRInt); ok {
			return ir.IRInt(n) == want, nil
		}
		m, ok := ir.Length(right)
		if !ok {
			return false, fmt.Errorf("%s: need an int or a value with a length, got %s", op, ir.TypeName(right))
		}
		return n == m, nil
	default:
		return false, fmt.Errorf("unknown op %q", op)
	}
}

// contains tests array membership, substring, or object key presence.
func contains(haystack, needle ir.IRValue) (bool, error) {
	switch h := haystack.(type) {
	case ir.IRArray:
		for _, elem := range h {
			if ir.Equal(elem, needle) {
				return true, nil
			}
		}
		return false, nil
	case ir.IRString:
		s, ok := needle.(ir.IRString)
		if !ok {
			return false, fmt.Errorf("contains: cannot search string for %s", ir.TypeName(needle))
		}
		return strings.Contains(string(h), string(s)), nil
	case ir.IRObject:
		key, ok := needle.(ir.IRString)
		if !ok {
			return false, fmt.Errorf("contains: object keys are strings, got %s", ir.TypeName(needle))
		}
		_, found := h[string(key)]
		return found, nil
	default:
		return false, fmt.Errorf("contains: %s is not a container", ir.TypeName(haystack))
	}
}
