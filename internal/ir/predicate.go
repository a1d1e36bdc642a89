package ir

import "fmt"

// Kind names as they appear in declarations and traces.
const (
	KindFirstSuccess = "first_success"
	KindAllRequired  = "all_required"
	KindBacktracking = "backtracking"
)

// ValidKinds lists the accepted kind names.
var ValidKinds = map[string]bool{
	KindFirstSuccess: true,
	KindAllRequired:  true,
	KindBacktracking: true,
}

// PredicateSpec is a compiled predicate declaration: a name, its
// resolution kind, and its clauses in declaration order.
type PredicateSpec struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Doc     string       `json:"doc,omitempty"`
	Clauses []ClauseSpec `json:"clauses"`
}

// ClauseSpec is one declared clause. Guard is a conjunction; an empty
// guard always passes.
type ClauseSpec struct {
	Label string      `json:"label,omitempty"`
	Guard []Condition `json:"guard,omitempty"`
	Body  []Step      `json:"body"`
}

// Condition ops.
const (
	OpEq        = "eq"
	OpNe        = "ne"
	OpLt        = "lt"
	OpLe        = "le"
	OpGt        = "gt"
	OpGe        = "ge"
	OpEven      = "even"
	OpOdd       = "odd"
	OpDivisible = "divisible"
	OpIsInt     = "is_int"
	OpIsString  = "is_string"
	OpIsArray   = "is_array"
	OpIsBool    = "is_bool"
	OpContains  = "contains"
	OpLenEq     = "len_eq"
)

// UnaryOps take only a left operand; every other op needs a right one.
var UnaryOps = map[string]bool{
	OpEven:     true,
	OpOdd:      true,
	OpIsInt:    true,
	OpIsString: true,
	OpIsArray:  true,
	OpIsBool:   true,
}

// BinaryOps take a left and a right operand.
var BinaryOps = map[string]bool{
	OpEq:        true,
	OpNe:        true,
	OpLt:        true,
	OpLe:        true,
	OpGt:        true,
	OpGe:        true,
	OpDivisible: true,
	OpContains:  true,
	OpLenEq:     true,
}

// Condition is a boolean test over operands. Not negates the result.
type Condition struct {
	Op    string   `json:"op"`
	Left  Operand  `json:"left"`
	Right *Operand `json:"right,omitempty"`
	Not   bool     `json:"not,omitempty"`
}

// Operand is a value reference. Exactly one source is set:
//
//	Arg    call argument by 0-based index
//	Elem   current element of the innermost each loop
//	Index  current index of the innermost each loop
//	Value  a constant
//	Text   a template; {0}, {1}, {elem} and {index} are substituted
//	List   an array built from other operands
//
// Fenced and Braced extract from a string result. Fenced yields the array
// of blocks opened by "```"+Fenced and closed by the next "```", each
// trimmed of surrounding whitespace; an unclosed block is dropped. Braced
// yields the text from the first "{" to the last "}", or "" if there is
// none. At most one of the two is set.
//
// Add and Mul apply to integer results (Mul 0 means no scaling).
type Operand struct {
	Arg    *int      `json:"arg,omitempty"`
	Elem   bool      `json:"elem,omitempty"`
	Index  bool      `json:"index,omitempty"`
	Value  IRValue   `json:"value,omitempty"`
	Text   string    `json:"text,omitempty"`
	List   []Operand `json:"list,omitempty"`
	Fenced string    `json:"fenced,omitempty"`
	Braced bool      `json:"braced,omitempty"`
	Add    int64     `json:"add,omitempty"`
	Mul    int64     `json:"mul,omitempty"`
}

// ArgRef returns an operand referring to call argument i.
func ArgRef(i int) Operand {
	return Operand{Arg: &i}
}

// Const returns a constant operand.
func Const(v IRValue) Operand {
	return Operand{Value: v}
}

// Sources returns how many value sources are set on o.
func (o Operand) Sources() int {
	n := 0
	if o.Arg != nil {
		n++
	}
	if o.Elem {
		n++
	}
	if o.Index {
		n++
	}
	if o.Value != nil {
		n++
	}
	if o.Text != "" {
		n++
	}
	if o.List != nil {
		n++
	}
	return n
}

// Step is one statement of a clause body.
//
// This is a sealed interface; the step kinds are CheckStep, FailStep,
// SayStep, YieldStep, CutStep, EachStep, WhenStep and SolveStep.
type Step interface {
	StepType() string
	step() // Sealed - only these types implement it
}

// CheckStep fails the clause unless Cond holds.
type CheckStep struct {
	Cond    Condition
	Message string
}

// FailStep fails the clause unconditionally.
type FailStep struct {
	Message string
}

// SayStep writes one line of output. Text is a template like Operand.Text.
type SayStep struct {
	Text string
}

// YieldStep produces a solution. Backtracking only.
type YieldStep struct {
	Value Operand
}

// CutStep yields the cut marker. Backtracking only.
type CutStep struct{}

// EachStep runs Body once per element of the array Over.
type EachStep struct {
	Over Operand
	Body []Step
}

// WhenStep runs Then if every condition in Cond holds, Else otherwise.
type WhenStep struct {
	Cond []Condition
	Then []Step
	Else []Step
}

// SolveStep resolves another backtracking predicate and yields every
// solution it returns. Backtracking only. A cut inside the called
// predicate stays local to it.
type SolveStep struct {
	Predicate string
	Args      []Operand
}

func (CheckStep) StepType() string { return "check" }
func (FailStep) StepType() string  { return "fail" }
func (SayStep) StepType() string   { return "say" }
func (YieldStep) StepType() string { return "yield" }
func (CutStep) StepType() string   { return "cut" }
func (EachStep) StepType() string  { return "each" }
func (WhenStep) StepType() string  { return "when" }
func (SolveStep) StepType() string { return "solve" }

func (CheckStep) step() {}
func (FailStep) step()  {}
func (SayStep) step()   {}
func (YieldStep) step() {}
func (CutStep) step()   {}
func (EachStep) step()  {}
func (WhenStep) step()  {}
func (SolveStep) step() {}

// ToIR renders the spec as an IRValue so it can be canonically hashed.
func (p *PredicateSpec) ToIR() IRObject {
	clauses := make(IRArray, len(p.Clauses))
	for i, c := range p.Clauses {
		clauses[i] = c.ToIR()
	}
	obj := IRObject{
		"name":    IRString(p.Name),
		"kind":    IRString(p.Kind),
		"clauses": clauses,
	}
	if p.Doc != "" {
		obj["doc"] = IRString(p.Doc)
	}
	return obj
}

// ToIR renders the clause as an IRValue.
func (c ClauseSpec) ToIR() IRObject {
	obj := IRObject{
		"guard": conditionsIR(c.Guard),
		"body":  stepsIR(c.Body),
	}
	if c.Label != "" {
		obj["label"] = IRString(c.Label)
	}
	return obj
}

// ToIR renders the condition as an IRValue.
func (c Condition) ToIR() IRObject {
	obj := IRObject{
		"op":   IRString(c.Op),
		"left": c.Left.ToIR(),
	}
	if c.Right != nil {
		obj["right"] = c.Right.ToIR()
	}
	if c.Not {
		obj["not"] = IRBool(true)
	}
	return obj
}

// ToIR renders the operand as an IRValue.
func (o Operand) ToIR() IRObject {
	obj := IRObject{}
	switch {
	case o.Arg != nil:
		obj["arg"] = IRInt(*o.Arg)
	case o.Elem:
		obj["elem"] = IRBool(true)
	case o.Index:
		obj["index"] = IRBool(true)
	case o.Value != nil:
		obj["value"] = o.Value
	case o.Text != "":
		obj["text"] = IRString(o.Text)
	case o.List != nil:
		list := make(IRArray, len(o.List))
		for i, elem := range o.List {
			list[i] = elem.ToIR()
		}
		obj["list"] = list
	}
	if o.Fenced != "" {
		obj["fenced"] = IRString(o.Fenced)
	}
	if o.Braced {
		obj["braced"] = IRBool(true)
	}
	if o.Add != 0 {
		obj["add"] = IRInt(o.Add)
	}
	if o.Mul != 0 {
		obj["mul"] = IRInt(o.Mul)
	}
	return obj
}

// StepToIR renders a step as a single-key object named after its type,
// mirroring the declaration syntax.
func StepToIR(s Step) IRObject {
	switch st := s.(type) {
	case CheckStep:
		body := IRObject{"cond": st.Cond.ToIR()}
		if st.Message != "" {
			body["message"] = IRString(st.Message)
		}
		return IRObject{"check": body}
	case FailStep:
		return IRObject{"fail": IRString(st.Message)}
	case SayStep:
		return IRObject{"say": IRString(st.Text)}
	case YieldStep:
		return IRObject{"yield": st.Value.ToIR()}
	case CutStep:
		return IRObject{"cut": IRBool(true)}
	case EachStep:
		return IRObject{"each": IRObject{"over": st.Over.ToIR(), "body": stepsIR(st.Body)}}
	case WhenStep:
		return IRObject{"when": IRObject{
			"cond": conditionsIR(st.Cond),
			"then": stepsIR(st.Then),
			"else": stepsIR(st.Else),
		}}
	case SolveStep:
		args := make(IRArray, len(st.Args))
		for i, a := range st.Args {
			args[i] = a.ToIR()
		}
		return IRObject{"solve": IRObject{"predicate": IRString(st.Predicate), "args": args}}
	default:
		panic(fmt.Sprintf("unknown step type %T", s))
	}
}

func stepsIR(steps []Step) IRArray {
	out := make(IRArray, len(steps))
	for i, s := range steps {
		out[i] = StepToIR(s)
	}
	return out
}

func conditionsIR(conds []Condition) IRArray {
	out := make(IRArray, len(conds))
	for i, c := range conds {
		out[i] = c.ToIR()
	}
	return out
}

// MarshalJSON implements json.Marshaler using the IR rendering.
func (p *PredicateSpec) MarshalJSON() ([]byte, error) {
	return p.ToIR().MarshalJSON()
}
