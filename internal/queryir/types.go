package queryir

import "github.com/roach88/predicate/internal/ir"

// Sources that can be queried.
const (
	SourceResolutions = "resolutions"
	SourceEvents      = "trace_events"
)

// Columns lists the filterable columns of each source.
var Columns = map[string][]string{
	SourceResolutions: {"id", "content_key", "kind", "predicate", "seq", "end_seq", "ok", "spec_cid"},
	SourceEvents:      {"resolution_id", "seq", "type", "clause", "label", "detail"},
}

// Query is a sealed interface for query nodes.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate is a sealed interface for filter nodes.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows of one source.
type Select struct {
	From    string    // One of the Source constants
	Columns []string  // Projection; empty = all columns
	Filter  Predicate // nil = all rows
	OrderBy []string  // Column names; empty = the source's default order
	Limit   int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals matches rows whose field equals a literal.
//
//	Equals{Field: "type", Value: ir.IRString("cut")}
//
// compiles to
//
//	type = ?
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// Comparison operators for Compare.
const (
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
	OpNe = "!="
)

// Compare matches rows whose field is ordered against a literal.
// Mostly useful on seq columns: Compare{Field: "seq", Op: OpGe, Value: ir.IRInt(100)}.
type Compare struct {
	Field string
	Op    string
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
