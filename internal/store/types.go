package store

import "github.com/roach88/predicate/internal/ir"

// Resolution is the stored record of one resolve call.
type Resolution struct {
	ID string // the engine's resolution id

	// ContentKey is ir.ResolutionKey over id, kind, predicate, args and
	// seq. Empty if the arguments could not be hashed (they contain null).
	ContentKey string

	Kind      string
	Predicate string
	Args      ir.IRArray
	Seq       int64 // seq of resolve_start
	EndSeq    int64 // seq of resolve_end
	OK        bool

	// Solutions is set for backtracking resolutions only.
	Solutions ir.IRArray

	SpecCID       string
	EngineVersion string
	IRVersion     string
}

// Event is one stored trace event.
type Event struct {
	ResolutionID string
	Seq          int64
	Type         string
	Clause       int // -1 for resolution-level events
	Label        string
	Value        ir.IRValue // nil if the event carries no value
	Detail       string
}
