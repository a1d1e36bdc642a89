package harness

// TraceEvent is one engine trace event as seen by the harness, tagged
// with the index of the scenario call that produced it.
type TraceEvent struct {
	Call       int    `json:"call"`
	Resolution string `json:"resolution"`
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	Predicate  string `json:"predicate"`
	Clause     int    `json:"clause"`
	Label      string `json:"label,omitempty"`
	Args       any    `json:"args,omitempty"`
	Value      any    `json:"value,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// OutputLine is one line of say output.
type OutputLine struct {
	Call int    `json:"call"`
	Text string `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every trace event, nested resolutions included, in
	// seq order.
	Trace []TraceEvent `json:"trace"`

	// Output contains the say output of all calls, in order.
	Output []OutputLine `json:"output"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Output: []OutputLine{},
		Errors: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// OutputText returns the output lines without call indexes.
func (r *Result) OutputText() []string {
	lines := make([]string, len(r.Output))
	for i, l := range r.Output {
		lines[i] = l.Text
	}
	return lines
}
