package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/queryir"
	"github.com/roach88/predicate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Resolution string   // optional - a single resolution id
	Predicate  string   // optional - resolutions of one predicate
	Where      []string // optional - column filters, e.g. ok=false or seq>=10
	Type       string   // optional - only events of this type
}

// TraceEvent is one event of a stored resolution.
type TraceEvent struct {
	Seq    int64      `json:"seq"`
	Type   string     `json:"type"`
	Clause int        `json:"clause"`
	Label  string     `json:"label,omitempty"`
	Value  ir.IRValue `json:"value,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// TraceResolution is a stored resolution with its events.
type TraceResolution struct {
	ID        string       `json:"id"`
	Predicate string       `json:"predicate"`
	Kind      string       `json:"kind"`
	Args      ir.IRArray   `json:"args"`
	OK        bool         `json:"ok"`
	Solutions ir.IRArray   `json:"solutions,omitempty"`
	Seq       int64        `json:"seq"`
	EndSeq    int64        `json:"end_seq"`
	SpecCID   string       `json:"spec_cid,omitempty"`
	Events    []TraceEvent `json:"events"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Resolutions int `json:"resolutions"`
	Held        int `json:"held"`
	Events      int `json:"events"`
	Solutions   int `json:"solutions"`
	Cuts        int `json:"cuts"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Resolutions []TraceResolution `json:"resolutions"`
	Stats       TraceStats        `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query recorded resolutions",
		Long: `Query the trace log written by resolve --db.

Lists matching resolutions in seq order, each with its events: guard
skips, clause entries and outcomes, solutions and cuts.

Filters combine with AND. --where accepts column<op>value with op one of
=, !=, <, <=, >, >= over the resolution columns
(id, content_key, kind, predicate, seq, end_seq, ok, spec_cid).

Examples:
  predicate trace --db ./trace.db
  predicate trace --db ./trace.db --predicate find_path
  predicate trace --db ./trace.db --where ok=false --where seq>=100
  predicate trace --db ./trace.db --resolution 0190a7c2-... --type solution`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Resolution, "resolution", "", "trace a single resolution id")
	cmd.Flags().StringVar(&opts.Predicate, "predicate", "", "filter to one predicate")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "column filter (repeatable)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show events of this type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	filter, err := buildTraceFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	check := queryir.Validate(queryir.Select{From: queryir.SourceResolutions, Filter: filter})
	if !check.Valid {
		return NewExitError(ExitCommandError, "invalid filter: "+strings.Join(check.Errors, "; "))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	resolutions, err := st.SearchResolutions(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query resolutions", err)
	}

	result := TraceResult{Resolutions: make([]TraceResolution, 0, len(resolutions))}
	for _, res := range resolutions {
		events, err := st.ReadEvents(ctx, res.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read events of %s", res.ID), err)
		}
		tr := buildTraceResolution(res, events, opts.Type)
		result.Resolutions = append(result.Resolutions, tr)
		result.Stats.add(tr)
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTraceFilter combines the trace flags into one resolution filter.
// Returns nil if no filter is set.
func buildTraceFilter(opts *TraceOptions) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	if opts.Resolution != "" {
		preds = append(preds, queryir.Equals{Field: "id", Value: ir.IRString(opts.Resolution)})
	}
	if opts.Predicate != "" {
		preds = append(preds, queryir.Equals{Field: "predicate", Value: ir.IRString(opts.Predicate)})
	}
	for _, w := range opts.Where {
		p, err := parseWhere(w)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return queryir.And{Predicates: preds}, nil
	}
}

// whereOps is ordered so that two-character operators match first.
var whereOps = []string{">=", "<=", "!=", "=", "<", ">"}

// parseWhere parses column<op>value, splitting at the first operator in
// the text. Values that parse as integers or booleans are compared as
// such; everything else as a string.
func parseWhere(expr string) (queryir.Predicate, error) {
	for i := range len(expr) {
		for _, op := range whereOps {
			if !strings.HasPrefix(expr[i:], op) {
				continue
			}
			field := strings.TrimSpace(expr[:i])
			if field == "" {
				return nil, fmt.Errorf("where %q: missing column", expr)
			}
			value := parseWhereValue(strings.TrimSpace(expr[i+len(op):]))
			if op == "=" {
				return queryir.Equals{Field: field, Value: value}, nil
			}
			return queryir.Compare{Field: field, Op: op, Value: value}, nil
		}
	}
	return nil, fmt.Errorf("where %q: expected column<op>value", expr)
}

func parseWhereValue(raw string) ir.IRValue {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ir.IRInt(n)
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return ir.IRBool(b)
	}
	return ir.IRString(raw)
}

func buildTraceResolution(res store.Resolution, events []store.Event, eventType string) TraceResolution {
	tr := TraceResolution{
		ID:        res.ID,
		Predicate: res.Predicate,
		Kind:      res.Kind,
		Args:      res.Args,
		OK:        res.OK,
		Solutions: res.Solutions,
		Seq:       res.Seq,
		EndSeq:    res.EndSeq,
		SpecCID:   res.SpecCID,
		Events:    []TraceEvent{},
	}
	for _, ev := range events {
		if eventType != "" && ev.Type != eventType {
			continue
		}
		tr.Events = append(tr.Events, TraceEvent{
			Seq:    ev.Seq,
			Type:   ev.Type,
			Clause: ev.Clause,
			Label:  ev.Label,
			Value:  ev.Value,
			Detail: ev.Detail,
		})
	}
	return tr
}

func (s *TraceStats) add(tr TraceResolution) {
	s.Resolutions++
	if tr.OK {
		s.Held++
	}
	s.Events += len(tr.Events)
	for _, ev := range tr.Events {
		switch ev.Type {
		case "solution":
			s.Solutions++
		case "cut":
			s.Cuts++
		}
	}
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if len(result.Resolutions) == 0 {
		fmt.Fprintln(w, "No resolutions found.")
		return nil
	}

	for _, tr := range result.Resolutions {
		fmt.Fprintf(w, "Resolution %s: %s [%s]\n", truncateID(tr.ID), formatCall(tr.Predicate, tr.Args), tr.Kind)
		if verbose {
			fmt.Fprintf(w, "  ID: %s\n", tr.ID)
			fmt.Fprintf(w, "  Spec CID: %s\n", tr.SpecCID)
		}
		for _, ev := range tr.Events {
			fmt.Fprintf(w, "  %s\n", formatTraceEvent(ev))
		}
		fmt.Fprintf(w, "  Result: %s\n\n", formatOutcome(tr))
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Resolutions: %d (%d held)\n", result.Stats.Resolutions, result.Stats.Held)
	fmt.Fprintf(w, "  Events:      %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Solutions:   %d\n", result.Stats.Solutions)
	fmt.Fprintf(w, "  Cuts:        %d\n", result.Stats.Cuts)

	return nil
}

// formatTraceEvent renders one event line:
//
//	[3] clause_fail #0 positive even: not even
func formatTraceEvent(ev TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", ev.Seq, ev.Type)
	if ev.Clause >= 0 {
		fmt.Fprintf(&b, " #%d", ev.Clause)
		if ev.Label != "" {
			fmt.Fprintf(&b, " %s", ev.Label)
		}
	}
	if ev.Value != nil {
		fmt.Fprintf(&b, " %s", ir.Render(ev.Value))
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, ": %s", ev.Detail)
	}
	return b.String()
}

func formatOutcome(tr TraceResolution) string {
	if tr.Kind == "backtracking" {
		return fmt.Sprintf("%d solution(s)", len(tr.Solutions))
	}
	return strconv.FormatBool(tr.OK)
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
