package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/program"
	"github.com/roach88/predicate/internal/store"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Args     string // JSON array of call arguments
	Kind     string // empty = the declared kind
	Database string // empty = do not record

	// IDGenerator allows overriding the resolution id generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// ResolveResult is the outcome of one resolve command.
type ResolveResult struct {
	ResolutionID string     `json:"resolution_id"`
	Predicate    string     `json:"predicate"`
	Kind         string     `json:"kind"`
	Args         ir.IRArray `json:"args"`
	OK           bool       `json:"ok"`
	Solutions    ir.IRArray `json:"solutions,omitempty"`
	Output       []string   `json:"output"`
	SpecCID      string     `json:"spec_cid"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <specs-dir> <predicate>",
		Short: "Resolve a predicate once",
		Long: `Load the predicates declared in a specs directory and resolve one of them.

Say output is printed as it is produced (collected into the result with
--format json). With --db the resolution and its trace are appended to a
SQLite trace log, continuing its seq numbering.

Exit codes:
  0 - The predicate held (backtracking: at least one solution)
  1 - The predicate did not hold
  2 - Command error (bad specs, unknown predicate, bad arguments)

Examples:
  predicate resolve ./specs describe_number --args '[7]'
  predicate resolve ./specs find_path --args '[[1,2,5,8],5]' --db ./trace.db
  predicate resolve ./specs verif --args '[1,3]' --kind principles`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "call arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "resolution kind (default: as declared)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the resolution to this SQLite database")

	return cmd
}

func runResolve(opts *ResolveOptions, specsDir, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	args, err := parseArgs(opts.Args)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --args: %v", err), nil)
	}

	specs, err := compileSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}
	specCID, err := ir.SpecCID(specs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash specs", err)
	}
	logger.Debug("specs compiled", "dir", specsDir, "predicates", len(specs), "spec_cid", specCID.String())

	idGen := opts.IDGenerator
	if idGen == nil {
		idGen = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithIDGenerator(idGen),
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		lastSeq, err := st.GetLastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trace log", err)
		}
		logger.Debug("recording resolutions", "db", opts.Database, "last_seq", lastSeq)
		engineOpts = append(engineOpts,
			engine.WithClock(engine.NewClockAt(lastSeq)),
			engine.WithTracer(store.NewRecorder(st, specCID.String())),
		)
	}

	// JSON output carries say lines in the result instead of the stream.
	var captured bytes.Buffer
	var out io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		out = &captured
	}

	eng, err := program.Build(specs, out, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to install specs", err)
	}

	kind, err := resolveKind(eng, opts.Kind, name)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	res, err := eng.Resolve(kind, name, args...)
	if err != nil {
		code := engine.ErrorCode(err)
		if code == "" {
			code = ErrCodeGeneric
		}
		return outputCompileError(formatter, code, err.Error(), nil)
	}

	result := ResolveResult{
		ResolutionID: res.ResolutionID,
		Predicate:    name,
		Kind:         kind.String(),
		Args:         toIRArgs(args),
		OK:           res.OK,
		Output:       splitLines(captured.String()),
		SpecCID:      specCID.String(),
	}
	if kind == engine.Backtracking {
		result.Solutions = toIRArgs(res.Solutions)
	}
	logger.Info("resolution finished", slog.String("resolution", res.ResolutionID), slog.Bool("ok", res.OK))

	if opts.Format == "json" {
		if err := formatter.SuccessWithTrace(result, res.ResolutionID); err != nil {
			return err
		}
	} else {
		outputResolveText(formatter, result)
	}

	if !res.OK {
		return NewExitError(ExitFailure, fmt.Sprintf("%s did not hold", name))
	}
	return nil
}

// compileSpecs loads and compiles all CUE specs from a directory,
// failing on the first error.
func compileSpecs(dir string) ([]*ir.PredicateSpec, error) {
	loadResult, loadErrors := LoadSpecs(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	return loadResult.Predicates, nil
}

// resolveKind returns the explicit kind, or the declared kind of name.
// An undeclared name falls back to FirstSuccess so that the engine
// reports UNKNOWN_PREDICATE.
func resolveKind(eng *engine.Engine, explicit, name string) (engine.Kind, error) {
	if explicit != "" {
		return engine.ParseKind(explicit)
	}
	if kind, ok := eng.Registry().KindOf(name); ok {
		return kind, nil
	}
	return engine.FirstSuccess, nil
}

// parseArgs decodes a JSON array of call arguments. Numbers must be
// integers; they are passed to the engine as int64.
func parseArgs(raw string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var decoded []any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}
	vals, err := ir.FromAnySlice(decoded)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = ir.ToAny(v)
	}
	return args, nil
}

// toIRArgs converts engine values for output. Values outside the IR are
// rendered as strings.
func toIRArgs(xs []any) ir.IRArray {
	arr := make(ir.IRArray, len(xs))
	for i, x := range xs {
		v, err := ir.FromAny(x)
		if err != nil {
			v = ir.IRString(fmt.Sprint(x))
		}
		arr[i] = v
	}
	return arr
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// formatCall renders name(arg, ...) for text output.
func formatCall(name string, args ir.IRArray) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ir.Render(a)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func outputResolveText(formatter *OutputFormatter, result ResolveResult) {
	w := formatter.Writer
	status := "✓"
	if !result.OK {
		status = "✗"
	}

	call := formatCall(result.Predicate, result.Args)
	if result.Kind == engine.Backtracking.String() {
		fmt.Fprintf(w, "%s %s: %d solution(s)\n", status, call, len(result.Solutions))
		for _, s := range result.Solutions {
			fmt.Fprintf(w, "  %s\n", ir.Render(s))
		}
	} else {
		fmt.Fprintf(w, "%s %s: %t\n", status, call, result.OK)
	}

	formatter.VerboseLog("Resolution: %s (%s)", result.ResolutionID, result.Kind)
	formatter.VerboseLog("Spec CID: %s", result.SpecCID)
}
