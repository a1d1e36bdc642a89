package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/program"
	"github.com/roach88/predicate/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	Predicate string // optional - one predicate only
}

// ReplayEntry holds the replay result of a single resolution.
type ReplayEntry struct {
	ID          string     `json:"id"`
	Predicate   string     `json:"predicate"`
	Args        ir.IRArray `json:"args"`
	RecordedOK  bool       `json:"recorded_ok"`
	OK          bool       `json:"ok"`
	Match       bool       `json:"match"`
	SpecChanged bool       `json:"spec_changed"`
	Error       string     `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	SpecCID          string        `json:"spec_cid"`
	Resolutions      []ReplayEntry `json:"resolutions"`
	Total            int           `json:"total"`
	Mismatches       int           `json:"mismatches"`
	AllDeterministic bool          `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Re-resolve recorded calls and verify determinism",
		Long: `Re-resolve every recorded resolution against the predicates in a specs
directory and check that each gives its recorded result.

Resolutions recorded against a different predicate set (spec CID) are
still replayed; they are flagged so that an intended change is easy to
tell from a determinism failure. Replayed resolutions are not recorded.

Exit codes:
  0 - Every resolution replayed identically
  1 - At least one result differs
  2 - Command error (database not found, bad specs, etc.)

Examples:
  predicate replay ./specs --db ./trace.db
  predicate replay ./specs --db ./trace.db --predicate find_path
  predicate replay ./specs --db ./trace.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Predicate, "predicate", "", "replay one predicate only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	specs, err := compileSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}
	specCID, err := ir.SpecCID(specs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash specs", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// Say output of replayed calls is not shown again.
	eng, err := program.Build(specs, io.Discard, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to install specs", err)
	}

	results, err := st.Replay(ctx, eng, opts.Predicate)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay resolutions", err)
	}

	result := ReplayResult{
		SpecCID:          specCID.String(),
		Resolutions:      make([]ReplayEntry, 0, len(results)),
		Total:            len(results),
		AllDeterministic: true,
	}
	for _, r := range results {
		entry := ReplayEntry{
			ID:          r.Recorded.ID,
			Predicate:   r.Recorded.Predicate,
			Args:        r.Recorded.Args,
			RecordedOK:  r.Recorded.OK,
			OK:          r.OK,
			Match:       r.Match,
			SpecChanged: r.Recorded.SpecCID != result.SpecCID,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		if !r.Match {
			result.Mismatches++
			result.AllDeterministic = false
		}
		result.Resolutions = append(result.Resolutions, entry)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No resolutions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d resolution(s)\n", result.Total)
	if verbose {
		fmt.Fprintf(w, "Spec CID: %s\n", result.SpecCID)
	}
	fmt.Fprintln(w)

	for _, entry := range result.Resolutions {
		if entry.Match && !verbose {
			continue
		}
		status := "✓"
		if !entry.Match {
			status = "✗"
		}

		fmt.Fprintf(w, "%s %s %s\n", status, truncateID(entry.ID), formatCall(entry.Predicate, entry.Args))
		switch {
		case entry.Error != "":
			fmt.Fprintf(w, "  Error: %s\n", entry.Error)
		case !entry.Match:
			fmt.Fprintf(w, "  Recorded ok=%t, replayed ok=%t\n", entry.RecordedOK, entry.OK)
		}
		if entry.SpecChanged {
			fmt.Fprintln(w, "  Note: recorded against a different predicate set")
		}
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All resolutions replayed identically")
		return nil
	}

	fmt.Fprintf(w, "✗ %d of %d resolution(s) differ\n", result.Mismatches, result.Total)
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
