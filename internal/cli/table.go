package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/privdir/internal/reconcile"
	"github.com/roach88/privdir/internal/result"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or reconcile the database",
		Long: `Open the database, creating it if it doesn't exist, and reconcile the
Log and users tables plus every table declared with --schema.

A missing table is created; a table whose columns diverge from its
declaration is dropped and created again, losing its rows.

Example:
  privdir init --db ./bot.db
  privdir init --db ./bot.db --schema ./tables.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd, stageFull)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.out.Result(OperationOutput{
				Op:     "init",
				Detail: fmt.Sprintf("database: %s", s.cfg.Database),
				Result: s.boot,
			})
		},
	}
}

// CheckOutput is the payload of the check command.
type CheckOutput struct {
	Table    string        `json:"table"`
	Outcome  string        `json:"outcome"`
	Index    int           `json:"index"`
	Observed string        `json:"observed,omitempty"`
	Expected string        `json:"expected,omitempty"`
	Result   result.Result `json:"result"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <table>",
		Short: "Compare a live table with its declaration",
		Long: `Compare the live columns of a declared table with its declaration,
without changing anything. Only the Log table is reconciled first.

Exit codes:
  0 - The table matches
  1 - The table is missing or diverges
  2 - Command error (unknown table, database cannot be opened)

Example:
  privdir check users --db ./bot.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd, stageBase)
			if err != nil {
				return err
			}
			defer s.Close()

			t, ok := s.env.Registry.Lookup(args[0])
			if !ok {
				msg := fmt.Sprintf("unknown table %q", args[0])
				_ = s.out.Error(string(result.KindNotFound), msg, map[string]any{"declared": s.env.Registry.Names()})
				return NewExitError(ExitCommandError, msg)
			}

			rep, res := s.env.Checker.Check(commandContext(cmd), t)
			if !res.OK() {
				return s.out.Result(OperationOutput{Op: reconcile.OpCheck, Result: res})
			}

			if err := outputCheck(s.out, CheckOutput{
				Table:    rep.Table,
				Outcome:  rep.Outcome.String(),
				Index:    rep.Index,
				Observed: rep.Observed,
				Expected: rep.Expected,
				Result:   res,
			}); err != nil {
				return err
			}

			switch err := rep.Err(); {
			case result.IsSchemaMismatch(err):
				return WrapExitError(ExitFailure, fmt.Sprintf("table %s diverges from its declaration", rep.Table), err)
			case rep.Outcome != reconcile.Valid:
				return NewExitError(ExitFailure, fmt.Sprintf("table %s is %s", rep.Table, rep.Outcome))
			}
			return nil
		},
	}
}

func outputCheck(f *OutputFormatter, out CheckOutput) error {
	if f.Format == "json" {
		status := "ok"
		if out.Outcome != reconcile.Valid.String() {
			status = "error"
		}
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: status, Data: out, TraceID: out.Result.ID})
	}

	fmt.Fprintf(f.Writer, "%s: %s\n", out.Table, out.Outcome)
	if out.Observed != "" || out.Expected != "" {
		fmt.Fprintf(f.Writer, "  observed %s, expected %s\n", out.Observed, out.Expected)
	}
	fmt.Fprintf(f.Writer, "trail: %s\n", out.Result.Trace)
	return nil
}

// ReconcileEntry is one table handled by the reconcile command.
type ReconcileEntry struct {
	Table  string        `json:"table"`
	Action string        `json:"action"`
	Result result.Result `json:"result"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Make every declared table match its declaration",
		Long: `Reconcile every declared table in registration order and report what
was done to each: kept, created or recreated. Stops at the first failure.

Example:
  privdir reconcile --db ./bot.db --schema ./tables.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd, stageBase)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			var entries []ReconcileEntry
			var failed *ReconcileEntry
			for _, t := range s.env.Registry.Tables() {
				action, res := s.env.Checker.Ensure(ctx, t)
				entries = append(entries, ReconcileEntry{Table: t.Name, Action: action.String(), Result: res})
				if !res.OK() {
					failed = &entries[len(entries)-1]
					break
				}
			}

			if err := outputReconcile(s.out, entries, failed != nil); err != nil {
				return err
			}
			if failed != nil {
				return WrapExitError(ExitFailure,
					fmt.Sprintf("reconcile %s failed with status %d", failed.Table, failed.Result.Status), failed.Result.Err)
			}
			return nil
		},
	}
}

func outputReconcile(f *OutputFormatter, entries []ReconcileEntry, failed bool) error {
	if f.Format == "json" {
		status := "ok"
		if failed {
			status = "error"
		}
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: status, Data: entries})
	}

	for _, e := range entries {
		if e.Result.OK() {
			fmt.Fprintf(f.Writer, "%s: %s\n", e.Table, e.Action)
		} else {
			fmt.Fprintf(f.Writer, "%s: failed (status %d)\n", e.Table, e.Result.Status)
		}
		f.VerboseLog("  trail: %s", e.Result.Trace)
	}
	return nil
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Long: `Drop a table if it exists. The name need not be declared but must be a
plain SQL identifier.

Example:
  privdir drop chats --db ./bot.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd, stageBase)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.env.Checker.Drop(commandContext(cmd), args[0])
			return s.out.Result(OperationOutput{Op: reconcile.OpDrop, Result: res})
		},
	}
}
