package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/privdir/internal/audit"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
	Event string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the audit log",
		Long: `Show the newest rows of the Log audit table, oldest first.

Example:
  privdir log --db ./bot.db --limit 50
  privdir log --db ./bot.db --event addUser --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLog(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of rows to show (0 for all)")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only show rows with this eventName")

	return cmd
}

func showLog(opts *LogOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, stageBase)
	if err != nil {
		return err
	}
	defer s.Close()

	limit := opts.Limit
	if opts.Event != "" {
		// Filter before limiting so --limit counts matching rows
		limit = 0
	}
	entries, err := s.env.Recorder.Entries(commandContext(cmd), limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read audit log", err)
	}

	if opts.Event != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.EventName == opts.Event {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
		if opts.Limit > 0 && len(entries) > opts.Limit {
			entries = entries[len(entries)-opts.Limit:]
		}
	}

	if s.out.Format == "json" {
		return s.out.Success(entries)
	}
	return outputLogText(s.out, entries)
}

func outputLogText(f *OutputFormatter, entries []audit.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No audit rows.")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tEVENT\tOBJECT\tSUBJECT\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.DateTime, e.EventName, e.Object, e.Subject, e.Status)
	}
	return tw.Flush()
}
