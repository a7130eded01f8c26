package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/privdir/internal/result"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigFile is an optional YAML config; EnvFile an optional .env.
	ConfigFile string
	EnvFile    string

	// Flag overrides for the loaded config. Empty means not set.
	Database string
	TextLog  string
	Schema   string

	// Clock and IDs override the wall clock and UUIDv7 result IDs (for testing).
	Clock func() time.Time
	IDs   result.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the privdir CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "privdir",
		Short: "privdir - privilege-gated user directory",
		Long: `A SQLite-backed user directory with schema reconciliation.

Every user carries an integer privilege. Mutations name a subject and an
object and are refused when the subject does not outrank what it touches.
Every call is written to the Log audit table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file (skipped if missing)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.TextLog, "text-log", "", "path to the text side-channel log (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "CUE file declaring extra tables (overrides config)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
