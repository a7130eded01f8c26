package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/privdir/internal/directory"
	"github.com/roach88/privdir/internal/result"
)

// UserOptions holds flags for the user mutation commands.
type UserOptions struct {
	*RootOptions
	Subject string
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Query and change the user directory",
		Long: `Query and change the user directory.

Mutations act on behalf of a subject given with --as. The subject must
reach the configured threshold and may not grant, keep or remove a
privilege above its own.

Exit codes:
  0 - The operation succeeded
  1 - The operation was refused or failed
  2 - Command error (bad arguments, database cannot be opened)`,
	}

	cmd.AddCommand(newUserCountCommand(rootOpts))
	cmd.AddCommand(newUserPrivilegeCommand(rootOpts))
	cmd.AddCommand(newUserAddCommand(rootOpts))
	cmd.AddCommand(newUserModCommand(rootOpts))
	cmd.AddCommand(newUserDeleteCommand(rootOpts))

	return cmd
}

// runUser opens a fully bootstrapped session and renders what fn returns.
func runUser(opts *RootOptions, cmd *cobra.Command, op string, fn func(s *session) (*int, result.Result)) error {
	s, err := openSession(opts, cmd, stageFull)
	if err != nil {
		return err
	}
	defer s.Close()

	value, res := fn(s)
	return s.out.Result(OperationOutput{Op: op, Value: value, Result: res})
}

func parsePrivilege(arg string) (int, error) {
	p, err := strconv.Atoi(arg)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("privilege must be an integer, got %q", arg))
	}
	return p, nil
}

func newUserCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <userID>",
		Short: "Count rows with a userID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUser(rootOpts, cmd, directory.OpCount, func(s *session) (*int, result.Result) {
				n, res := s.env.Directory.Count(commandContext(cmd), args[0])
				if !res.OK() {
					return nil, res
				}
				return &n, res
			})
		},
	}
}

func newUserPrivilegeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "privilege <userID>",
		Short: "Show a user's privilege",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUser(rootOpts, cmd, directory.OpPrivilege, func(s *session) (*int, result.Result) {
				p, res := s.env.Directory.Privilege(commandContext(cmd), args[0])
				if !res.OK() {
					return nil, res
				}
				return &p, res
			})
		},
	}
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <userID> <privilege>",
		Short: "Add a user",
		Example: `  privdir user add bob 50 --as admin
  privdir user add bob 50 --as admin --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrivilege(args[1])
			if err != nil {
				return err
			}
			return runUser(rootOpts, cmd, directory.OpAdd, func(s *session) (*int, result.Result) {
				return nil, s.env.Directory.AddUser(commandContext(cmd), args[0], opts.Subject, p)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "as", "", "userID performing the change (required)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func newUserModCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "mod <userID> <privilege>",
		Short:   "Change a user's privilege",
		Example: `  privdir user mod bob 70 --as admin`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrivilege(args[1])
			if err != nil {
				return err
			}
			return runUser(rootOpts, cmd, directory.OpModify, func(s *session) (*int, result.Result) {
				return nil, s.env.Directory.ModUser(commandContext(cmd), args[0], opts.Subject, p)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "as", "", "userID performing the change (required)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func newUserDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "delete <userID>",
		Short:   "Delete a user",
		Example: `  privdir user delete bob --as admin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUser(rootOpts, cmd, directory.OpDelete, func(s *session) (*int, result.Result) {
				return nil, s.env.Directory.DeleteUser(commandContext(cmd), args[0], opts.Subject)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "as", "", "userID performing the change (required)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}
