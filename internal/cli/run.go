package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/privdir/internal/bootstrap"
	"github.com/roach88/privdir/internal/config"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
)

// stage selects how much of bootstrap a command runs before it starts.
type stage int

const (
	// stageBase reconciles only the Log table, leaving every other table
	// as found so it can be inspected or dropped.
	stageBase stage = iota

	// stageFull reconciles Log, users and every declared table.
	stageFull
)

// session is an opened environment and the settings it was opened with.
type session struct {
	env    *bootstrap.Env
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter

	// boot is the bootstrap result, trail included.
	boot result.Result
}

func (s *session) Close() {
	if err := s.env.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// loadConfig layers the root flags over config.Load.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile, opts.EnvFile)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.TextLog != "" {
		cfg.TextLog = opts.TextLog
	}
	if opts.Schema != "" {
		cfg.Schema = opts.Schema
	}
	return cfg, cfg.Validate()
}

// newLogger configures logging based on config and the verbose flag.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openSession loads config, sets up logging and bootstraps the database
// up to st.
func openSession(opts *RootOptions, cmd *cobra.Command, st stage) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	var tables []schema.Table
	if cfg.Schema != "" {
		logger.Debug("loading schema", "path", cfg.Schema)
		tables, err = schema.LoadCUE(cfg.Schema)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
		}
	}

	thresholds := cfg.Thresholds
	bootOpts := bootstrap.Options{
		Database:   cfg.Database,
		TextLog:    cfg.TextLog,
		Tables:     tables,
		Thresholds: &thresholds,
		Logger:     logger,
		Clock:      opts.Clock,
		IDs:        opts.IDs,
	}

	ctx := commandContext(cmd)
	logger.Debug("opening database", "path", cfg.Database)

	var (
		env *bootstrap.Env
		res result.Result
	)
	if st == stageFull {
		env, res = bootstrap.Open(ctx, bootOpts)
	} else {
		env, res = bootstrap.InitBase(ctx, bootOpts)
	}
	if !res.OK() {
		return nil, WrapExitError(ExitCommandError, "bootstrap failed (trail "+res.Trace.String()+")", res.Err)
	}
	logger.Debug("database ready", "trail", res.Trace.String())

	return &session{
		env:    env,
		cfg:    cfg,
		logger: logger,
		out:    newFormatter(opts, cmd),
		boot:   res,
	}, nil
}
