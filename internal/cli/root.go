// Package cli implements the fitsync command line client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fitpro/fitsync/internal/adapter"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	User       string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fitsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fitsync",
		Short: "fitsync - fitness course progress",
		Long: `Track enrollment and exercise progress for fitness courses.

Progress is kept in a shared document store and mirrored locally, so status
keeps working while the store is unreachable.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ~/.config/fitsync/config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user id (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCoursesCommand(opts))
	cmd.AddCommand(NewEnrollCommand(opts))
	cmd.AddCommand(NewUnenrollCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewOnlineCommand(opts))
	cmd.AddCommand(NewOfflineCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the config and applies flag overrides.
func (o *RootOptions) loadConfig() (*adapter.Config, error) {
	cfg, err := adapter.LoadConfig(o.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.User != "" {
		cfg.User.ID = o.User
	}
	return cfg, nil
}

func (o *RootOptions) logger(cfg *adapter.Config) *slog.Logger {
	if o.Verbose {
		return adapter.StderrLogger("DEBUG")
	}
	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		logger = adapter.StderrLogger("WARN")
		logger.Warn("file logging disabled", "error", err)
	}
	return logger
}

// appFunc is the body of a command that needs the wired application.
type appFunc func(ctx context.Context, app *App, out *OutputFormatter) error

// runWithApp builds the application, optionally signs the configured user
// in, and runs fn. The remote timeout from config bounds the whole command.
func (o *RootOptions) runWithApp(cmd *cobra.Command, signIn bool, fn appFunc) error {
	out := o.formatter(cmd)

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger := o.logger(cfg)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if cfg.Remote.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Remote.Timeout)
		defer cancel()
	}

	if signIn && cfg.User.ID == "" {
		out.Error(CodeNotSignedIn, "no user configured: run 'fitsync login <user-id>' or pass --user", false)
		e := NewExitError(ExitCommandError, "no user configured")
		e.Reported = true
		return e
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		out.Error(CodeInternal, err.Error(), false)
		e := WrapExitError(ExitCommandError, "failed to start", err)
		e.Reported = true
		return e
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close app", "error", err)
		}
	}()
	out.VerboseLog("catalog: %d courses (stale=%v)", app.Catalog.Len(), app.CatalogStale)

	if signIn {
		if err := app.SignIn(ctx); err != nil {
			return out.Fail("sign-in failed", err)
		}
		out.VerboseLog("signed in as %s: %s", cfg.User.ID, app.Engine.State())
	}
	return fn(ctx, app, out)
}
