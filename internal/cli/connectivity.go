package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitpro/fitsync/internal/adapter"
	"github.com/fitpro/fitsync/internal/domain"
)

// NewOfflineCommand creates the offline command.
func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Work from the local cache",
		Long: `Stop talking to the document store. Later commands read the locally
cached progress and mutations fail as offline until "fitsync online".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.runWithApp(cmd, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.SetForcedOffline(true); err != nil {
					return out.Fail("failed to go offline", err)
				}
				return out.Success(Message{Message: "Working offline"})
			})
		},
	}
}

// NewOnlineCommand creates the online command.
func NewOnlineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "online",
		Short:         "Reconnect to the document store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.runWithApp(cmd, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.SetForcedOffline(false); err != nil {
					return out.Fail("failed to go online", err)
				}
				if app.Config.User.ID == "" {
					return out.Success(Message{Message: "Online"})
				}

				if err := app.SignIn(ctx); err != nil {
					return out.Fail("sign-in failed", err)
				}
				if app.Engine.State() != domain.StateLive {
					return out.Fail("reconnect failed", &domain.OpError{Op: "connectivity", UserID: app.Config.User.ID, Err: domain.ErrOffline})
				}
				return out.Success(Message{Message: fmt.Sprintf("Online, synced %s", app.Config.User.ID)})
			})
		},
	}
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached snapshot and the catalog copy",
		Long: `Delete the local cache directory. Nothing is lost: the document store is
the system of record and the cache is rebuilt on the next sign-in.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := adapter.ClearCache(cfg.Cache.Dir); err != nil {
				return out.Fail("failed to clear cache", err)
			}
			return out.Success(Message{Message: fmt.Sprintf("Cleared %s", cfg.Cache.Dir)})
		},
	})

	return cmd
}
