package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Detail bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show enrolled courses and progress",
		Long: `Show the signed-in user's enrolled courses with workout and course
completion.

When the document store is unreachable the last cached state is shown and
marked offline.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				return out.Success(NewStatusReport(app.Store.Current(), app.Catalog, opts.Detail))
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Detail, "detail", "d", false, "show per-exercise reps")

	return cmd
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "refresh",
		Short:         "Re-read progress from the document store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Engine.Refresh(ctx); err != nil {
					return out.Fail("refresh failed", err)
				}
				return out.Success(NewStatusReport(app.Store.Current(), app.Catalog, false))
			})
		},
	}
}
