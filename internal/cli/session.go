package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitpro/fitsync/internal/adapter"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in and remember the user",
		Long: `Sign in as the given user and save the user id in the config file.

The user's progress document is created on first sign-in.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *rootOpts
			opts.User = args[0]
			return opts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := adapter.SaveUser(opts.ConfigFile, args[0]); err != nil {
					return out.Fail("failed to save user", err)
				}
				msg := fmt.Sprintf("Signed in as %s (%s)", args[0], app.Engine.State())
				return out.Success(Message{Message: msg})
			})
		},
	}
}

// LogoutOptions holds flags for the logout command.
type LogoutOptions struct {
	*RootOptions
	Forget bool
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "logout",
		Short:         "Forget the signed-in user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				userID := app.Config.User.ID
				if opts.Forget && userID != "" {
					app.Cache.Forget(userID)
					out.VerboseLog("removed cached snapshot for %s", userID)
				}
				if err := adapter.ClearUser(opts.ConfigFile); err != nil {
					return out.Fail("failed to clear user", err)
				}
				return out.Success(Message{Message: "Signed out"})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Forget, "forget", false, "also remove the user's cached progress")

	return cmd
}
