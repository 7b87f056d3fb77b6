package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fitpro/fitsync/internal/tui"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Plain bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow progress live",
		Long: `Stay signed in and follow progress as it changes, including changes made
by other clients. Connectivity is probed on the configured schedule.

On a terminal this opens the interactive dashboard. Otherwise, or with
--plain, every change is printed as a status report (one JSON object per line
with --format json).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, true, func(_ context.Context, app *App, out *OutputFormatter) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				stopProber, err := app.StartProber()
				if err != nil {
					return out.Fail("invalid connectivity schedule", err)
				}
				defer stopProber()

				interactive := !opts.Plain && opts.Format == "text" && term.IsTerminal(int(os.Stdout.Fd()))
				if interactive {
					return runDashboard(ctx, app)
				}
				return streamViews(ctx, app, out)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "print status reports instead of the dashboard")

	return cmd
}

func runDashboard(ctx context.Context, app *App) error {
	observer := tui.NewChannelObserver(app.Store)
	defer observer.Close()

	model := tui.NewModel(app.Engine, app, app.Catalog, observer, app.Config.Remote.Timeout)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	app.Logger.Info("starting TUI")
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		app.Logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// streamViews prints a report for every view change until ctx ends. A slow
// writer skips intermediate views but always gets the latest one.
func streamViews(ctx context.Context, app *App, out *OutputFormatter) error {
	observer := tui.NewChannelObserver(app.Store)
	defer observer.Close()

	enc := json.NewEncoder(out.Writer)
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-observer.Views():
			report := NewStatusReport(v, app.Catalog, false)
			var err error
			if out.Format == "json" {
				err = enc.Encode(report)
			} else {
				_, err = fmt.Fprintf(out.Writer, "%s\n", report)
			}
			if err != nil {
				return err
			}
		}
	}
}
