package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zulandar/quickdesk/internal/notify"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream ticket notifications in real-time",
		Long:  "Refreshes tickets on the poll schedule and prints an alert whenever one of your tickets is resolved or closed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath, schedule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().StringVar(&schedule, "schedule", "", "poll schedule override, e.g. \"@every 30s\"")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath, schedule string) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr(), Schedule: schedule})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := in.requireSession(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching tickets for %s (%s)... (Ctrl+C to stop)\n", s.User.Name, in.cfg.Poll.Schedule)
	if s.User.Role.Elevated() {
		fmt.Fprintln(out, "Status alerts are only raised for the user role.")
	}

	ch, unsubscribe := in.ctrl.Hub.Subscribe()
	defer unsubscribe()

	if err := in.ctrl.StartPoller(ctx); err != nil {
		return err
	}
	defer in.ctrl.StopPoller()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			printWatchNotification(out, n)
		}
	}
}

func printWatchNotification(out io.Writer, n notify.Notification) {
	ts := n.At.Local().Format("15:04:05")
	prefix := ""
	if n.Style == notify.StyleError {
		prefix = "[ERROR] "
	}
	fmt.Fprintf(out, "[%s] %s%s\n", ts, prefix, n.Message)
}
