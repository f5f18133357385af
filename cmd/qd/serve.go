package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/quickdesk/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QuickDesk web UI",
		Long:  "Launches the local web UI. A persisted session is resumed, and tickets are refreshed in the background on the configured poll schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr(), JSONLog: true})
	if err != nil {
		return err
	}
	if port == 0 {
		port = in.cfg.Web.Port
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if s, err := in.ctrl.Restore(ctx); err != nil {
		in.log.Warn().Err(err).Msg("restore session failed")
	} else if s != nil {
		in.log.Info().Str("user", s.User.Name).Msg("session restored")
	}

	if err := in.ctrl.StartPoller(ctx); err != nil {
		return err
	}
	defer in.ctrl.StopPoller()

	return web.Start(ctx, web.StartOpts{
		Controller: in.ctrl,
		Port:       port,
		Out:        cmd.OutOrStdout(),
		Logger:     in.log,
	})
}
