package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/quickdesk/internal/app"
	"github.com/zulandar/quickdesk/internal/models"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in and persist the session",
		Long:  "Exchanges an email and password for a bearer token. The password is read from the terminal with echo disabled, or from stdin when it is not a terminal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, email string) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	s, err := in.ctrl.Login(cmd.Context(), email, password)
	if err != nil {
		return userError(err, app.LoginFailedMessage)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, app.LoginSuccessMessage)
	fmt.Fprintf(out, "Welcome, %s (%s)\n", s.User.Name, s.User.Role.Label())
	return nil
}

func newRegisterCmd() *cobra.Command {
	var (
		configPath string
		name       string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "register EMAIL",
		Short: "Create an account",
		Long:  "Creates an account on the help-desk API. Registering does not log in; run qd login afterwards.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, configPath, name, args[0], role)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "account role: user, agent or admin")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runRegister(cmd *cobra.Command, configPath, name, email, role string) error {
	r := models.Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case models.RoleUser, models.RoleAgent, models.RoleAdmin:
	default:
		return fmt.Errorf("invalid role %q (user, agent, admin)", role)
	}

	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	if err := in.ctrl.Register(cmd.Context(), name, email, password, r); err != nil {
		return userError(err, app.RegisterFailedMessage)
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.RegisterSuccessMessage)
	return nil
}

func newLogoutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := in.ctrl.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.LogoutMessage)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and ticket counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

func runWhoami(cmd *cobra.Command, configPath string) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	s, err := in.requireSession(cmd.Context())
	if err != nil {
		return err
	}

	st := in.ctrl.Tickets.Stats(s.User.ID)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Welcome, %s (%s)\n", s.User.Name, s.User.Role.Label())
	fmt.Fprintf(out, "API:      %s\n", in.client.BaseURL())
	fmt.Fprintf(out, "Tickets:  %d total, %d open, %d resolved, %d assigned to me\n",
		st.Total, st.Open, st.Resolved, st.AssignedToMe)
	return nil
}

// readPassword prompts on the terminal with echo disabled. When input is
// not an interactive terminal the first line of input is used.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	input := cmd.InOrStdin()
	if f, ok := input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("read password: no password given")
	}
	return line, nil
}
