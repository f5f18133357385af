package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/app"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/render"
	"github.com/zulandar/quickdesk/internal/tickets"
)

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"t"},
		Short:   "Browse and update tickets",
	}

	cmd.AddCommand(newTicketsListCmd())
	cmd.AddCommand(newTicketsShowCmd())
	cmd.AddCommand(newTicketsCreateCmd())
	cmd.AddCommand(newTicketsStatusCmd())
	cmd.AddCommand(newTicketsReplyCmd())
	return cmd
}

func newTicketsListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		category   string
		search     string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, optionally filtered",
		Long:  "Lists the tickets visible to you. Filters combine: a ticket must match the status, the category and the search text (subject or description, case-insensitive).",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c tickets.Criteria
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return fmt.Errorf("invalid status %q (open, in-progress, resolved, closed)", status)
				}
				c.Status = st
			}
			c.Category = category
			c.Search = search
			return runTicketsList(cmd, configPath, c, width)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search subject and description")
	cmd.Flags().IntVar(&width, "width", 0, "output width in columns")
	return cmd
}

func runTicketsList(cmd *cobra.Command, configPath string, c tickets.Criteria, width int) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	s, err := in.requireSession(cmd.Context())
	if err != nil {
		return err
	}

	filtered := in.ctrl.Tickets.ApplyFilter(c)
	out := cmd.OutOrStdout()
	fmt.Fprint(out, render.NewTerminal(width).Grid(render.Grid(filtered, s.User)))

	st := in.ctrl.Tickets.Stats(s.User.ID)
	fmt.Fprintf(out, "\n%d shown (%d total, %d open, %d resolved, %d assigned to me)\n",
		len(filtered), st.Total, st.Open, st.Resolved, st.AssignedToMe)
	return nil
}

func newTicketsShowCmd() *cobra.Command {
	var (
		configPath string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a ticket with its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			s, err := in.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			t, ok := in.ctrl.Tickets.Find(models.ID(strings.TrimPrefix(args[0], "#")))
			if !ok {
				return fmt.Errorf("ticket #%s not found", strings.TrimPrefix(args[0], "#"))
			}
			fmt.Fprint(cmd.OutOrStdout(), render.NewTerminal(width).Detail(render.Detail(t, s.User)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().IntVar(&width, "width", 0, "output width in columns")
	return cmd
}

func newTicketsCreateCmd() *cobra.Command {
	var (
		configPath  string
		subject     string
		category    string
		description string
		priority    string
		attachment  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			nt := api.NewTicket{
				Subject:     subject,
				Category:    category,
				Description: description,
				Priority:    priority,
			}
			if attachment != "" {
				f, err := os.Open(attachment)
				if err != nil {
					return fmt.Errorf("open attachment: %w", err)
				}
				defer f.Close()
				nt.Attachment = &api.Attachment{Filename: filepath.Base(attachment), Content: f}
			}
			return runMutation(cmd, configPath, app.CreateFailedMessage, func(in *instance, s *models.Session) (string, error) {
				return in.ctrl.Actions.CreateTicket(cmd.Context(), nt)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	cmd.Flags().StringVar(&subject, "subject", "", "ticket subject (required)")
	cmd.Flags().StringVar(&category, "category", "", "ticket category (required)")
	cmd.Flags().StringVar(&description, "description", "", "ticket description (required)")
	cmd.Flags().StringVar(&priority, "priority", "", "ticket priority")
	cmd.Flags().StringVar(&attachment, "attachment", "", "file to attach")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("description")
	return cmd
}

func newTicketsStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Change a ticket's status (agents and admins)",
		Long:  "Sets a ticket's status. STATUS is one of open, in-progress, resolved or closed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := models.ID(strings.TrimPrefix(args[0], "#"))
			st, err := models.ParseStatus(args[1])
			if err != nil {
				return fmt.Errorf("invalid status %q (open, in-progress, resolved, closed)", args[1])
			}
			return runMutation(cmd, configPath, app.StatusFailedMessage, func(in *instance, s *models.Session) (string, error) {
				if !render.ShowStatusActions(s.User) {
					return "", fmt.Errorf("only agents and admins can change ticket status")
				}
				return in.ctrl.Actions.ChangeStatus(cmd.Context(), id, st)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

func newTicketsReplyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reply ID MESSAGE...",
		Short: "Add a reply to a ticket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := models.ID(strings.TrimPrefix(args[0], "#"))
			msg := strings.Join(args[1:], " ")
			return runMutation(cmd, configPath, app.ReplyFailedMessage, func(in *instance, s *models.Session) (string, error) {
				return in.ctrl.Actions.AddReply(cmd.Context(), id, msg)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

// runMutation resumes the session, runs fn and prints its outcome. A
// successful mutation whose follow-up reload fails prints the success
// message and then reports the load error.
func runMutation(cmd *cobra.Command, configPath, fallback string, fn func(*instance, *models.Session) (string, error)) error {
	in, err := connectFromConfig(configPath, connectOpts{LogOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	s, err := in.ctrl.Session.Restore(cmd.Context())
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if s == nil {
		return errNotLoggedIn
	}

	msg, err := fn(in, s)
	if msg != "" {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	if err != nil {
		if msg != "" {
			return userError(err, app.LoadFailedMessage)
		}
		return userError(err, fallback)
	}
	return nil
}
