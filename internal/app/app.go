// Package app holds the Controller, the single owner of a running
// QuickDesk instance's state: the session, the ticket cache, the action
// dispatcher and the notification hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/actions"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/config"
	"github.com/zulandar/quickdesk/internal/inflight"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/notify"
	"github.com/zulandar/quickdesk/internal/session"
	"github.com/zulandar/quickdesk/internal/tickets"
)

// DefaultSchedule is the poll schedule used when none is configured.
const DefaultSchedule = "@every 60s"

// User-facing messages for controller-level outcomes.
const (
	LoginSuccessMessage    = "Login successful!"
	LoginFailedMessage     = "Login failed"
	RegisterSuccessMessage = "Registration successful! Please login."
	RegisterFailedMessage  = "Registration failed"
	LogoutMessage          = "Logged out successfully!"
	LoadFailedMessage      = "Failed to load tickets"
	CreateFailedMessage    = "Failed to create ticket"
	StatusFailedMessage    = "Failed to update ticket status. Please try again."
	ReplyFailedMessage     = "Failed to add reply"
)

// API is everything the Controller needs from the remote API.
type API interface {
	session.Authenticator
	tickets.Fetcher
	actions.API
}

// Controller wires the components together and publishes an alert for
// every user-initiated outcome.
type Controller struct {
	Session  *session.Manager
	Tickets  *tickets.Store
	Actions  *actions.Dispatcher
	Hub      *notify.Hub
	Requests *inflight.Tracker

	schedule string
	log      zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	API      API
	Store    session.Store
	Sinks    []notify.Sink
	Schedule string // cron spec; defaults to DefaultSchedule
	Logger   zerolog.Logger
}

// New creates a Controller with no session. Call Restore to resume a
// persisted one.
func New(opts ControllerOpts) (*Controller, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("app: api is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := config.ScheduleParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("app: poll schedule %q: %w", schedule, err)
	}

	hub := notify.NewHub(notify.HubOpts{Sinks: opts.Sinks, Logger: opts.Logger})
	tracker := inflight.New()

	mgr, err := session.NewManager(session.ManagerOpts{Store: opts.Store, Auth: opts.API, Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	store, err := tickets.NewStore(tickets.StoreOpts{
		Fetcher:   opts.API,
		Publisher: hub,
		Tracker:   tracker,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	disp, err := actions.NewDispatcher(actions.DispatcherOpts{
		API:    opts.API,
		Tokens: mgr,
		Store:  store,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &Controller{
		Session:  mgr,
		Tickets:  store,
		Actions:  disp,
		Hub:      hub,
		Requests: tracker,
		schedule: schedule,
		log:      opts.Logger,
	}, nil
}

// Restore resumes a persisted session and loads its tickets.
func (c *Controller) Restore(ctx context.Context) (*models.Session, error) {
	s, err := c.Session.Restore(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	c.load(ctx, s.Token)
	return s, nil
}

// Login authenticates and loads the dashboard's tickets.
func (c *Controller) Login(ctx context.Context, email, password string) (*models.Session, error) {
	s, err := c.Session.Login(ctx, email, password)
	if err != nil {
		c.log.Warn().Err(err).Msg("login failed")
		c.Hub.Error(ctx, api.UserMessage(err, LoginFailedMessage))
		return nil, err
	}
	c.Hub.Success(ctx, LoginSuccessMessage)
	c.load(ctx, s.Token)
	return s, nil
}

// Register creates an account. The user still has to log in.
func (c *Controller) Register(ctx context.Context, name, email, password string, role models.Role) error {
	if _, err := c.Session.Register(ctx, name, email, password, role); err != nil {
		c.log.Warn().Err(err).Msg("register failed")
		c.Hub.Error(ctx, api.UserMessage(err, RegisterFailedMessage))
		return err
	}
	c.Hub.Success(ctx, RegisterSuccessMessage)
	return nil
}

// Logout ends the session and drops all cached tickets and filters.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.Session.Logout(ctx)
	c.Tickets.Reset()
	c.Hub.Info(ctx, LogoutMessage)
	return err
}

// Reload refetches every ticket for the current session.
func (c *Controller) Reload(ctx context.Context) error {
	return c.load(ctx, c.Session.Token())
}

// CreateTicket submits a ticket and publishes the outcome.
func (c *Controller) CreateTicket(ctx context.Context, t api.NewTicket) error {
	return c.report(ctx, CreateFailedMessage)(c.Actions.CreateTicket(ctx, t))
}

// ChangeStatus updates a ticket's status and publishes the outcome.
func (c *Controller) ChangeStatus(ctx context.Context, id models.ID, status models.Status) error {
	return c.report(ctx, StatusFailedMessage)(c.Actions.ChangeStatus(ctx, id, status))
}

// AddReply posts a reply and publishes the outcome.
func (c *Controller) AddReply(ctx context.Context, id models.ID, message string) error {
	return c.report(ctx, ReplyFailedMessage)(c.Actions.AddReply(ctx, id, message))
}

// PollOnce runs one background refresh if someone is logged in.
func (c *Controller) PollOnce(ctx context.Context) []notify.Notification {
	return c.Tickets.PollCurrent(ctx, c.Session)
}

// StartPoller schedules PollOnce on the configured cron schedule until ctx
// is cancelled. Calling it twice is an error.
func (c *Controller) StartPoller(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return fmt.Errorf("app: poller already running")
	}
	cr := cron.New(cron.WithParser(config.ScheduleParser))
	if _, err := cr.AddFunc(c.schedule, func() { c.PollOnce(ctx) }); err != nil {
		return fmt.Errorf("app: schedule poll: %w", err)
	}
	cr.Start()
	c.cron = cr
	c.log.Info().Str("schedule", c.schedule).Msg("ticket poller started")

	go func() {
		<-ctx.Done()
		c.StopPoller()
	}()
	return nil
}

// StopPoller stops the cron scheduler and waits for a running poll.
func (c *Controller) StopPoller() {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return
	}
	<-cr.Stop().Done()
	c.log.Info().Msg("ticket poller stopped")
}

// load fetches tickets and publishes an error alert on failure.
func (c *Controller) load(ctx context.Context, token string) error {
	if err := c.Tickets.LoadAll(ctx, token); err != nil {
		c.log.Warn().Err(err).Msg("load tickets failed")
		c.Hub.Error(ctx, api.UserMessage(err, LoadFailedMessage))
		return err
	}
	return nil
}

// report returns a function that publishes msg on success or the mapped
// error message on failure. A failed reload after a successful mutation
// still reports the mutation as successful and adds a load error.
func (c *Controller) report(ctx context.Context, fallback string) func(string, error) error {
	return func(msg string, err error) error {
		switch {
		case err == nil:
			c.Hub.Success(ctx, msg)
			return nil
		case msg != "":
			c.Hub.Success(ctx, msg)
			c.Hub.Error(ctx, api.UserMessage(errors.Unwrap(err), LoadFailedMessage))
			return err
		default:
			c.log.Warn().Err(err).Msg("action failed")
			c.Hub.Error(ctx, api.UserMessage(err, fallback))
			return err
		}
	}
}
