package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/app"
	"github.com/zulandar/quickdesk/internal/config"
	"github.com/zulandar/quickdesk/internal/db"
	"github.com/zulandar/quickdesk/internal/logger"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/notify"
	"github.com/zulandar/quickdesk/internal/notify/discord"
	"github.com/zulandar/quickdesk/internal/notify/slack"
	"github.com/zulandar/quickdesk/internal/session"
	"gorm.io/gorm"
)

// errNotLoggedIn is returned by commands that need a persisted session.
var errNotLoggedIn = errors.New("not logged in (run: qd login EMAIL)")

// instance is everything a command needs to act as a QuickDesk client.
type instance struct {
	cfg    *config.Config
	db     *gorm.DB
	client *api.Client
	ctrl   *app.Controller
	log    zerolog.Logger
}

// connectOpts tunes how connectFromConfig builds the instance.
type connectOpts struct {
	LogOut   io.Writer
	JSONLog  bool   // serve logs JSON; interactive commands log in console format
	Schedule string // overrides poll.schedule when set
}

// connectFromConfig loads the config and builds a Controller backed by the
// configured session store.
func connectFromConfig(configPath string, opts connectOpts) (*instance, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Schedule != "" {
		if _, err := config.ScheduleParser.Parse(opts.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
		}
		cfg.Poll.Schedule = opts.Schedule
	}

	log := logger.Console(opts.LogOut, cfg.Log.Level)
	if opts.JSONLog {
		log = logger.New(opts.LogOut, cfg.Log.Level)
	}

	gormDB, err := db.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client, err := api.NewClient(api.ClientOpts{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	sinks, err := buildSinks(cfg.Notify)
	if err != nil {
		return nil, err
	}

	ctrl, err := app.New(app.ControllerOpts{
		API:      client,
		Store:    session.NewDBStore(gormDB),
		Sinks:    sinks,
		Schedule: cfg.Poll.Schedule,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	return &instance{cfg: cfg, db: gormDB, client: client, ctrl: ctrl, log: log}, nil
}

// buildSinks creates a chat mirror for every configured platform.
func buildSinks(cfg config.NotifyConfig) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if cfg.Slack.Enabled() {
		s, err := slack.New(slack.SinkOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Discord.Enabled() {
		d, err := discord.New(discord.SinkOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
	}
	return sinks, nil
}

// requireSession resumes the persisted session and loads its tickets.
func (in *instance) requireSession(ctx context.Context) (*models.Session, error) {
	s, err := in.ctrl.Session.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if s == nil {
		return nil, errNotLoggedIn
	}
	if err := in.ctrl.Reload(ctx); err != nil {
		return nil, userError(err, app.LoadFailedMessage)
	}
	return s, nil
}

// userError turns API and transport failures into the message the web UI
// would show. Local errors are returned unchanged.
func userError(err error, fallback string) error {
	var (
		apiErr *api.APIError
		tErr   *api.TransportError
	)
	if errors.Is(err, api.ErrNoToken) || errors.As(err, &apiErr) || errors.As(err, &tErr) {
		return errors.New(api.UserMessage(err, fallback))
	}
	return err
}
