package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/config"
	"github.com/zulandar/quickdesk/internal/db"
	"github.com/zulandar/quickdesk/internal/logger"
	"github.com/zulandar/quickdesk/internal/session"
	"gorm.io/gorm"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long:  "Runs diagnostic checks on the QuickDesk setup: config, session store, help-desk API health, persisted session and notification mirrors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QuickDesk config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "QuickDesk Doctor")
	fmt.Fprintln(out, "================")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	var gormDB *gorm.DB
	if cfg != nil {
		var r checkResult
		gormDB, r = checkStore(cfg.Store)
		results = append(results, r)
		results = append(results, checkAPI(cmd.Context(), cfg.API))
	} else {
		results = append(results,
			checkResult{"Session store", "FAIL", "skipped (no config)"},
			checkResult{"API", "FAIL", "skipped (no config)"},
		)
	}

	if gormDB != nil {
		results = append(results, checkSession(cmd.Context(), gormDB))
	} else {
		results = append(results, checkResult{"Session", "FAIL", "skipped (no store)"})
	}

	if cfg != nil {
		results = append(results, checkNotify(cfg.Notify))
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

func checkStore(cfg config.StoreConfig) (*gorm.DB, checkResult) {
	label := cfg.Driver
	if cfg.Driver == "sqlite" {
		label = "sqlite " + cfg.Path
	}
	gormDB, err := db.Open(cfg)
	if err != nil {
		return nil, checkResult{"Session store", "FAIL", fmt.Sprintf("%s: %v", label, err)}
	}
	if err := db.Ping(gormDB); err != nil {
		return nil, checkResult{"Session store", "FAIL", fmt.Sprintf("%s: %v", label, err)}
	}
	return gormDB, checkResult{"Session store", "PASS", label}
}

func checkAPI(ctx context.Context, cfg config.APIConfig) checkResult {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client, err := api.NewClient(api.ClientOpts{
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
		Logger:  logger.New(io.Discard, "error"),
	})
	if err != nil {
		return checkResult{"API", "FAIL", err.Error()}
	}
	hs, err := client.Health(ctx)
	if err != nil {
		return checkResult{"API", "FAIL", fmt.Sprintf("%s: %v", cfg.BaseURL, err)}
	}
	if !strings.EqualFold(hs.Status, "healthy") {
		detail := fmt.Sprintf("%s reports %q", cfg.BaseURL, hs.Status)
		if hs.Error != "" {
			if api.IsDatastoreOutage(hs.Error) {
				detail += ": " + api.DatastoreOutageMessage
			} else {
				detail += ": " + hs.Error
			}
		}
		return checkResult{"API", "FAIL", detail}
	}
	return checkResult{"API", "PASS", cfg.BaseURL + " healthy"}
}

func checkSession(ctx context.Context, gormDB *gorm.DB) checkResult {
	mgr, err := session.NewManager(session.ManagerOpts{Store: session.NewDBStore(gormDB), Auth: noAuth{}})
	if err != nil {
		return checkResult{"Session", "FAIL", err.Error()}
	}
	s, err := mgr.Restore(ctx)
	if err != nil {
		return checkResult{"Session", "FAIL", err.Error()}
	}
	if s == nil {
		return checkResult{"Session", "WARN", "not logged in"}
	}
	return checkResult{"Session", "PASS", fmt.Sprintf("logged in as %s (%s)", s.User.Name, s.User.Role.Label())}
}

func checkNotify(cfg config.NotifyConfig) checkResult {
	var enabled []string
	if cfg.Slack.Enabled() {
		enabled = append(enabled, "slack #"+strings.TrimPrefix(cfg.Slack.Channel, "#"))
	}
	if cfg.Discord.Enabled() {
		enabled = append(enabled, "discord "+cfg.Discord.Channel)
	}
	if len(enabled) == 0 {
		return checkResult{"Notifications", "PASS", "no chat mirrors configured"}
	}
	if _, err := buildSinks(cfg); err != nil {
		return checkResult{"Notifications", "FAIL", err.Error()}
	}
	return checkResult{"Notifications", "PASS", strings.Join(enabled, ", ")}
}

// noAuth satisfies session.Authenticator for read-only session checks.
type noAuth struct{}

func (noAuth) Login(context.Context, string, string) (*api.LoginResult, error) {
	return nil, fmt.Errorf("doctor: login not supported")
}

func (noAuth) Register(context.Context, api.RegisterRequest) (string, error) {
	return "", fmt.Errorf("doctor: register not supported")
}
