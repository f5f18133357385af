// Package config provides YAML-based configuration loading for QuickDesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment overrides, read after the YAML file (and after any .env file).
const (
	EnvAPIURL       = "QUICKDESK_API_URL"
	EnvSlackToken   = "QUICKDESK_SLACK_BOT_TOKEN"
	EnvDiscordToken = "QUICKDESK_DISCORD_BOT_TOKEN"
)

// ScheduleParser accepts standard 5-field cron expressions and descriptors
// such as "@every 60s".
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config is the top-level QuickDesk configuration, loaded from quickdesk.yaml.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Web    WebConfig    `yaml:"web"`
	Store  StoreConfig  `yaml:"store"`
	Poll   PollConfig   `yaml:"poll"`
	Log    LogConfig    `yaml:"log"`
	Notify NotifyConfig `yaml:"notify"`
}

// APIConfig points at the remote help-desk API.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"` // 0 = no timeout
}

// WebConfig controls the local UI server.
type WebConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig selects where the persisted session lives.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // mysql DSN
}

// PollConfig controls the background ticket refresh.
type PollConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 60s"
}

// LogConfig sets the zerolog level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// NotifyConfig configures chat mirrors for status-change alerts.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials for alert mirroring.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Enabled reports whether Slack mirroring is configured.
func (s SlackConfig) Enabled() bool { return s.BotToken != "" && s.Channel != "" }

// DiscordConfig holds Discord credentials for alert mirroring.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Enabled reports whether Discord mirroring is configured.
func (d DiscordConfig) Enabled() bool { return d.BotToken != "" && d.Channel != "" }

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config, if present, is loaded into the process
// environment first so its values can override secrets and the API URL.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	envPath := strings.TrimSuffix(path, baseName(path)) + ".env"
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment values onto the parsed file.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := getenv(EnvSlackToken); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := getenv(EnvDiscordToken); v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "quickdesk.db"
	}
	if c.Poll.Schedule == "" {
		c.Poll.Schedule = "@every 60s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.TimeoutSec < 0 {
		errs = append(errs, "api.timeout_sec must not be negative")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Sprintf("web.port %d out of range", c.Web.Port))
	}
	switch c.Store.Driver {
	case "sqlite":
	case "mysql":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the mysql driver")
		} else if _, err := mysqldrv.ParseDSN(c.Store.DSN); err != nil {
			errs = append(errs, fmt.Sprintf("store.dsn: %v", err))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, mysql)", c.Store.Driver))
	}
	if _, err := ScheduleParser.Parse(c.Poll.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("poll.schedule %q: %v", c.Poll.Schedule, err))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MySQLDSN returns the configured DSN with parseTime forced on.
func (s StoreConfig) MySQLDSN() (string, error) {
	cfg, err := mysqldrv.ParseDSN(s.DSN)
	if err != nil {
		return "", fmt.Errorf("config: store.dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
