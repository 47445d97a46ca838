// Package config loads fintrack settings from a TOML file, an optional .env
// file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all fintrack configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Admin     AdminConfig     `toml:"admin"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Environment    string   `toml:"environment"`
	SecureCookie   bool     `toml:"secure_cookie"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SchedulerConfig holds the cron specs and sweep bounds.
type SchedulerConfig struct {
	Enabled               bool     `toml:"enabled"`
	Timezone              string   `toml:"timezone"`
	BudgetAlerts          string   `toml:"budget_alerts"`
	SubscriptionReminders string   `toml:"subscription_reminders"`
	Reconcile             string   `toml:"reconcile"`
	Workers               int      `toml:"workers"`
	ItemTimeout           Duration `toml:"item_timeout"`
	ReminderCooldown      Duration `toml:"reminder_cooldown"`
}

// NotifyConfig holds delivery channel settings. A channel is enabled when
// its credentials are present.
type NotifyConfig struct {
	Currency string         `toml:"currency"`
	Timeout  Duration       `toml:"timeout"`
	Email    EmailConfig    `toml:"email"`
	Discord  DiscordConfig  `toml:"discord"`
	Telegram TelegramConfig `toml:"telegram"`
}

// EmailConfig holds SMTP relay settings.
type EmailConfig struct {
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	From     string `toml:"from,omitempty"`
}

// DiscordConfig holds the bot token and target channel.
type DiscordConfig struct {
	Token     string `toml:"token,omitempty"`
	ChannelID string `toml:"channel_id,omitempty"`
}

// TelegramConfig holds the bot token and target chat.
type TelegramConfig struct {
	Token  string `toml:"token,omitempty"`
	ChatID int64  `toml:"chat_id,omitempty"`
}

// AdminConfig seeds the first account when the database has no users.
type AdminConfig struct {
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Environment:    EnvProduction,
			RequestTimeout: Duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Path: "fintrack.db",
		},
		Scheduler: SchedulerConfig{
			Enabled:               true,
			Timezone:              "Local",
			BudgetAlerts:          "0 20 * * *",
			SubscriptionReminders: "0 9 * * *",
			Reconcile:             "30 3 * * *",
			Workers:               4,
			ItemTimeout:           Duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Currency: "₹",
			Timeout:  Duration{10 * time.Second},
			Email:    EmailConfig{Port: 587},
		},
	}
}

// Path returns the config file to read: flagValue if set, else
// $FINTRACK_CONFIG. An empty result means defaults only.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("FINTRACK_CONFIG")
}

// LoadDotEnv loads .env into the process environment when the file exists.
// Variables already set are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config file at path on top of the defaults, then applies
// environment overrides. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	str("APP_ENV", &cfg.Server.Environment)
	if v := os.Getenv("SECURE_COOKIE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SECURE_COOKIE: %w", err)
		}
		cfg.Server.SecureCookie = b
	}
	str("DB_PATH", &cfg.Database.Path)
	str("TZ_NAME", &cfg.Scheduler.Timezone)
	str("ADMIN_USER", &cfg.Admin.User)
	str("ADMIN_PASSWORD", &cfg.Admin.Password)

	str("SMTP_HOST", &cfg.Notify.Email.Host)
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.Notify.Email.Port = port
	}
	str("SMTP_USER", &cfg.Notify.Email.Username)
	str("SMTP_PASSWORD", &cfg.Notify.Email.Password)
	str("SMTP_FROM", &cfg.Notify.Email.From)

	str("DISCORD_BOT_TOKEN", &cfg.Notify.Discord.Token)
	str("DISCORD_CHANNEL_ID", &cfg.Notify.Discord.ChannelID)
	str("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.Token)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Notify.Telegram.ChatID = id
	}
	return nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("server.environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Server.Environment)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the scheduler timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// Development reports whether error details may be shown to clients.
func (c Config) Development() bool {
	return c.Server.Environment == EnvDevelopment
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Notify.Email.Password)
	mask(&c.Notify.Discord.Token)
	mask(&c.Notify.Telegram.Token)
	mask(&c.Admin.Password)
	return c
}
