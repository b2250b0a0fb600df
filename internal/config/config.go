// Package config manages application configuration from defaults, a YAML
// config file, and BOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components: logging,
// Telegram, database, reminder policy, voice dialing, HTTP API, and the
// task scheduler.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and the public URL used in dashboard links.
type TelegramConfig struct {
	Token     string `mapstructure:"token"      validate:"required"`
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
}

// DatabaseConfig holds the SQLite database path.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// HTTPConfig holds the listen address for the voice webhook and dashboard API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// TwilioConfig holds voice dialing credentials. Leaving the account SID
// empty disables outbound calls; escalation boundaries are then skipped and
// the user keeps receiving the regular chat nags.
type TwilioConfig struct {
	AccountSID  string `mapstructure:"account_sid"`
	AuthToken   string `mapstructure:"auth_token"`
	FromNumber  string `mapstructure:"from_number"`
	CallbackURL string `mapstructure:"callback_url" validate:"omitempty,url"`
}

// Enabled reports whether outbound voice calls are configured.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// ReminderConfig holds the elapsed-time policy and related thresholds.
type ReminderConfig struct {
	NagWindowMinutes       int     `mapstructure:"nag_window_minutes"       validate:"required,gt=0"`
	NagStepMinutes         int     `mapstructure:"nag_step_minutes"         validate:"required,gt=0"`
	DefaultNaggingInterval int     `mapstructure:"default_nagging_interval" validate:"required,gt=0"`
	LowInventoryThreshold  int     `mapstructure:"low_inventory_threshold"  validate:"gte=0"`
	DayStartUTCHour        int     `mapstructure:"day_start_utc_hour"       validate:"gte=0,lte=23"`
	ArrivalRadiusMeters    float64 `mapstructure:"arrival_radius_meters"    validate:"gt=0"`
}

// TaskConfig describes one scheduled task.
type TaskConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// SchedulerConfig maps task names to their cron schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Load reads configuration from the given YAML file path (missing file is
// fine, defaults apply), overlays BOT_* environment variables, and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, we'll use defaults and env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	// Secrets default to empty so BOT_* environment overrides are visible
	// to Unmarshal even without a config file entry.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.public_url", "")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.from_number", "")
	v.SetDefault("twilio.callback_url", "")

	v.SetDefault("database.path", "lembrabot.db")

	v.SetDefault("http.addr", ":3000")

	v.SetDefault("reminder.nag_window_minutes", 180)
	v.SetDefault("reminder.nag_step_minutes", 15)
	v.SetDefault("reminder.default_nagging_interval", 30)
	v.SetDefault("reminder.low_inventory_threshold", 15)
	v.SetDefault("reminder.day_start_utc_hour", 3)
	v.SetDefault("reminder.arrival_radius_meters", 200)

	// The scan must tick every minute; the stock alert runs once a day.
	v.SetDefault("scheduler.tasks.reminder_scan.schedule", "* * * * *")
	v.SetDefault("scheduler.tasks.reminder_scan.enabled", true)
	v.SetDefault("scheduler.tasks.low_inventory.schedule", "0 13 * * *")
	v.SetDefault("scheduler.tasks.low_inventory.enabled", true)
}
