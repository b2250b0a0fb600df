package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pcosta/lembrabot/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Reminder.NagWindowMinutes != 180 || cfg.Reminder.NagStepMinutes != 15 {
		t.Errorf("default nag policy = %d/%d, want 180/15",
			cfg.Reminder.NagWindowMinutes, cfg.Reminder.NagStepMinutes)
	}
	if cfg.Reminder.DefaultNaggingInterval != 30 {
		t.Errorf("default nagging interval = %d, want 30", cfg.Reminder.DefaultNaggingInterval)
	}
	if cfg.Reminder.DayStartUTCHour != 3 {
		t.Errorf("default day start = %d, want 3", cfg.Reminder.DayStartUTCHour)
	}
	if got := cfg.Scheduler.Tasks["reminder_scan"].Schedule; got != "* * * * *" {
		t.Errorf("default scan schedule = %q, want every minute", got)
	}
	if cfg.Twilio.Enabled() {
		t.Error("twilio must be disabled without credentials")
	}
}

func TestLoadMissingToken(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load should fail without a telegram token")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")
	t.Setenv("BOT_LOG_LEVEL", "debug")
	t.Setenv("BOT_DATABASE_PATH", "/tmp/override.db")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env override log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("env override db path = %q", cfg.Database.Path)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123:abc")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should fall back to defaults: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token from env = %q", cfg.Telegram.Token)
	}
}

func TestTwilioEnabled(t *testing.T) {
	cfg := config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550001111"}
	if !cfg.Enabled() {
		t.Error("fully configured twilio must report enabled")
	}
	cfg.FromNumber = ""
	if cfg.Enabled() {
		t.Error("twilio without a from number must report disabled")
	}
}
