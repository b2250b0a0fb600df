// Package tasks implements the scheduled tasks of the medication bot: the
// per-minute reminder scan and the daily low-stock alert.
package tasks

import (
	"log/slog"

	"github.com/pcosta/lembrabot/internal/config"
	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/reminder"
	"github.com/pcosta/lembrabot/internal/telegram"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Engine *reminder.Engine
	Sender *telegram.Sender
	Config *config.Config
}
