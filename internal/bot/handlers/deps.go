// Package handlers implements Telegram command and callback handlers for the
// medication reminder bot.
package handlers

import (
	"log/slog"

	"github.com/pcosta/lembrabot/internal/config"
	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
	"github.com/pcosta/lembrabot/internal/geofence"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	Doses  *dose.Service
	Gate   *geofence.Gate
}
