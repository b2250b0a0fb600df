package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pcosta/lembrabot/internal/database"
)

// EnsureUser returns middleware that auto-registers users on first private
// contact, so every later handler can assume the sender exists in the store.
func EnsureUser(deps HandlerDeps) bot.Middleware {
	log := deps.Logger.With("component", "ensure_user")

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if msg := update.Message; msg != nil && msg.From != nil && msg.Chat.Type == models.ChatTypePrivate {
				existing, err := deps.Store.GetUserByTelegramID(ctx, msg.From.ID)
				if err != nil {
					log.ErrorContext(ctx, "User lookup failed", "telegram_id", msg.From.ID, "error", err)
				} else if existing == nil {
					user := &database.User{
						TelegramID: msg.From.ID,
						Username:   msg.From.Username,
						FirstName:  msg.From.FirstName,
					}
					if err := deps.Store.CreateUser(ctx, user); err != nil {
						log.ErrorContext(ctx, "User registration failed", "telegram_id", msg.From.ID, "error", err)
					} else {
						log.InfoContext(ctx, "New user registered",
							"telegram_id", msg.From.ID, "first_name", msg.From.FirstName)
					}
				}
			}
			next(ctx, b, update)
		}
	}
}
