package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHomeHandler asks the user to share a location to save as home. The
// actual coordinate arrives as a location message picked up by the default
// handler.
func NewHomeHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "home")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "📍 Share your location and I'll save it as your home. Reminders deferred with \"At home\" fire when you get back.",
			ReplyMarkup: models.ReplyKeyboardMarkup{
				Keyboard: [][]models.KeyboardButton{{
					{Text: "📍 Send my location", RequestLocation: true},
				}},
				ResizeKeyboard:  true,
				OneTimeKeyboard: true,
			},
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to request location",
				"chat_id", update.Message.Chat.ID, "error", err)
		}
	}
}
