package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const startText = `👋 *Hello! I'm your medication assistant.*

I remind you when it's time to take your medications, keep track of your stock, and warn you when it runs low.

*Commands:*
/meds - list your medications
/add - add a medication (name dosage quantity)
/home - save your home location

When a reminder arrives, just tap the buttons.`

// NewStartHandler greets the user and lists the available commands.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "start")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    update.Message.Chat.ID,
			Text:      startText,
			ParseMode: models.ParseModeMarkdown,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send welcome message",
				"chat_id", update.Message.Chat.ID, "error", err)
		}
	}
}
