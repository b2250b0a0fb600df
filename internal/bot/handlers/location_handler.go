package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLocationHandler is registered as the default handler. It reacts to two
// kinds of updates: a plain location message saves the user's home, and an
// edited message carrying a live location is checked against the geofence,
// releasing any deferred medications on arrival.
func NewLocationHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "location")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		switch {
		case update.Message != nil && update.Message.Location != nil:
			handleHomeLocation(ctx, b, deps, log, update.Message)
		case update.EditedMessage != nil && update.EditedMessage.Location != nil:
			handleLiveLocation(ctx, b, deps, log, update.EditedMessage)
		}
	}
}

func handleHomeLocation(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, msg *models.Message) {
	if msg.From == nil {
		return
	}
	user, err := deps.Store.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil || user == nil {
		log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", msg.From.ID, "error", err)
		return
	}

	if err := deps.Gate.SetHome(ctx, user.ID, msg.Location.Latitude, msg.Location.Longitude); err != nil {
		log.ErrorContext(ctx, "Failed to save home", "user_id", user.ID, "error", err)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        "🏠 Home saved! Deferred reminders will fire when you arrive.",
		ReplyMarkup: models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to confirm home", "chat_id", msg.Chat.ID, "error", err)
	}
}

func handleLiveLocation(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, msg *models.Message) {
	if msg.From == nil {
		return
	}
	user, err := deps.Store.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil || user == nil {
		return
	}

	arrived, err := deps.Gate.CheckArrival(ctx, user.ID, msg.Location.Latitude, msg.Location.Longitude)
	if err != nil {
		log.ErrorContext(ctx, "Arrival check failed", "user_id", user.ID, "error", err)
		return
	}

	for _, med := range arrived {
		text := fmt.Sprintf("🏠 *You're home!*\n\nTime to take your medication:\n💊 *%s* (%s)", med.Name, med.Dosage)
		_, serr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      text,
			ParseMode: models.ParseModeMarkdown,
		})
		if serr != nil {
			log.ErrorContext(ctx, "Failed to send arrival reminder",
				"chat_id", msg.Chat.ID, "medication_id", med.ID, "error", serr)
		}
	}
}
