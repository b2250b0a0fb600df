package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pcosta/lembrabot/internal/database"
)

const addUsageText = "Usage: /add Name Dosage Quantity\nExample: /add Losartan 50mg 30"

// NewAddHandler registers a medication from "/add Name Dosage Quantity".
// The name may contain spaces, so dosage and quantity are parsed from the end.
func NewAddHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "add")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		chatID := update.Message.Chat.ID

		args := strings.Fields(update.Message.Text)
		if len(args) < 4 {
			sendText(ctx, b, log, chatID, addUsageText)
			return
		}

		quantity, err := strconv.Atoi(args[len(args)-1])
		if err != nil || quantity < 0 {
			sendText(ctx, b, log, chatID, "The last word must be the quantity in stock.\n"+addUsageText)
			return
		}
		dosage := args[len(args)-2]
		name := strings.Join(args[1:len(args)-2], " ")

		user, err := deps.Store.GetUserByTelegramID(ctx, update.Message.From.ID)
		if err != nil || user == nil {
			log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", update.Message.From.ID, "error", err)
			sendText(ctx, b, log, chatID, "Something went wrong, please try again.")
			return
		}

		med := &database.Medication{
			UserID:    user.ID,
			Name:      name,
			Dosage:    dosage,
			Inventory: quantity,
		}
		if err := deps.Store.CreateMedication(ctx, med); err != nil {
			log.ErrorContext(ctx, "Failed to create medication", "user_id", user.ID, "error", err)
			sendText(ctx, b, log, chatID, "Could not save the medication, please try again.")
			return
		}

		log.InfoContext(ctx, "Medication added", "user_id", user.ID, "name", name, "inventory", quantity)
		text := fmt.Sprintf("✅ *%s* (%s) added with *%d* in stock.\n\nSet reminder times on the dashboard.", name, dosage, quantity)
		params := &bot.SendMessageParams{ChatID: chatID, Text: text, ParseMode: models.ParseModeMarkdown}
		if deps.Config.Telegram.PublicURL != "" {
			params.ReplyMarkup = models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "🕐 Set times", URL: dashboardURL(deps.Config.Telegram.PublicURL, user.TelegramID)},
			}}}
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			log.ErrorContext(ctx, "Failed to send confirmation", "chat_id", chatID, "error", err)
		}
	}
}
