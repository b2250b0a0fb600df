package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/timeutil"
)

// NewMedsHandler lists the user's medications grouped by period of day.
func NewMedsHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "meds")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		chatID := update.Message.Chat.ID

		user, err := deps.Store.GetUserByTelegramID(ctx, update.Message.From.ID)
		if err != nil || user == nil {
			log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", update.Message.From.ID, "error", err)
			sendText(ctx, b, log, chatID, "Something went wrong, please try again.")
			return
		}

		meds, err := deps.Store.ListMedicationsByUser(ctx, user.ID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list medications", "user_id", user.ID, "error", err)
			sendText(ctx, b, log, chatID, "Something went wrong, please try again.")
			return
		}
		if len(meds) == 0 {
			sendText(ctx, b, log, chatID, "You have no medications yet. Add one with /add Name Dosage Quantity.")
			return
		}

		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      formatMedList(meds),
			ParseMode: models.ParseModeMarkdown,
		}
		if deps.Config.Telegram.PublicURL != "" {
			params.ReplyMarkup = models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "🖥️ Open dashboard", URL: dashboardURL(deps.Config.Telegram.PublicURL, user.TelegramID)},
			}}}
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			log.ErrorContext(ctx, "Failed to send medication list", "chat_id", chatID, "error", err)
		}
	}
}

// formatMedList renders medications under morning/afternoon/evening headers
// based on their first scheduled dose; unscheduled ones land in a final group.
func formatMedList(meds []database.Medication) string {
	type group struct {
		title string
		lines []string
	}
	groups := []group{
		{title: "🌅 *Morning*"},
		{title: "🌞 *Afternoon*"},
		{title: "🌙 *Evening*"},
		{title: "📋 *No schedule*"},
	}

	for i := range meds {
		med := &meds[i]
		times, err := med.ScheduleTimes()

		idx := 3
		if err == nil && len(times) > 0 {
			if h, _, ok := timeutil.Parse(times[0]); ok {
				switch {
				case h >= 5 && h < 12:
					idx = 0
				case h >= 12 && h < 18:
					idx = 1
				default:
					idx = 2
				}
			}
		}

		line := fmt.Sprintf("💊 *%s* %s · 📦 %d", med.Name, med.Dosage, med.Inventory)
		if len(times) > 0 {
			line += " · 🕐 " + strings.Join(times, ", ")
		}
		groups[idx].lines = append(groups[idx].lines, line)
	}

	var body strings.Builder
	body.WriteString("📋 *Your medications*\n")
	for _, g := range groups {
		if len(g.lines) == 0 {
			continue
		}
		body.WriteString("\n" + g.title + "\n")
		for _, l := range g.lines {
			body.WriteString(l + "\n")
		}
	}
	return body.String()
}

func dashboardURL(publicURL string, telegramID int64) string {
	return fmt.Sprintf("%s/?tid=%d", strings.TrimSuffix(publicURL, "/"), telegramID)
}
