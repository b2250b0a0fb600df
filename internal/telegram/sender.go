package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/reminder"
)

// Sender implements the chat delivery boundary over a Telegram bot instance.
// It renders grouped reminders, arrival notices, and the daily stock alert.
type Sender struct {
	bot          *bot.Bot
	logger       *slog.Logger
	lowThreshold int
	publicURL    string
}

// NewSender creates a chat sender. publicURL is used for dashboard links and
// may be empty.
func NewSender(b *bot.Bot, logger *slog.Logger, lowThreshold int, publicURL string) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sender{
		bot:          b,
		logger:       logger.With("component", "chat_sender"),
		lowThreshold: lowThreshold,
		publicURL:    publicURL,
	}
}

// SendGroupedReminder flattens all of a user's triggers for this tick into
// one message: one line per medication/time plus the shared action row.
func (s *Sender) SendGroupedReminder(ctx context.Context, user *database.User, triggers []reminder.Trigger) error {
	if len(triggers) == 0 {
		return nil
	}

	title := "☀️ *Medication time!*"
	if len(triggers) > 1 {
		title = "☀️ *Time for your medications!*"
	}

	var body strings.Builder
	body.WriteString(title + "\n\n")

	keyboardRows := make([][]models.InlineKeyboardButton, 0, len(triggers)+2)

	// Bulk buttons act on one slot; per-medication buttons carry their own.
	timeKey := triggers[0].ScheduledTime

	for _, t := range triggers {
		med := t.Medication
		stock := fmt.Sprintf("%d", med.Inventory)
		if med.Inventory <= s.lowThreshold {
			stock = fmt.Sprintf("⚠️ low (%d)", med.Inventory)
		}
		late := ""
		if t.ElapsedMinutes > 0 {
			late = fmt.Sprintf(" (%dm late)", t.ElapsedMinutes)
		}
		fmt.Fprintf(&body, "💊 *%s* %s\n📦 stock: %s%s\n\n", med.Name, med.Dosage, stock, late)

		keyboardRows = append(keyboardRows, []models.InlineKeyboardButton{
			{Text: "✅ Just " + firstWord(med.Name), CallbackData: reminder.TakeCallback(med.ID, t.ScheduledTime)},
			{Text: "🏠 At home", CallbackData: reminder.SnoozeHomeCallback(med.ID)},
		})
	}

	globalActions := []models.InlineKeyboardButton{
		{Text: "✅ Take all", CallbackData: reminder.TakeAllCallback(timeKey)},
	}
	secondaryActions := []models.InlineKeyboardButton{
		{Text: "💤 Snooze 15m", CallbackData: reminder.SnoozeAllCallback},
		{Text: "🗑️ Discard all", CallbackData: reminder.DiscardAllCallback(timeKey)},
	}
	keyboard := append([][]models.InlineKeyboardButton{globalActions, secondaryActions}, keyboardRows...)

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      user.TelegramID,
		Text:        body.String(),
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: models.InlineKeyboardMarkup{InlineKeyboard: keyboard},
	})
	if err != nil {
		return fmt.Errorf("failed to send grouped reminder to %d: %w", user.TelegramID, err)
	}

	s.logger.InfoContext(ctx, "Grouped reminder sent",
		"telegram_id", user.TelegramID, "medications", len(triggers), "time", timeKey)
	return nil
}

// SendArrivalReminder delivers the immediate, un-grouped reminder fired when
// the geofence gate clears a medication.
func (s *Sender) SendArrivalReminder(ctx context.Context, user *database.User, med database.Medication) error {
	text := fmt.Sprintf("🏠 *You're home!*\n\nTime to take your medication:\n💊 *%s* (%s)", med.Name, med.Dosage)
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    user.TelegramID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send arrival reminder to %d: %w", user.TelegramID, err)
	}
	return nil
}

// SendLowInventoryAlert delivers the daily stock warning with a WhatsApp
// shortcut to the user's doctor and a dashboard link.
func (s *Sender) SendLowInventoryAlert(ctx context.Context, user *database.User, meds []database.Medication) error {
	if len(meds) == 0 {
		return nil
	}

	var body strings.Builder
	body.WriteString("⚠️ *LOW STOCK WARNING*\n\n")
	for _, med := range meds {
		fmt.Fprintf(&body, "💊 *%s*: only *%d* left.\n", med.Name, med.Inventory)
	}

	var keyboard [][]models.InlineKeyboardButton
	if user.DoctorPhone != "" {
		msg := fmt.Sprintf("Hello doctor, this is %s. My medication stock is running out. Could you send me a new prescription?", user.FirstName)
		waURL := "https://wa.me/" + user.DoctorPhone + "?text=" + url.QueryEscape(msg)
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: "📲 Request prescription (WhatsApp)", URL: waURL},
		})
	}
	if s.publicURL != "" {
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: "📦 Manage stock", URL: s.DashboardURL(user.TelegramID)},
		})
	}

	params := &bot.SendMessageParams{
		ChatID:    user.TelegramID,
		Text:      body.String(),
		ParseMode: models.ParseModeMarkdown,
	}
	if len(keyboard) > 0 {
		params.ReplyMarkup = models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send low stock alert to %d: %w", user.TelegramID, err)
	}
	s.logger.InfoContext(ctx, "Low stock alert sent", "telegram_id", user.TelegramID, "medications", len(meds))
	return nil
}

// DashboardURL builds the per-user dashboard link.
func (s *Sender) DashboardURL(telegramID int64) string {
	return fmt.Sprintf("%s/?tid=%d", strings.TrimSuffix(s.publicURL, "/"), telegramID)
}

func firstWord(name string) string {
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}
