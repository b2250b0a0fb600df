package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
	"github.com/pcosta/lembrabot/internal/geofence"
	"github.com/pcosta/lembrabot/internal/reminder"
)

// NewCallbackHandler dispatches every inline-keyboard token to the matching
// dose or geofence action.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	log := deps.Logger.With("handler", "callbacks")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		cb := update.CallbackQuery
		if cb == nil {
			return
		}

		action, medID, slot := reminder.ParseCallback(cb.Data)
		switch action {
		case reminder.ActionTake:
			handleTake(ctx, b, deps, log, cb, medID, slot)
		case reminder.ActionDiscard:
			handleDiscard(ctx, b, deps, log, cb, medID)
		case reminder.ActionTakeAll:
			handleTakeAll(ctx, b, deps, log, cb, slot)
		case reminder.ActionDiscardAll:
			handleDiscardAll(ctx, b, deps, log, cb, slot)
		case reminder.ActionSnoozeAll:
			handleSnoozeAll(ctx, b, log, cb)
		case reminder.ActionSnoozeHome:
			handleSnoozeHome(ctx, b, deps, log, cb, medID)
		default:
			log.WarnContext(ctx, "Unknown callback token", "data", cb.Data)
			answerCallback(ctx, b, log, cb.ID, "", false)
		}
	}
}

func handleTake(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, cb *models.CallbackQuery, medID, slot string) {
	result, err := deps.Doses.TakeDose(ctx, medID, slot)
	switch {
	case errors.Is(err, dose.ErrDepleted):
		answerCallback(ctx, b, log, cb.ID, "📦 Out of stock! Restock before taking.", true)
		return
	case errors.Is(err, dose.ErrNotFound):
		answerCallback(ctx, b, log, cb.ID, "This medication no longer exists.", true)
		return
	case err != nil:
		log.ErrorContext(ctx, "Take failed", "medication_id", medID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	answerCallback(ctx, b, log, cb.ID, "✅ Recorded!", false)
	editReminderMessage(ctx, b, log, cb, fmt.Sprintf("✅ *%s* taken! 📦 %d left.",
		result.Medication.Name, result.NewInventory))
}

func handleDiscard(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, cb *models.CallbackQuery, medID string) {
	med, err := deps.Doses.SkipDose(ctx, medID, "")
	if err != nil {
		log.ErrorContext(ctx, "Discard failed", "medication_id", medID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}
	answerCallback(ctx, b, log, cb.ID, "🗑️ Recorded.", false)
	editReminderMessage(ctx, b, log, cb, fmt.Sprintf("🗑️ *%s* dose discarded.", med.Name))
}

// handleTakeAll takes every pending medication scheduled at the slot. Slots
// already taken or skipped today are left alone, so tapping the button twice
// never double-decrements stock.
func handleTakeAll(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, cb *models.CallbackQuery, slot string) {
	user, err := deps.Store.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil || user == nil {
		log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", cb.From.ID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	pending, err := pendingAtSlot(ctx, deps, user.ID, slot)
	if err != nil {
		log.ErrorContext(ctx, "Failed to collect pending medications", "user_id", user.ID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}
	if len(pending) == 0 {
		answerCallback(ctx, b, log, cb.ID, "Already recorded for this time. 👍", false)
		return
	}

	var taken []string
	for _, med := range pending {
		result, terr := deps.Doses.TakeDose(ctx, med.ID, slot)
		if terr != nil {
			log.WarnContext(ctx, "Bulk take skipped medication",
				"medication_id", med.ID, "error", terr)
			continue
		}
		taken = append(taken, result.Medication.Name)
	}

	answerCallback(ctx, b, log, cb.ID, "✅ Recorded!", false)
	if len(taken) > 0 {
		editReminderMessage(ctx, b, log, cb,
			fmt.Sprintf("✅ Taken at %s:\n💊 %s", slot, strings.Join(taken, "\n💊 ")))
	}
}

func handleDiscardAll(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, cb *models.CallbackQuery, slot string) {
	user, err := deps.Store.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil || user == nil {
		log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", cb.From.ID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	pending, err := pendingAtSlot(ctx, deps, user.ID, slot)
	if err != nil {
		log.ErrorContext(ctx, "Failed to collect pending medications", "user_id", user.ID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	for _, med := range pending {
		if _, serr := deps.Doses.SkipDose(ctx, med.ID, slot); serr != nil {
			log.WarnContext(ctx, "Bulk discard skipped medication",
				"medication_id", med.ID, "error", serr)
		}
	}

	answerCallback(ctx, b, log, cb.ID, "🗑️ Recorded.", false)
	editReminderMessage(ctx, b, log, cb, fmt.Sprintf("🗑️ Doses at %s discarded.", slot))
}

func handleSnoozeAll(ctx context.Context, b *bot.Bot, log *slog.Logger, cb *models.CallbackQuery) {
	answerCallback(ctx, b, log, cb.ID, "💤 Snoozed. I'll remind you again soon.", false)
	if msg := cb.Message.Message; msg != nil {
		_, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to delete snoozed reminder", "chat_id", msg.Chat.ID, "error", err)
		}
	}
}

func handleSnoozeHome(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, cb *models.CallbackQuery, medID string) {
	user, err := deps.Store.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil || user == nil {
		log.ErrorContext(ctx, "Failed to resolve user", "telegram_id", cb.From.ID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	err = deps.Gate.Defer(ctx, user.ID, medID)
	if errors.Is(err, geofence.ErrNoHome) {
		answerCallback(ctx, b, log, cb.ID, "Save your home first with /home.", true)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Defer failed", "medication_id", medID, "error", err)
		answerCallback(ctx, b, log, cb.ID, "Something went wrong, please try again.", true)
		return
	}

	answerCallback(ctx, b, log, cb.ID, "🏠 OK!", false)
	if msg := cb.Message.Message; msg != nil {
		_, serr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    msg.Chat.ID,
			Text:      "🏠 Got it! Share your *live location* and I'll remind you as soon as you arrive home.",
			ParseMode: models.ParseModeMarkdown,
		})
		if serr != nil {
			log.ErrorContext(ctx, "Failed to send live-location prompt", "chat_id", msg.Chat.ID, "error", serr)
		}
	}
}

// pendingAtSlot returns the user's medications scheduled at the slot that
// have no taken/skipped log entry for it today.
func pendingAtSlot(ctx context.Context, deps HandlerDeps, userID, slot string) ([]database.Medication, error) {
	scheduled, err := deps.Store.FindMedicationsByScheduleTime(ctx, userID, slot)
	if err != nil {
		return nil, err
	}
	if len(scheduled) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(scheduled))
	for i := range scheduled {
		ids = append(ids, scheduled[i].ID)
	}

	logs, err := deps.Doses.DailyLogs(ctx, ids)
	if err != nil {
		return nil, err
	}

	pending := scheduled[:0]
	for _, med := range scheduled {
		if !dose.IsHandled(logs, med.ID, slot) {
			pending = append(pending, med)
		}
	}
	return pending, nil
}

func answerCallback(ctx context.Context, b *bot.Bot, log *slog.Logger, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err)
	}
}

func editReminderMessage(ctx context.Context, b *bot.Bot, log *slog.Logger, cb *models.CallbackQuery, text string) {
	msg := cb.Message.Message
	if msg == nil {
		return
	}
	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to edit reminder message", "chat_id", msg.Chat.ID, "error", err)
	}
}
