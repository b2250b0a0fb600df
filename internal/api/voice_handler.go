package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pcosta/lembrabot/internal/voice"
)

// newVoiceHandler answers Twilio's webhook for reminder calls. The first
// request (no Digits) returns the DTMF prompt; the follow-up carries the
// pressed digit: 1 records every medication at the slot as taken, 2 just
// hangs up so the scan nags again, 3 records a skip.
func newVoiceHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "voice_webhook")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "malformed form body")
			return
		}

		medID := r.URL.Query().Get("medId")
		scheduledTime := r.URL.Query().Get("scheduledTime")
		medNames := splitNames(r.URL.Query().Get("medNames"))
		digits := r.PostFormValue("Digits")

		log.InfoContext(r.Context(), "Voice webhook hit",
			"medication_id", medID, "scheduled_time", scheduledTime, "digits", digits)

		switch digits {
		case "":
			body, err := voice.PromptTwiML(medNames)
			writeTwiML(w, log, body, err)

		case "1":
			med, err := deps.Store.GetMedication(r.Context(), medID)
			if err != nil || med == nil {
				log.ErrorContext(r.Context(), "Cannot resolve medication for take-all",
					"medication_id", medID, "error", err)
				body, err := voice.FarewellTwiML("Sorry, something went wrong. Goodbye!")
				writeTwiML(w, log, body, err)
				return
			}
			if _, err := deps.Doses.TakeAllAtTime(r.Context(), med.UserID, scheduledTime); err != nil {
				log.ErrorContext(r.Context(), "Bulk take from call failed",
					"medication_id", medID, "error", err)
				body, err := voice.FarewellTwiML("Sorry, something went wrong. Goodbye!")
				writeTwiML(w, log, body, err)
				return
			}
			body, err := voice.FarewellTwiML("Great! I recorded your medications as taken. Goodbye!")
			writeTwiML(w, log, body, err)

		case "2":
			// Nothing is recorded; the next nag boundary re-fires.
			body, err := voice.FarewellTwiML("Alright, I will remind you again soon. Goodbye!")
			writeTwiML(w, log, body, err)

		case "3":
			if _, err := deps.Doses.SkipDose(r.Context(), medID, scheduledTime); err != nil {
				log.ErrorContext(r.Context(), "Skip from call failed",
					"medication_id", medID, "error", err)
			}
			body, err := voice.FarewellTwiML("Understood, this dose is skipped. Goodbye!")
			writeTwiML(w, log, body, err)

		default:
			body, err := voice.PromptTwiML(medNames)
			writeTwiML(w, log, body, err)
		}
	}
}

func writeTwiML(w http.ResponseWriter, log *slog.Logger, body []byte, err error) {
	if err != nil {
		log.Error("Failed to render twiml", "error", err)
		http.Error(w, "twiml rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write(body)
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
