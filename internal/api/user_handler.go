package api

import (
	"encoding/json"
	"net/http"
)

// newUpdateUserHandler saves the reminder settings editable from the
// dashboard: doctor's phone, the user's own phone, and the minute interval
// between voice-call escalations.
func newUpdateUserHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "api_user_update")

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())

		var body struct {
			DoctorPhone     *string `json:"doctor_phone"`
			PhoneNumber     *string `json:"phone_number"`
			NaggingInterval *int    `json:"nagging_interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed json body")
			return
		}

		doctorPhone := user.DoctorPhone
		phoneNumber := user.PhoneNumber
		naggingInterval := user.NaggingInterval
		if body.DoctorPhone != nil {
			doctorPhone = *body.DoctorPhone
		}
		if body.PhoneNumber != nil {
			phoneNumber = *body.PhoneNumber
		}
		if body.NaggingInterval != nil {
			naggingInterval = *body.NaggingInterval
		}
		if naggingInterval <= 0 {
			writeError(w, http.StatusBadRequest, "nagging_interval must be positive")
			return
		}

		if err := deps.Store.UpdateUserSettings(r.Context(), user.ID, doctorPhone, phoneNumber, naggingInterval); err != nil {
			log.ErrorContext(r.Context(), "Failed to update user settings", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"doctor_phone":     doctorPhone,
			"phone_number":     phoneNumber,
			"nagging_interval": naggingInterval,
		})
	}
}
