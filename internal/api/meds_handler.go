package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pcosta/lembrabot/internal/database"
)

// medicationJSON is the dashboard representation of a medication. Schedule
// times travel as a plain string array instead of the stored JSON column.
type medicationJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Dosage       string   `json:"dosage"`
	Inventory    int      `json:"inventory"`
	Times        []string `json:"times"`
	RemindAtHome bool     `json:"remind_at_home"`
}

func toMedicationJSON(med *database.Medication) medicationJSON {
	times, err := med.ScheduleTimes()
	if err != nil {
		times = nil
	}
	if times == nil {
		times = []string{}
	}
	return medicationJSON{
		ID:           med.ID,
		Name:         med.Name,
		Dosage:       med.Dosage,
		Inventory:    med.Inventory,
		Times:        times,
		RemindAtHome: med.RemindAtHome,
	}
}

func newListMedsHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "api_meds_list")

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())

		meds, err := deps.Store.ListMedicationsByUser(r.Context(), user.ID)
		if err != nil {
			log.ErrorContext(r.Context(), "Failed to list medications", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list medications")
			return
		}

		out := make([]medicationJSON, 0, len(meds))
		for i := range meds {
			out = append(out, toMedicationJSON(&meds[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func newCreateMedHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "api_meds_create")

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())

		var body struct {
			Name      string   `json:"name"`
			Dosage    string   `json:"dosage"`
			Inventory int      `json:"inventory"`
			Times     []string `json:"times"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed json body")
			return
		}
		if body.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if body.Inventory < 0 {
			writeError(w, http.StatusBadRequest, "inventory cannot be negative")
			return
		}

		times, err := database.EncodeScheduleTimes(body.Times)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid schedule times")
			return
		}

		med := &database.Medication{
			UserID:    user.ID,
			Name:      body.Name,
			Dosage:    body.Dosage,
			Inventory: body.Inventory,
			Times:     times,
		}
		if err := deps.Store.CreateMedication(r.Context(), med); err != nil {
			log.ErrorContext(r.Context(), "Failed to create medication", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create medication")
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationJSON(med))
	}
}

func newUpdateMedHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "api_meds_update")

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		med, ok := ownedMedication(w, r, deps, user.ID)
		if !ok {
			return
		}

		var body struct {
			Times        *[]string `json:"times"`
			Inventory    *int      `json:"inventory"`
			RemindAtHome *bool     `json:"remind_at_home"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed json body")
			return
		}

		if body.Times != nil {
			encoded, err := database.EncodeScheduleTimes(*body.Times)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid schedule times")
				return
			}
			if err := deps.Store.UpdateMedicationSchedule(r.Context(), med.ID, encoded); err != nil {
				log.ErrorContext(r.Context(), "Failed to update schedule", "medication_id", med.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to update schedule")
				return
			}
			med.Times = encoded
		}
		if body.Inventory != nil {
			if *body.Inventory < 0 {
				writeError(w, http.StatusBadRequest, "inventory cannot be negative")
				return
			}
			if err := deps.Store.UpdateMedicationInventory(r.Context(), med.ID, *body.Inventory); err != nil {
				log.ErrorContext(r.Context(), "Failed to update inventory", "medication_id", med.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to update inventory")
				return
			}
			med.Inventory = *body.Inventory
		}
		if body.RemindAtHome != nil {
			if err := deps.Store.SetRemindAtHome(r.Context(), med.ID, *body.RemindAtHome); err != nil {
				log.ErrorContext(r.Context(), "Failed to update remind-at-home flag", "medication_id", med.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to update remind-at-home flag")
				return
			}
			med.RemindAtHome = *body.RemindAtHome
		}

		writeJSON(w, http.StatusOK, toMedicationJSON(med))
	}
}

func newDeleteMedHandler(deps Deps) http.HandlerFunc {
	log := deps.Logger.With("handler", "api_meds_delete")

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		med, ok := ownedMedication(w, r, deps, user.ID)
		if !ok {
			return
		}

		if err := deps.Store.DeleteMedication(r.Context(), med.ID); err != nil {
			log.ErrorContext(r.Context(), "Failed to delete medication", "medication_id", med.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete medication")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ownedMedication loads the path medication and enforces that it belongs to
// the authenticated user. Foreign medications read as not found.
func ownedMedication(w http.ResponseWriter, r *http.Request, deps Deps, userID string) (*database.Medication, bool) {
	medID := chi.URLParam(r, "medicationID")
	med, err := deps.Store.GetMedication(r.Context(), medID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load medication")
		return nil, false
	}
	if med == nil || med.UserID != userID {
		writeError(w, http.StatusNotFound, "medication not found")
		return nil, false
	}
	return med, true
}
