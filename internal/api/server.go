// Package api hosts the HTTP surface of the bot: the Twilio voice webhook
// and the JSON API backing the medication dashboard.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pcosta/lembrabot/internal/config"
	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
)

// Deps bundles the dependencies of the HTTP handlers.
type Deps struct {
	Logger *slog.Logger
	Store  database.Store
	Doses  *dose.Service
	Config *config.Config
}

// NewRouter assembles the HTTP routes.
func NewRouter(deps Deps) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Store.Ping(req.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/voice", newVoiceHandler(deps))

		r.Group(func(r chi.Router) {
			r.Use(telegramAuth(deps))

			r.Route("/meds", func(r chi.Router) {
				r.Get("/", newListMedsHandler(deps))
				r.Post("/", newCreateMedHandler(deps))
				r.Patch("/{medicationID}", newUpdateMedHandler(deps))
				r.Delete("/{medicationID}", newDeleteMedHandler(deps))
			})
			r.Patch("/user", newUpdateUserHandler(deps))
		})
	})

	return r
}

// NewServer wraps the router in an http.Server bound to the configured address.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
