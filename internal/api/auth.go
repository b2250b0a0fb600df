package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pcosta/lembrabot/internal/database"
)

type contextKey string

const userContextKey contextKey = "api_user"

// telegramAuth resolves the calling user from the X-Telegram-ID header or
// the tid query parameter. The dashboard is reached through per-user links
// carrying the id, so this is identification rather than authentication.
func telegramAuth(deps Deps) func(http.Handler) http.Handler {
	log := deps.Logger.With("component", "api_auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-Telegram-ID")
			if raw == "" {
				raw = r.URL.Query().Get("tid")
			}
			telegramID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || telegramID == 0 {
				writeError(w, http.StatusUnauthorized, "missing or invalid telegram id")
				return
			}

			user, err := deps.Store.GetUserByTelegramID(r.Context(), telegramID)
			if err != nil {
				log.ErrorContext(r.Context(), "User lookup failed", "telegram_id", telegramID, "error", err)
				writeError(w, http.StatusInternalServerError, "user lookup failed")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
		})
	}
}

func userFromContext(ctx context.Context) *database.User {
	user, _ := ctx.Value(userContextKey).(*database.User)
	return user
}
