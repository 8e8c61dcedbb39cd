package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	adminIDContextKey contextKey = "adminID"
)

// HeaderDeviceID carries the device identity on every authenticated call.
const HeaderDeviceID = "X-Device-ID"

// DeviceAuth resolves the X-Device-ID header to a registered user and puts
// it on the request context. There are no passwords; possession of the
// device id is identity, and the payout path layers signatures on top.
func DeviceAuth(devices *services.DeviceService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := strings.TrimSpace(r.Header.Get(HeaderDeviceID))
			if deviceID == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"message":"Missing X-Device-ID header"}`))
				return
			}

			user, err := devices.Authenticate(r.Context(), deviceID)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				if err == models.ErrNotFound {
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"success":false,"message":"Unknown device. Register first."}`))
				} else {
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"success":false,"message":"Internal server error"}`))
				}
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user placed by DeviceAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok
}

// AdminAuth validates the Bearer session token against Redis and puts the
// admin id on the request context.
func AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")

		adminID, valid, err := services.ValidateAdminSession(token)
		if err != nil || !valid {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Invalid or expired session"}`))
			return
		}

		// Sliding expiration: activity keeps the session alive
		_ = services.RefreshAdminSession(token)

		ctx := context.WithValue(r.Context(), adminIDContextKey, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminIDFromContext returns the admin id placed by AdminAuth.
func AdminIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(adminIDContextKey).(uuid.UUID)
	return id, ok
}
