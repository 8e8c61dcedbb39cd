package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

// Package-global services, set once at startup by Init.
var (
	deviceService   *services.DeviceService
	progressService *services.ProgressService
	earningService  *services.EarningService
	payoutService   *services.PayoutService
	settingsService *services.SettingsService
	versionService  *services.VersionService
	adminStore      store.Store
)

// Init wires the handler package to its services. Must be called before
// the router is mounted.
func Init(
	devices *services.DeviceService,
	progress *services.ProgressService,
	earning *services.EarningService,
	payouts *services.PayoutService,
	settings *services.SettingsService,
	version *services.VersionService,
	st store.Store,
) {
	deviceService = devices
	progressService = progress
	earningService = earning
	payoutService = payouts
	settingsService = settings
	versionService = version
	adminStore = st
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeFailure(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success": false,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError maps the domain error taxonomy to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var cooldown *models.CooldownError
	if errors.As(err, &cooldown) {
		writeFailure(w, http.StatusTooManyRequests, "Payout cooldown active", map[string]interface{}{
			"remainingSeconds": cooldown.RemainingSeconds(),
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		writeFailure(w, http.StatusUnauthorized, "Authentication required", nil)
	case errors.Is(err, models.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, models.ErrInvalidSignature):
		writeFailure(w, http.StatusForbidden, "Invalid request signature", nil)
	case errors.Is(err, models.ErrReplayedNonce):
		writeFailure(w, http.StatusConflict, "Nonce already used", nil)
	case errors.Is(err, models.ErrInsufficientBalance):
		writeFailure(w, http.StatusBadRequest, "Insufficient coin balance", nil)
	case errors.Is(err, models.ErrBelowMinimum):
		writeFailure(w, http.StatusBadRequest, "Amount is below the minimum payout", nil)
	case errors.Is(err, models.ErrEmulatorBlocked):
		writeFailure(w, http.StatusForbidden, "Payouts are not available on this device", nil)
	case errors.Is(err, models.ErrNumberLocked):
		writeFailure(w, http.StatusForbidden, "Mobile number is locked and cannot be changed yet", nil)
	case errors.Is(err, models.ErrConflict):
		writeFailure(w, http.StatusConflict, "Conflicting request, please retry", nil)
	case errors.Is(err, models.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, "Invalid request", nil)
	default:
		writeFailure(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
