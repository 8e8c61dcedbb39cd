package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
)

// RegisterRequest creates the user record for a device. No password: the
// device id plus its generated pub key are the identity.
type RegisterRequest struct {
	DeviceID   string `json:"deviceId"`
	PubKey     string `json:"pubKey"`
	IsEmulator bool   `json:"isEmulator"`
}

// RegisterDevice handles POST /api/users/register
func RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	user, err := deviceService.Register(r.Context(), req.DeviceID, req.PubKey, req.IsEmulator)
	if err == models.ErrConflict {
		writeFailure(w, http.StatusConflict, "Device already registered with a different key", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Device registered", map[string]interface{}{
		"user": user,
	})
}

// GetProfile handles GET /api/users/profile
func GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	status, err := earningService.DailyStatus(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Profile", map[string]interface{}{
		"user":  user,
		"daily": status,
	})
}

// MobileNumberRequest binds the mobile money number used for payouts.
type MobileNumberRequest struct {
	MobileNumber string `json:"mobileNumber"`
}

// SetMobileNumber handles POST /api/users/mobile-number
func SetMobileNumber(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	var req MobileNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := payoutService.SetMobileNumber(r.Context(), user, req.MobileNumber); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Mobile number saved", nil)
}

// DailyReset handles POST /api/users/progress/reset. It zeroes the day's
// earning counter only; balance and completions are untouched.
func DailyReset(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	if err := earningService.DailyReset(r.Context(), user.DeviceID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Daily earnings reset", nil)
}

// GetUserProgress handles GET /api/users/progress: balance plus overall
// lesson completion summary.
func GetUserProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	entries, completed, err := progressService.GetAll(r.Context(), user.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := earningService.DailyStatus(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Progress", map[string]interface{}{
		"coinBalance":      user.CoinBalance,
		"completedLessons": completed,
		"lessonProgress":   entries,
		"daily":            status,
	})
}
