package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
)

// PayoutRequestBody is the signed redemption request. The signature covers
// deviceId|mobileNumber|coins|nonce with the device's registered key
// material; the nonce is single-use.
type PayoutRequestBody struct {
	MobileNumber string `json:"mobileNumber"`
	Coins        int64  `json:"coins"`
}

// RequestPayout handles POST /api/payouts/request. Signature and nonce
// ride in the X-Signature / X-Nonce headers.
func RequestPayout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	var req PayoutRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	payout, err := payoutService.Request(r.Context(), user, services.PayoutRequest{
		MobileNumber: req.MobileNumber,
		Coins:        req.Coins,
		Signature:    r.Header.Get("X-Signature"),
		Nonce:        r.Header.Get("X-Nonce"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Payout requested", map[string]interface{}{
		"payout": payout,
	})
}

// PayoutHistory handles GET /api/payouts/history
func PayoutHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	payouts, err := payoutService.History(r.Context(), user.DeviceID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Payout history", map[string]interface{}{
		"payouts": payouts,
	})
}

// PayoutStatus handles GET /api/payouts/status/{payoutId}
func PayoutStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	payout, err := payoutService.Status(r.Context(), user, chi.URLParam(r, "payoutId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Payout status", map[string]interface{}{
		"payout": payout,
	})
}

// PayoutCooldown handles GET /api/payouts/cooldown
func PayoutCooldown(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	status, err := payoutService.CooldownStatus(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Cooldown status", map[string]interface{}{
		"cooldown": status,
	})
}

// CancelPayout handles POST /api/payouts/{payoutId}/cancel. Users may only
// cancel their own pending payouts; the debited coins are refunded.
func CancelPayout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	payout, err := payoutService.Cancel(r.Context(), user, chi.URLParam(r, "payoutId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Payout canceled", map[string]interface{}{
		"payout": payout,
	})
}

// AdminListPayouts handles GET /api/payouts/admin/all
func AdminListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")

	limit := int64(50)
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	skip := int64(0)
	if v := q.Get("skip"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			skip = n
		}
	}

	payouts, err := payoutService.ListAll(r.Context(), status, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Payouts", map[string]interface{}{
		"payouts": payouts,
	})
}

// AdminPayoutStatusRequest carries an admin state-machine action.
type AdminPayoutStatusRequest struct {
	Action string `json:"action"` // approve | reject | markPaid | cancel
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
	TxRef  string `json:"txRef,omitempty"`
}

// AdminUpdatePayoutStatus handles PATCH /api/payouts/admin/{payoutId}/status
func AdminUpdatePayoutStatus(w http.ResponseWriter, r *http.Request) {
	var req AdminPayoutStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	payout, err := payoutService.UpdateStatus(r.Context(), chi.URLParam(r, "payoutId"), req.Action, req.Reason, req.Notes, req.TxRef)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Payout updated", map[string]interface{}{
		"payout": payout,
	})
}
