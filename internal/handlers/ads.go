package handlers

import (
	"net/http"

	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
)

// RecordImpression handles POST /api/ads/impression. The credit draws from
// the same daily cap pool as lesson rewards; when the cap is hit the
// impression is still counted but no coins are granted.
func RecordImpression(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}

	granted, coins, err := earningService.RecordImpression(r.Context(), user.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Impression credited"
	if !granted {
		message = "Daily earning cap reached"
	}
	writeSuccess(w, http.StatusOK, message, map[string]interface{}{
		"granted": granted,
		"coins":   coins,
	})
}
