package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
)

// GetVersion handles GET /api/version. Public: the client checks it
// before device registration.
func GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := versionService.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Version info", map[string]interface{}{
		"version": v,
	})
}

// AdminUpdateVersion handles PUT /api/admin/version
func AdminUpdateVersion(w http.ResponseWriter, r *http.Request) {
	var patch models.VersionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	adminID, _ := middleware.AdminIDFromContext(r.Context())
	v, err := versionService.Update(r.Context(), patch, adminID.String())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Version updated", map[string]interface{}{
		"version": v,
	})
}
