package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learn-earn/backend/internal/database"
	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/pkg/utils"
)

// AdminLoginRequest is the operator credential login.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLogin handles POST /api/admin/login
func AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	var adminID uuid.UUID
	var passwordHash string
	err := database.PostgresDB.QueryRow(
		"SELECT id, password_hash FROM admins WHERE username = $1 AND is_active = TRUE",
		req.Username,
	).Scan(&adminID, &passwordHash)
	if err == sql.ErrNoRows {
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	valid, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !valid {
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := services.CreateAdminSession(adminID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Failed to create session", nil)
		return
	}

	_, _ = database.PostgresDB.Exec("UPDATE admins SET last_login_at = $1 WHERE id = $2", time.Now(), adminID)

	writeSuccess(w, http.StatusOK, "Logged in", map[string]interface{}{
		"token": token,
	})
}

// AdminLogout handles POST /api/admin/logout
func AdminLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(strings.TrimSpace(r.Header.Get("Authorization")), "Bearer ")
	_ = services.InvalidateAdminSession(token)
	writeSuccess(w, http.StatusOK, "Logged out", nil)
}

// AdminDashboard handles GET /api/admin/dashboard
func AdminDashboard(w http.ResponseWriter, r *http.Request) {
	userCount, err := adminStore.CountUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	counts := map[string]int64{}
	for _, status := range []string{
		models.PayoutStatusPending,
		models.PayoutStatusApproved,
		models.PayoutStatusPaid,
		models.PayoutStatusRejected,
		models.PayoutStatusCanceled,
	} {
		n, err := adminStore.CountPayoutsByStatus(r.Context(), status)
		if err != nil {
			writeError(w, err)
			return
		}
		counts[status] = n
	}

	writeSuccess(w, http.StatusOK, "Dashboard", map[string]interface{}{
		"users":   userCount,
		"payouts": counts,
	})
}

// AdminListUsers handles GET /api/admin/users
func AdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

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

	users, err := adminStore.ListUsers(r.Context(), limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Users", map[string]interface{}{
		"users": users,
	})
}

// AdminGetSettings handles GET /api/admin/settings
func AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := settingsService.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Settings", map[string]interface{}{
		"settings": settings,
	})
}

// AdminUpdateSettings handles PUT /api/admin/settings
func AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	adminID, _ := middleware.AdminIDFromContext(r.Context())
	settings, err := settingsService.Update(r.Context(), patch, adminID.String())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Settings updated", map[string]interface{}{
		"settings": settings,
	})
}
