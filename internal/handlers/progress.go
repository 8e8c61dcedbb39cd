package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
)

// ProgressRequest is the client's reading progress report.
type ProgressRequest struct {
	ScrollPosition   int        `json:"scrollPosition"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	SessionEndedAt   *time.Time `json:"sessionEndedAt,omitempty"`
	SessionDuration  int        `json:"sessionDuration,omitempty"`
}

// RecordProgress handles POST /api/users/lessons/{lessonId}/progress
func RecordProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}
	lessonID := chi.URLParam(r, "lessonId")

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	p, awarded, err := progressService.Record(r.Context(), user.DeviceID, lessonID, services.ProgressInput{
		ScrollPosition:   req.ScrollPosition,
		TimeSpentSeconds: req.TimeSpentSeconds,
		SessionStartedAt: req.SessionStartedAt,
		SessionEndedAt:   req.SessionEndedAt,
		SessionDuration:  req.SessionDuration,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Progress recorded", map[string]interface{}{
		"progress":    p,
		"coinAwarded": awarded,
	})
}

// CompleteLesson handles POST /api/users/lessons/{lessonId}/complete.
// Explicit completion forces the scroll watermark to 100; the coin award
// still happens at most once per lesson.
func CompleteLesson(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}
	lessonID := chi.URLParam(r, "lessonId")

	p, awarded, err := progressService.MarkComplete(r.Context(), user.DeviceID, lessonID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Lesson completed", map[string]interface{}{
		"progress":    p,
		"coinAwarded": awarded,
	})
}

// GetLessonProgress handles GET /api/users/lessons/{lessonId}/progress.
// Returns a zero-valued entry for lessons the user has not opened.
func GetLessonProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}
	lessonID := chi.URLParam(r, "lessonId")

	p, err := progressService.Get(r.Context(), user.DeviceID, lessonID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Lesson progress", map[string]interface{}{
		"progress": p,
	})
}

// GetAllProgress handles GET /api/users/lessons/progress
func GetAllProgress(w http.ResponseWriter, r *http.Request) {
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

	writeSuccess(w, http.StatusOK, "All lesson progress", map[string]interface{}{
		"lessonProgress": entries,
		"completedCount": completed,
	})
}

// ResetLessonProgress handles DELETE /api/users/lessons/{lessonId}/progress.
// Coins already awarded for the lesson are kept.
func ResetLessonProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, models.ErrUnauthenticated)
		return
	}
	lessonID := chi.URLParam(r, "lessonId")

	if err := progressService.Reset(r.Context(), user.DeviceID, lessonID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Lesson progress reset", nil)
}
