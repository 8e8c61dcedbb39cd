package services

import (
	"context"
	"time"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

// CompletionScrollPercent is the scroll watermark at which a lesson counts
// as read.
const CompletionScrollPercent = 80

// ProgressInput is one progress report from the client. The session
// fields are optional; a session is recorded when startedAt and duration
// are both present.
type ProgressInput struct {
	ScrollPosition   int
	TimeSpentSeconds int
	SessionStartedAt *time.Time
	SessionEndedAt   *time.Time
	SessionDuration  int
}

// ProgressService tracks per-lesson reading state and drives the one-time
// completion award through the earning policy.
type ProgressService struct {
	users    store.UserStore
	settings *SettingsService
}

func NewProgressService(users store.UserStore, settings *SettingsService) *ProgressService {
	return &ProgressService{users: users, settings: settings}
}

// Record applies a progress update. The scroll position is a monotonic
// watermark: a lower value than previously recorded is ignored. Crossing
// the completion threshold triggers the award exactly once.
func (s *ProgressService) Record(ctx context.Context, deviceID, lessonID string, in ProgressInput) (*models.LessonProgress, bool, error) {
	if lessonID == "" {
		return nil, false, models.ErrInvalidInput
	}
	if in.ScrollPosition < 0 || in.ScrollPosition > 100 {
		return nil, false, models.ErrInvalidInput
	}

	now := time.Now()
	upd := store.ProgressUpdate{
		ScrollPosition:   in.ScrollPosition,
		TimeSpentSeconds: in.TimeSpentSeconds,
	}
	if in.SessionStartedAt != nil && in.SessionDuration > 0 {
		session := models.ReadingSession{
			StartedAt:       *in.SessionStartedAt,
			DurationSeconds: in.SessionDuration,
		}
		if in.SessionEndedAt != nil {
			session.EndedAt = in.SessionEndedAt
		} else {
			ended := now
			session.EndedAt = &ended
		}
		upd.Session = &session
	}

	p, err := s.users.UpsertProgress(ctx, deviceID, lessonID, upd, now)
	if err != nil {
		return nil, false, err
	}

	if p.ScrollPosition >= CompletionScrollPercent && !p.IsCompleted {
		return s.complete(ctx, deviceID, lessonID, false)
	}
	return p, false, nil
}

// MarkComplete is the explicit "mark complete" action: it forces the
// scroll watermark to 100 and completes the lesson. It shares the same
// one-time award guard as automatic completion, so alternating between
// the two paths cannot double-claim.
func (s *ProgressService) MarkComplete(ctx context.Context, deviceID, lessonID string) (*models.LessonProgress, bool, error) {
	if lessonID == "" {
		return nil, false, models.ErrInvalidInput
	}
	return s.complete(ctx, deviceID, lessonID, true)
}

func (s *ProgressService) complete(ctx context.Context, deviceID, lessonID string, force bool) (*models.LessonProgress, bool, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	awarded, p, err := s.users.CompleteLesson(ctx, deviceID, lessonID, force, lessonAward(settings, lessonID), time.Now())
	if err != nil {
		return nil, false, err
	}
	return p, awarded, nil
}

// Get returns the progress for one lesson, or a zero-valued entry when the
// user has not opened it yet.
func (s *ProgressService) Get(ctx context.Context, deviceID, lessonID string) (*models.LessonProgress, error) {
	u, err := s.users.FindUserByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if p := u.Progress(lessonID); p != nil {
		return p, nil
	}
	return &models.LessonProgress{
		LessonID:        lessonID,
		ReadingSessions: []models.ReadingSession{},
	}, nil
}

// GetAll returns every progress entry in insertion order plus the
// completed count.
func (s *ProgressService) GetAll(ctx context.Context, deviceID string) ([]models.LessonProgress, int, error) {
	u, err := s.users.FindUserByDevice(ctx, deviceID)
	if err != nil {
		return nil, 0, err
	}
	completed := 0
	for _, p := range u.LessonProgress {
		if p.IsCompleted {
			completed++
		}
	}
	return u.LessonProgress, completed, nil
}

// Reset deletes the lesson's progress and completion marker. Coins
// already awarded for the lesson are deliberately kept: a reset is a
// user-experience action, not a fraud reversal.
func (s *ProgressService) Reset(ctx context.Context, deviceID, lessonID string) error {
	if lessonID == "" {
		return models.ErrInvalidInput
	}
	return s.users.ResetProgress(ctx, deviceID, lessonID)
}
