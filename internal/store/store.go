// Package store holds the persistence layer. Every mutation that reads
// then writes balance, completion flags, or cooldown state is exposed as a
// single guarded operation so lost-update races cannot double-credit a
// lesson, let two payout requests both pass the balance check, or drive a
// balance negative. The Mongo implementation maps each operation onto one
// guarded document update; the memory implementation serializes them under
// a mutex and is what the tests run against.
package store

import (
	"context"
	"time"

	"github.com/learn-earn/backend/internal/models"
)

// ProgressUpdate is one client progress report for a lesson.
type ProgressUpdate struct {
	ScrollPosition   int
	TimeSpentSeconds int
	Session          *models.ReadingSession
}

// Award is the coin credit attached to a completion or ad impression.
// CapUsd is the effective daily ceiling: the credit only applies while
// earned_today_usd + AmountUsd <= CapUsd.
type Award struct {
	Coins     int64
	AmountUsd float64
	CapUsd    float64
}

// PayoutTransition moves a payout between states. The update only applies
// while the current status is in AllowedFrom; otherwise ErrConflict.
type PayoutTransition struct {
	To          string
	AllowedFrom []string
	Reason      string
	AdminNotes  string
	TxRef       string
	At          time.Time
}

// UserStore persists users and their embedded lesson progress and ledger.
type UserStore interface {
	FindUserByDevice(ctx context.Context, deviceID string) (*models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
	TouchLastActive(ctx context.Context, deviceID string, at time.Time) error

	// BindMobileNumber sets the hashed mobile money number and its change
	// lock. Fails with ErrNumberLocked while a different number is bound
	// and the lock has not expired.
	BindMobileNumber(ctx context.Context, deviceID, mmHash string, lockedUntil, now time.Time) error

	// UpsertProgress records a progress update for a lesson, creating the
	// entry when absent. Scroll position is a monotonic watermark and
	// sessions are append-only.
	UpsertProgress(ctx context.Context, deviceID, lessonID string, upd ProgressUpdate, now time.Time) (*models.LessonProgress, error)

	// CompleteLesson flips is_completed exactly once and, when the daily
	// cap guard holds, credits the award in the same guarded update.
	// Calling it on an already-completed lesson is a no-op with
	// awarded=false. force also raises the scroll watermark to 100.
	CompleteLesson(ctx context.Context, deviceID, lessonID string, force bool, award Award, now time.Time) (awarded bool, p *models.LessonProgress, err error)

	// ResetProgress deletes the lesson's progress entry and removes the
	// lesson from completed_lessons. Previously awarded coins are kept.
	ResetProgress(ctx context.Context, deviceID, lessonID string) error

	// CreditEarning credits coins against the daily cap guard without
	// touching lesson state (ad impressions). Returns false when the cap
	// guard rejected the credit.
	CreditEarning(ctx context.Context, deviceID string, award Award) (bool, error)

	// DailyReset zeroes the day's running USD total. It never touches
	// coin_balance or historical completions.
	DailyReset(ctx context.Context, deviceID string, now time.Time) error

	// ReservePayout atomically checks balance >= coins, no in-flight
	// payout, and the cooldown window, then debits the balance and stamps
	// the cooldown state. A failed guard returns ErrConflict; the caller
	// diagnoses which precondition failed.
	ReservePayout(ctx context.Context, deviceID string, coins int64, payoutID string, cooldown time.Duration, now time.Time) error

	// ReleasePayout clears the in-flight marker set by ReservePayout and
	// credits refund coins back (zero for markPaid). Guarded on the
	// marker so a double release cannot double-refund.
	ReleasePayout(ctx context.Context, deviceID, payoutID string, refund int64) error

	ListUsers(ctx context.Context, limit, skip int64) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// PayoutStore persists payout records.
type PayoutStore interface {
	InsertPayout(ctx context.Context, p *models.Payout) error
	FindPayoutByID(ctx context.Context, id string) (*models.Payout, error)
	ListPayoutsByDevice(ctx context.Context, deviceID string, limit int64) ([]models.Payout, error)
	ListPayouts(ctx context.Context, status string, limit, skip int64) ([]models.Payout, error)
	CountPayoutsByStatus(ctx context.Context, status string) (int64, error)
	TransitionPayout(ctx context.Context, id string, tr PayoutTransition) (*models.Payout, error)
}

// NonceStore records request nonces. A nonce is burned on first sight,
// before any policy evaluation, so replaying it always fails regardless of
// the original request's outcome.
type NonceStore interface {
	RecordNonce(ctx context.Context, deviceID, nonce string, now time.Time) error
}

// SettingsStore persists the singleton settings document.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SeedSettings(ctx context.Context, s *models.Settings) error
	ApplySettings(ctx context.Context, patch models.SettingsPatch, updatedBy string, now time.Time) (*models.Settings, error)
	AddImpressions(ctx context.Context, n int64) error
}

// VersionStore persists the singleton version/maintenance document.
type VersionStore interface {
	GetVersion(ctx context.Context) (*models.Version, error)
	SeedVersion(ctx context.Context, v *models.Version) error
	ApplyVersion(ctx context.Context, patch models.VersionPatch, updatedBy string, now time.Time) (*models.Version, error)
}

// Store is the full persistence surface; both the Mongo and the in-memory
// implementations satisfy it.
type Store interface {
	UserStore
	PayoutStore
	NonceStore
	SettingsStore
	VersionStore
}
