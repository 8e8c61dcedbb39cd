package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingSession is one continuous stretch of reading inside a lesson.
// Sessions are append-only; they are reported by the client and kept
// verbatim for auditing.
type ReadingSession struct {
	StartedAt       time.Time  `bson:"started_at" json:"startedAt"`
	EndedAt         *time.Time `bson:"ended_at,omitempty" json:"endedAt,omitempty"`
	DurationSeconds int        `bson:"duration_seconds" json:"durationSeconds"`
}

// LessonProgress tracks a single user's state for one lesson. A lesson id
// appears at most once per user; scroll_position only ever moves up.
type LessonProgress struct {
	LessonID         string           `bson:"lesson_id" json:"lessonId"`
	ScrollPosition   int              `bson:"scroll_position" json:"scrollPosition"` // 0-100 percentage
	TimeSpentSeconds int              `bson:"time_spent_seconds" json:"timeSpentSeconds"`
	LastReadAt       time.Time        `bson:"last_read_at" json:"lastReadAt"`
	CompletedAt      *time.Time       `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	IsCompleted      bool             `bson:"is_completed" json:"isCompleted"`
	ReadingSessions  []ReadingSession `bson:"reading_sessions" json:"readingSessions"`
}

// User is one record per device. There are no passwords; the device id is
// the identity and the registered pub key is the signing material for
// payout requests.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID  string             `bson:"device_id" json:"deviceId"`
	PubKey    string             `bson:"pub_key" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`

	IsEmulator   bool      `bson:"is_emulator" json:"isEmulator"`
	LastActiveAt time.Time `bson:"last_active_at" json:"lastActiveAt"`

	// Mobile money number is stored hashed only; changing it is locked
	// until number_locked_until.
	MMHash            string     `bson:"mm_hash,omitempty" json:"-"`
	NumberLockedUntil *time.Time `bson:"number_locked_until,omitempty" json:"numberLockedUntil,omitempty"`

	// Ledger. CoinBalance must never go negative; every debit is a
	// guarded single-document update.
	CoinBalance    int64   `bson:"coin_balance" json:"coinBalance"`
	EarnedTodayUsd float64 `bson:"earned_today_usd" json:"earnedTodayUsd"`

	LastDailyReset  *time.Time `bson:"last_daily_reset,omitempty" json:"lastDailyReset,omitempty"`
	DailyResetCount int        `bson:"daily_reset_count" json:"dailyResetCount"`

	// Payout cooldown state, stamped atomically with the balance debit so
	// two concurrent requests cannot both pass the cooldown check.
	LastPayoutRequestAt *time.Time `bson:"last_payout_request_at,omitempty" json:"-"`
	InflightPayoutID    string     `bson:"inflight_payout_id,omitempty" json:"-"`

	CompletedLessons []string         `bson:"completed_lessons" json:"completedLessons"` // legacy mirror of lesson_progress.is_completed
	LessonProgress   []LessonProgress `bson:"lesson_progress" json:"lessonProgress"`
}

// Progress returns the progress entry for a lesson, or nil.
func (u *User) Progress(lessonID string) *LessonProgress {
	for i := range u.LessonProgress {
		if u.LessonProgress[i].LessonID == lessonID {
			return &u.LessonProgress[i]
		}
	}
	return nil
}
