package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Settings is the single global configuration document. Created once at
// process start if absent, mutated only through the admin settings
// endpoint, read by every policy decision as a snapshot.
type Settings struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	MinPayoutUsd        float64 `bson:"min_payout_usd" json:"minPayoutUsd"`
	PayoutCooldownHours int     `bson:"payout_cooldown_hours" json:"payoutCooldownHours"`
	MaxDailyEarnUsd     float64 `bson:"max_daily_earn_usd" json:"maxDailyEarnUsd"`
	SafetyMargin        float64 `bson:"safety_margin" json:"safetyMargin"`
	ECPMUsd             float64 `bson:"ecpm_usd" json:"eCPM_USD"`
	ImpressionsToday    int64   `bson:"impressions_today" json:"impressionsToday"`
	AppPepper           string  `bson:"app_pepper" json:"-"`
	EmulatorPayouts     bool    `bson:"emulator_payouts" json:"emulatorPayouts"`
	CoinToUsdRate       float64 `bson:"coin_to_usd_rate" json:"coinToUsdRate"`

	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
	UpdatedBy string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
}

// DailyCapUsd is the effective per-day earning ceiling: the configured max
// discounted by the safety margin to leave headroom against estimation
// error.
func (s *Settings) DailyCapUsd() float64 {
	return s.MaxDailyEarnUsd * s.SafetyMargin
}

// PayoutCooldown returns the cooldown as a duration.
func (s *Settings) PayoutCooldown() time.Duration {
	return time.Duration(s.PayoutCooldownHours) * time.Hour
}

// SettingsPatch is a partial admin update; nil fields are left unchanged.
type SettingsPatch struct {
	MinPayoutUsd        *float64 `json:"minPayoutUsd,omitempty"`
	PayoutCooldownHours *int     `json:"payoutCooldownHours,omitempty"`
	MaxDailyEarnUsd     *float64 `json:"maxDailyEarnUsd,omitempty"`
	SafetyMargin        *float64 `json:"safetyMargin,omitempty"`
	ECPMUsd             *float64 `json:"eCPM_USD,omitempty"`
	EmulatorPayouts     *bool    `json:"emulatorPayouts,omitempty"`
	CoinToUsdRate       *float64 `json:"coinToUsdRate,omitempty"`
}
