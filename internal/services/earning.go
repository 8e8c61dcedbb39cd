package services

import (
	"context"
	"math"
	"time"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

// DefaultLessonRewardUsd is the per-lesson completion reward. Individual
// lessons can override it in lessonRewardsUsd.
const DefaultLessonRewardUsd = 0.01

// Per-lesson reward overrides, keyed by lesson id.
var lessonRewardsUsd = map[string]float64{}

// LessonRewardUsd returns the USD value of completing a lesson.
func LessonRewardUsd(lessonID string) float64 {
	if usd, ok := lessonRewardsUsd[lessonID]; ok {
		return usd
	}
	return DefaultLessonRewardUsd
}

// ImpressionRewardUsd is the USD value of a single ad impression, derived
// from the configured eCPM.
func ImpressionRewardUsd(s *models.Settings) float64 {
	return s.ECPMUsd / 1000
}

// CoinsForUsd converts a USD amount to coins at the configured rate.
func CoinsForUsd(s *models.Settings, usd float64) int64 {
	if s.CoinToUsdRate <= 0 {
		return 0
	}
	return int64(math.Round(usd / s.CoinToUsdRate))
}

// UsdForCoins converts coins back to USD at the configured rate.
func UsdForCoins(s *models.Settings, coins int64) float64 {
	return float64(coins) * s.CoinToUsdRate
}

// EarningService is the policy engine deciding whether a reward event may
// be credited. All award paths, lesson completions and ad impressions
// alike, draw from the same per-day cap pool, discounted by the safety
// margin.
type EarningService struct {
	users    store.UserStore
	settings *SettingsService
}

func NewEarningService(users store.UserStore, settings *SettingsService) *EarningService {
	return &EarningService{users: users, settings: settings}
}

// lessonAward builds the guarded award for a lesson completion.
func lessonAward(s *models.Settings, lessonID string) store.Award {
	usd := LessonRewardUsd(lessonID)
	return store.Award{
		Coins:     CoinsForUsd(s, usd),
		AmountUsd: usd,
		CapUsd:    s.DailyCapUsd(),
	}
}

// RecordImpression credits one ad impression. Returns granted=false when
// the daily cap would be exceeded; the impression itself is still counted
// for eCPM statistics.
func (e *EarningService) RecordImpression(ctx context.Context, deviceID string) (granted bool, coins int64, err error) {
	settings, err := e.settings.Snapshot(ctx)
	if err != nil {
		return false, 0, err
	}

	usd := ImpressionRewardUsd(settings)
	award := store.Award{
		Coins:     CoinsForUsd(settings, usd),
		AmountUsd: usd,
		CapUsd:    settings.DailyCapUsd(),
	}

	granted, err = e.users.CreditEarning(ctx, deviceID, award)
	if err != nil {
		return false, 0, err
	}
	_ = e.settings.RecordImpressions(ctx, 1)

	if !granted {
		return false, 0, nil
	}
	return true, award.Coins, nil
}

// DailyReset zeroes the day's running earning total. Balance and
// historical completions are untouched.
func (e *EarningService) DailyReset(ctx context.Context, deviceID string) error {
	return e.users.DailyReset(ctx, deviceID, time.Now())
}

// DailyStatus reports today's earnings against the effective cap.
type DailyStatus struct {
	EarnedTodayUsd  float64 `json:"earnedTodayUsd"`
	DailyCapUsd     float64 `json:"dailyCapUsd"`
	RemainingUsd    float64 `json:"remainingUsd"`
	LessonRewardUsd float64 `json:"lessonRewardUsd"`
}

func (e *EarningService) DailyStatus(ctx context.Context, user *models.User) (*DailyStatus, error) {
	settings, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cap := settings.DailyCapUsd()
	remaining := cap - user.EarnedTodayUsd
	if remaining < 0 {
		remaining = 0
	}
	return &DailyStatus{
		EarnedTodayUsd:  user.EarnedTodayUsd,
		DailyCapUsd:     cap,
		RemainingUsd:    remaining,
		LessonRewardUsd: DefaultLessonRewardUsd,
	}, nil
}
