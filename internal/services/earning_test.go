package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

type earningEnv struct {
	st       *store.Memory
	devices  *services.DeviceService
	earning  *services.EarningService
	progress *services.ProgressService
}

func newEarningEnv(t *testing.T, settings *models.Settings) *earningEnv {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.SeedSettings(context.Background(), settings))
	svc := services.NewSettingsService(st, nil)
	return &earningEnv{
		st:       st,
		devices:  services.NewDeviceService(st),
		earning:  services.NewEarningService(st, svc),
		progress: services.NewProgressService(st, svc),
	}
}

func TestDailyCap(t *testing.T) {
	ctx := context.Background()

	// Effective cap: 0.025 * 0.8 = $0.02, room for exactly two lesson rewards
	settings := newTestSettings()
	settings.MaxDailyEarnUsd = 0.025
	settings.SafetyMargin = 0.8

	env := newEarningEnv(t, settings)
	_, err := env.devices.Register(ctx, "dev-1", "pub-1", false)
	require.NoError(t, err)

	_, awarded, err := env.progress.MarkComplete(ctx, "dev-1", "lesson-1")
	require.NoError(t, err)
	assert.True(t, awarded)

	_, awarded, err = env.progress.MarkComplete(ctx, "dev-1", "lesson-2")
	require.NoError(t, err)
	assert.True(t, awarded)

	// Third completion flips the lesson but the cap blocks the award
	p, awarded, err := env.progress.MarkComplete(ctx, "dev-1", "lesson-3")
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.True(t, p.IsCompleted)

	u, err := env.st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.CoinBalance)
	assert.Len(t, u.CompletedLessons, 3)
}

func TestRecordImpression(t *testing.T) {
	ctx := context.Background()

	t.Run("credits eCPM-derived coins", func(t *testing.T) {
		env := newEarningEnv(t, newTestSettings())
		_, err := env.devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)

		// eCPM $2.00 => $0.002 per impression => 2 coins at 0.001/coin
		granted, coins, err := env.earning.RecordImpression(ctx, "dev-1")
		require.NoError(t, err)
		assert.True(t, granted)
		assert.Equal(t, int64(2), coins)

		u, err := env.st.FindUserByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), u.CoinBalance)
		assert.InDelta(t, 0.002, u.EarnedTodayUsd, 1e-9)

		settings, err := env.st.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), settings.ImpressionsToday)
	})

	t.Run("cap blocks the credit but still counts the impression", func(t *testing.T) {
		settings := newTestSettings()
		settings.MaxDailyEarnUsd = 0.001
		settings.SafetyMargin = 1.0

		env := newEarningEnv(t, settings)
		_, err := env.devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)

		// $0.002 impression against a $0.001 cap
		granted, coins, err := env.earning.RecordImpression(ctx, "dev-1")
		require.NoError(t, err)
		assert.False(t, granted)
		assert.Zero(t, coins)

		u, err := env.st.FindUserByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Zero(t, u.CoinBalance)

		stored, err := env.st.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.ImpressionsToday)
	})
}

func TestDailyReset(t *testing.T) {
	ctx := context.Background()
	env := newEarningEnv(t, newTestSettings())
	_, err := env.devices.Register(ctx, "dev-1", "pub-1", false)
	require.NoError(t, err)

	_, awarded, err := env.progress.MarkComplete(ctx, "dev-1", "lesson-1")
	require.NoError(t, err)
	require.True(t, awarded)

	before := time.Now()
	require.NoError(t, env.earning.DailyReset(ctx, "dev-1"))

	u, err := env.st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Zero(t, u.EarnedTodayUsd)
	assert.Equal(t, 1, u.DailyResetCount)
	require.NotNil(t, u.LastDailyReset)
	assert.False(t, u.LastDailyReset.Before(before))

	// Balance and completions are untouched
	assert.Equal(t, int64(10), u.CoinBalance)
	assert.Contains(t, u.CompletedLessons, "lesson-1")
}

func TestDailyStatus(t *testing.T) {
	ctx := context.Background()
	env := newEarningEnv(t, newTestSettings())
	u, err := env.devices.Register(ctx, "dev-1", "pub-1", false)
	require.NoError(t, err)

	status, err := env.earning.DailyStatus(ctx, u)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, status.DailyCapUsd, 1e-9) // 0.5 * 0.6
	assert.InDelta(t, 0.3, status.RemainingUsd, 1e-9)
	assert.Zero(t, status.EarnedTodayUsd)
}

func TestCoinConversion(t *testing.T) {
	s := newTestSettings()

	assert.Equal(t, int64(5000), services.CoinsForUsd(s, 5))
	assert.InDelta(t, 5.0, services.UsdForCoins(s, 5000), 1e-9)
	assert.InDelta(t, 0.002, services.ImpressionRewardUsd(s), 1e-9)

	s.CoinToUsdRate = 0
	assert.Zero(t, services.CoinsForUsd(s, 5))
}
