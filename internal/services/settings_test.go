package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learn-earn/backend/internal/config"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

func TestSettingsSeedAndSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := services.NewSettingsService(st, nil)

	cfg := &config.Config{
		MinPayoutUsd:        5,
		PayoutCooldownHours: 48,
		MaxDailyEarnUsd:     0.5,
		SafetyMargin:        0.6,
		ECPMUsd:             1.5,
		AppPepper:           "seed-pepper",
		CoinToUsdRate:       0.001,
	}
	require.NoError(t, svc.Seed(ctx, cfg))

	s, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, s.MinPayoutUsd, 1e-9)
	assert.Equal(t, "seed-pepper", s.AppPepper)
	assert.InDelta(t, 0.3, s.DailyCapUsd(), 1e-9)

	// Seeding again does not overwrite
	cfg.MinPayoutUsd = 99
	require.NoError(t, svc.Seed(ctx, cfg))
	s, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, s.MinPayoutUsd, 1e-9)
}

func TestSettingsUpdate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.SeedSettings(ctx, newTestSettings()))
	svc := services.NewSettingsService(st, nil)

	min := 10.0
	emu := true
	s, err := svc.Update(ctx, models.SettingsPatch{MinPayoutUsd: &min, EmulatorPayouts: &emu}, "admin-1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, s.MinPayoutUsd, 1e-9)
	assert.True(t, s.EmulatorPayouts)
	assert.Equal(t, "admin-1", s.UpdatedBy)

	// Untouched fields keep their values, including the pepper
	assert.Equal(t, testPepper, s.AppPepper)
	assert.Equal(t, 48, s.PayoutCooldownHours)
}

func TestVersionService(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := services.NewVersionService(st)

	// Get self-heals when the seed never ran
	v, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.MinimumVersion)
	assert.False(t, v.MaintenanceMode)
	assert.True(t, v.Features.PayoutsEnabled)

	maintenance := true
	latest := "1.2.0"
	v, err = svc.Update(ctx, models.VersionPatch{MaintenanceMode: &maintenance, LatestVersion: &latest}, "admin-1")
	require.NoError(t, err)
	assert.True(t, v.MaintenanceMode)
	assert.Equal(t, "1.2.0", v.LatestVersion)
	assert.Equal(t, "admin-1", v.UpdatedBy)
	assert.Equal(t, "1.0.0", v.MinimumVersion)
}
