package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/learn-earn/backend/internal/config"
	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

const (
	// SettingsCacheKey is the Redis key for the settings snapshot
	SettingsCacheKey = "cache:settings_snapshot"
	// SettingsCacheTTL keeps policy decisions at most 30 seconds behind
	// an admin settings change
	SettingsCacheTTL = 30 * time.Second
)

// SettingsService serves read-mostly settings snapshots to the policy
// components. Business logic never mutates settings; only the admin update
// path does.
type SettingsService struct {
	store store.SettingsStore
	cache *redis.Client // optional; nil disables caching
}

func NewSettingsService(st store.SettingsStore, cache *redis.Client) *SettingsService {
	return &SettingsService{store: st, cache: cache}
}

// Seed creates the settings document from the environment defaults if it
// does not exist yet. Called once at startup.
func (s *SettingsService) Seed(ctx context.Context, cfg *config.Config) error {
	return s.store.SeedSettings(ctx, &models.Settings{
		MinPayoutUsd:        cfg.MinPayoutUsd,
		PayoutCooldownHours: cfg.PayoutCooldownHours,
		MaxDailyEarnUsd:     cfg.MaxDailyEarnUsd,
		SafetyMargin:        cfg.SafetyMargin,
		ECPMUsd:             cfg.ECPMUsd,
		ImpressionsToday:    0,
		AppPepper:           cfg.AppPepper,
		EmulatorPayouts:     cfg.EmulatorPayouts,
		CoinToUsdRate:       cfg.CoinToUsdRate,
		UpdatedAt:           time.Now(),
	})
}

// Snapshot returns the current settings, served from a short-TTL Redis
// cache when available. Callers treat the snapshot as immutable.
func (s *SettingsService) Snapshot(ctx context.Context) (*models.Settings, error) {
	// Cached as BSON, not JSON: the JSON tags hide secret fields like the
	// pepper, and the snapshot must round-trip whole.
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, SettingsCacheKey).Bytes(); err == nil {
			var cached models.Settings
			if err := bson.Unmarshal(val, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := bson.Marshal(settings); err == nil {
			// Best effort; a cache write failure never fails the request
			s.cache.Set(ctx, SettingsCacheKey, data, SettingsCacheTTL)
		}
	}
	return settings, nil
}

// Update applies an admin patch and drops the cached snapshot.
func (s *SettingsService) Update(ctx context.Context, patch models.SettingsPatch, updatedBy string) (*models.Settings, error) {
	settings, err := s.store.ApplySettings(ctx, patch, updatedBy, time.Now())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Del(ctx, SettingsCacheKey)
	}
	return settings, nil
}

// RecordImpressions bumps the daily impression counter. The cached
// snapshot is left alone; the counter is statistics, not policy input.
func (s *SettingsService) RecordImpressions(ctx context.Context, n int64) error {
	return s.store.AddImpressions(ctx, n)
}
