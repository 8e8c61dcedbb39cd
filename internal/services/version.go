package services

import (
	"context"
	"time"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

// VersionService serves the app version / maintenance singleton consumed by
// the mobile client at startup.
type VersionService struct {
	store store.VersionStore
}

func NewVersionService(st store.VersionStore) *VersionService {
	return &VersionService{store: st}
}

// Seed creates the version document with defaults if it does not exist yet.
func (s *VersionService) Seed(ctx context.Context) error {
	return s.store.SeedVersion(ctx, models.DefaultVersion())
}

// Get returns the current version document.
func (s *VersionService) Get(ctx context.Context) (*models.Version, error) {
	v, err := s.store.GetVersion(ctx)
	if err == models.ErrNotFound {
		// Self-heal if the seed never ran
		if seedErr := s.store.SeedVersion(ctx, models.DefaultVersion()); seedErr != nil {
			return nil, seedErr
		}
		return s.store.GetVersion(ctx)
	}
	return v, err
}

// Update applies an admin patch to the version document.
func (s *VersionService) Update(ctx context.Context, patch models.VersionPatch, updatedBy string) (*models.Version, error) {
	return s.store.ApplyVersion(ctx, patch, updatedBy, time.Now())
}
