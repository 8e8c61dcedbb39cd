package services

import (
	"context"
	"time"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

// DeviceService is the identity chokepoint: it maps the opaque device id
// from the X-Device-ID header to a user record. It never performs business
// validation, only lookup.
type DeviceService struct {
	users store.UserStore
}

func NewDeviceService(users store.UserStore) *DeviceService {
	return &DeviceService{users: users}
}

// Register creates the user record for a device. There are no passwords:
// the device id plus the device-generated pub key are the identity. The
// emulator flag is captured here and never re-evaluated. Re-registering
// the same device with the same pub key is idempotent.
func (s *DeviceService) Register(ctx context.Context, deviceID, pubKey string, isEmulator bool) (*models.User, error) {
	if deviceID == "" || pubKey == "" {
		return nil, models.ErrInvalidInput
	}

	now := time.Now()
	u := &models.User{
		DeviceID:         deviceID,
		PubKey:           pubKey,
		CreatedAt:        now,
		LastActiveAt:     now,
		IsEmulator:       isEmulator,
		CompletedLessons: []string{},
		LessonProgress:   []models.LessonProgress{},
	}

	err := s.users.InsertUser(ctx, u)
	if err == models.ErrConflict {
		existing, findErr := s.users.FindUserByDevice(ctx, deviceID)
		if findErr != nil {
			return nil, findErr
		}
		if existing.PubKey != pubKey {
			// A different key for a known device is not a re-install,
			// refuse to silently rebind identity.
			return nil, models.ErrConflict
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate resolves the caller's user record and stamps last_active_at.
func (s *DeviceService) Authenticate(ctx context.Context, deviceID string) (*models.User, error) {
	if deviceID == "" {
		return nil, models.ErrUnauthenticated
	}
	u, err := s.users.FindUserByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	// Activity stamp is best effort; identity resolution already succeeded
	_ = s.users.TouchLastActive(ctx, deviceID, time.Now())
	return u, nil
}
