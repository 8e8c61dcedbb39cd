package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/services"
	"github.com/learn-earn/backend/internal/store"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the user with empty progress", func(t *testing.T) {
		devices := services.NewDeviceService(store.NewMemory())

		u, err := devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)
		assert.Equal(t, "dev-1", u.DeviceID)
		assert.False(t, u.IsEmulator)
		assert.NotNil(t, u.CompletedLessons)
		assert.NotNil(t, u.LessonProgress)
		assert.Zero(t, u.CoinBalance)
	})

	t.Run("same device and key is idempotent", func(t *testing.T) {
		devices := services.NewDeviceService(store.NewMemory())

		first, err := devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)

		again, err := devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("same device with a different key is refused", func(t *testing.T) {
		devices := services.NewDeviceService(store.NewMemory())

		_, err := devices.Register(ctx, "dev-1", "pub-1", false)
		require.NoError(t, err)

		_, err = devices.Register(ctx, "dev-1", "pub-2", false)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("emulator flag is captured at registration", func(t *testing.T) {
		devices := services.NewDeviceService(store.NewMemory())

		u, err := devices.Register(ctx, "emu-1", "pub-1", true)
		require.NoError(t, err)
		assert.True(t, u.IsEmulator)

		// Re-registering does not re-evaluate the flag
		u, err = devices.Register(ctx, "emu-1", "pub-1", false)
		require.NoError(t, err)
		assert.True(t, u.IsEmulator)
	})

	t.Run("missing fields", func(t *testing.T) {
		devices := services.NewDeviceService(store.NewMemory())

		_, err := devices.Register(ctx, "", "pub-1", false)
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, err = devices.Register(ctx, "dev-1", "", false)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	devices := services.NewDeviceService(st)

	_, err := devices.Authenticate(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = devices.Authenticate(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)

	registered, err := devices.Register(ctx, "dev-1", "pub-1", false)
	require.NoError(t, err)

	u, err := devices.Authenticate(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	fresh, err := st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, fresh.LastActiveAt.Before(registered.LastActiveAt))
}
