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

type progressEnv struct {
	st       *store.Memory
	devices  *services.DeviceService
	progress *services.ProgressService
}

func newProgressEnv(t *testing.T) *progressEnv {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.SeedSettings(context.Background(), newTestSettings()))
	settings := services.NewSettingsService(st, nil)
	return &progressEnv{
		st:       st,
		devices:  services.NewDeviceService(st),
		progress: services.NewProgressService(st, settings),
	}
}

func (e *progressEnv) register(t *testing.T, deviceID string) {
	t.Helper()
	_, err := e.devices.Register(context.Background(), deviceID, "pub-"+deviceID, false)
	require.NoError(t, err)
}

func TestRecordProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("scroll position is a monotonic watermark", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		p, _, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 50})
		require.NoError(t, err)
		assert.Equal(t, 50, p.ScrollPosition)

		// A stale lower report never moves it back
		p, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 30})
		require.NoError(t, err)
		assert.Equal(t, 50, p.ScrollPosition)

		p, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 75})
		require.NoError(t, err)
		assert.Equal(t, 75, p.ScrollPosition)
	})

	t.Run("completion triggers at the threshold with a single award", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		p, awarded, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 79})
		require.NoError(t, err)
		assert.False(t, p.IsCompleted)
		assert.False(t, awarded)

		p, awarded, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 80})
		require.NoError(t, err)
		assert.True(t, p.IsCompleted)
		assert.True(t, awarded)
		require.NotNil(t, p.CompletedAt)

		u, err := env.st.FindUserByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), u.CoinBalance) // $0.01 at 0.001/coin
		assert.Contains(t, u.CompletedLessons, "lesson-1")

		// Further reports on a completed lesson never award again
		_, awarded, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 100})
		require.NoError(t, err)
		assert.False(t, awarded)

		u, err = env.st.FindUserByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), u.CoinBalance)
	})

	t.Run("manual complete after auto complete does not double award", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		_, awarded, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 90})
		require.NoError(t, err)
		require.True(t, awarded)

		p, awarded, err := env.progress.MarkComplete(ctx, "dev-1", "lesson-1")
		require.NoError(t, err)
		assert.True(t, p.IsCompleted)
		assert.False(t, awarded)

		u, err := env.st.FindUserByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(10), u.CoinBalance)
	})

	t.Run("manual complete forces the watermark to 100", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		_, _, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 20})
		require.NoError(t, err)

		p, awarded, err := env.progress.MarkComplete(ctx, "dev-1", "lesson-1")
		require.NoError(t, err)
		assert.True(t, awarded)
		assert.True(t, p.IsCompleted)
		assert.Equal(t, 100, p.ScrollPosition)
	})

	t.Run("reading sessions are appended", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		started := time.Now().Add(-10 * time.Minute)
		p, _, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{
			ScrollPosition:   10,
			SessionStartedAt: &started,
			SessionDuration:  600,
		})
		require.NoError(t, err)
		require.Len(t, p.ReadingSessions, 1)
		assert.Equal(t, 600, p.ReadingSessions[0].DurationSeconds)
		require.NotNil(t, p.ReadingSessions[0].EndedAt)

		started2 := time.Now().Add(-2 * time.Minute)
		p, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{
			ScrollPosition:   20,
			SessionStartedAt: &started2,
			SessionDuration:  120,
		})
		require.NoError(t, err)
		assert.Len(t, p.ReadingSessions, 2)
	})

	t.Run("input validation", func(t *testing.T) {
		env := newProgressEnv(t)
		env.register(t, "dev-1")

		_, _, err := env.progress.Record(ctx, "dev-1", "", services.ProgressInput{ScrollPosition: 10})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 101})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: -1})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("unknown device", func(t *testing.T) {
		env := newProgressEnv(t)
		_, _, err := env.progress.Record(ctx, "ghost", "lesson-1", services.ProgressInput{ScrollPosition: 10})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	env := newProgressEnv(t)
	env.register(t, "dev-1")

	// Unopened lesson returns a zero-valued entry, not an error
	p, err := env.progress.Get(ctx, "dev-1", "lesson-9")
	require.NoError(t, err)
	assert.Equal(t, "lesson-9", p.LessonID)
	assert.Zero(t, p.ScrollPosition)
	assert.False(t, p.IsCompleted)
	assert.Empty(t, p.ReadingSessions)

	_, _, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 85})
	require.NoError(t, err)
	_, _, err = env.progress.Record(ctx, "dev-1", "lesson-2", services.ProgressInput{ScrollPosition: 40})
	require.NoError(t, err)

	entries, completed, err := env.progress.GetAll(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, completed)
}

func TestResetProgress(t *testing.T) {
	ctx := context.Background()
	env := newProgressEnv(t)
	env.register(t, "dev-1")

	_, awarded, err := env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 90})
	require.NoError(t, err)
	require.True(t, awarded)

	require.NoError(t, env.progress.Reset(ctx, "dev-1", "lesson-1"))

	u, err := env.st.FindUserByDevice(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, u.Progress("lesson-1"))
	assert.NotContains(t, u.CompletedLessons, "lesson-1")
	// Awarded coins survive a reset
	assert.Equal(t, int64(10), u.CoinBalance)

	// Re-reading after reset can earn again; the completion marker was removed
	_, awarded, err = env.progress.Record(ctx, "dev-1", "lesson-1", services.ProgressInput{ScrollPosition: 95})
	require.NoError(t, err)
	assert.True(t, awarded)
}
