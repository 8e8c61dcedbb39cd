package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/learn-earn/backend/internal/models"
)

// Memory is an in-memory Store. Every operation runs under one mutex, so
// it provides the same atomicity the Mongo guarded updates do. Used by
// tests and useful for local development without a database.
type Memory struct {
	mu       sync.Mutex
	users    map[string]*models.User
	payouts  map[string]*models.Payout
	nonces   map[string]struct{}
	settings *models.Settings
	version  *models.Version
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*models.User),
		payouts: make(map[string]*models.Payout),
		nonces:  make(map[string]struct{}),
	}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.CompletedLessons = append([]string(nil), u.CompletedLessons...)
	cp.LessonProgress = make([]models.LessonProgress, len(u.LessonProgress))
	for i, p := range u.LessonProgress {
		p.ReadingSessions = append([]models.ReadingSession(nil), p.ReadingSessions...)
		cp.LessonProgress[i] = p
	}
	return &cp
}

func copyProgress(p *models.LessonProgress) *models.LessonProgress {
	cp := *p
	cp.ReadingSessions = append([]models.ReadingSession(nil), p.ReadingSessions...)
	return &cp
}

func copyPayout(p *models.Payout) *models.Payout {
	cp := *p
	return &cp
}

// ----- UserStore -----

func (m *Memory) FindUserByDevice(ctx context.Context, deviceID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) InsertUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.DeviceID]; ok {
		return models.ErrConflict
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.DeviceID] = copyUser(u)
	return nil
}

func (m *Memory) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[deviceID]; ok {
		u.LastActiveAt = at
	}
	return nil
}

func (m *Memory) BindMobileNumber(ctx context.Context, deviceID, mmHash string, lockedUntil, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return models.ErrNotFound
	}
	lockExpired := u.NumberLockedUntil != nil && !u.NumberLockedUntil.After(now)
	if u.MMHash != "" && u.MMHash != mmHash && !lockExpired {
		return models.ErrNumberLocked
	}
	u.MMHash = mmHash
	u.NumberLockedUntil = &lockedUntil
	return nil
}

func (m *Memory) UpsertProgress(ctx context.Context, deviceID, lessonID string, upd ProgressUpdate, now time.Time) (*models.LessonProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return nil, models.ErrNotFound
	}

	p := u.Progress(lessonID)
	if p == nil {
		u.LessonProgress = append(u.LessonProgress, models.LessonProgress{
			LessonID:        lessonID,
			ReadingSessions: []models.ReadingSession{},
		})
		p = &u.LessonProgress[len(u.LessonProgress)-1]
	}
	if upd.ScrollPosition > p.ScrollPosition {
		p.ScrollPosition = upd.ScrollPosition
	}
	if upd.TimeSpentSeconds > 0 {
		p.TimeSpentSeconds = upd.TimeSpentSeconds
	}
	p.LastReadAt = now
	if upd.Session != nil {
		p.ReadingSessions = append(p.ReadingSessions, *upd.Session)
	}
	return copyProgress(p), nil
}

func (m *Memory) CompleteLesson(ctx context.Context, deviceID, lessonID string, force bool, award Award, now time.Time) (bool, *models.LessonProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return false, nil, models.ErrNotFound
	}

	p := u.Progress(lessonID)
	if p == nil {
		u.LessonProgress = append(u.LessonProgress, models.LessonProgress{
			LessonID:        lessonID,
			LastReadAt:      now,
			ReadingSessions: []models.ReadingSession{},
		})
		p = &u.LessonProgress[len(u.LessonProgress)-1]
	}

	if p.IsCompleted {
		return false, copyProgress(p), nil
	}

	p.IsCompleted = true
	completedAt := now
	p.CompletedAt = &completedAt
	p.LastReadAt = now
	if force && p.ScrollPosition < 100 {
		p.ScrollPosition = 100
	}
	if !contains(u.CompletedLessons, lessonID) {
		u.CompletedLessons = append(u.CompletedLessons, lessonID)
	}

	awarded := false
	if u.EarnedTodayUsd+award.AmountUsd <= award.CapUsd {
		u.CoinBalance += award.Coins
		u.EarnedTodayUsd += award.AmountUsd
		awarded = true
	}
	return awarded, copyProgress(p), nil
}

func (m *Memory) ResetProgress(ctx context.Context, deviceID, lessonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return models.ErrNotFound
	}

	kept := u.LessonProgress[:0]
	for _, p := range u.LessonProgress {
		if p.LessonID != lessonID {
			kept = append(kept, p)
		}
	}
	u.LessonProgress = kept

	lessons := u.CompletedLessons[:0]
	for _, id := range u.CompletedLessons {
		if id != lessonID {
			lessons = append(lessons, id)
		}
	}
	u.CompletedLessons = lessons
	return nil
}

func (m *Memory) CreditEarning(ctx context.Context, deviceID string, award Award) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return false, models.ErrNotFound
	}
	if u.EarnedTodayUsd+award.AmountUsd > award.CapUsd {
		return false, nil
	}
	u.CoinBalance += award.Coins
	u.EarnedTodayUsd += award.AmountUsd
	return true, nil
}

func (m *Memory) DailyReset(ctx context.Context, deviceID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return models.ErrNotFound
	}
	u.EarnedTodayUsd = 0
	reset := now
	u.LastDailyReset = &reset
	u.DailyResetCount++
	return nil
}

func (m *Memory) ReservePayout(ctx context.Context, deviceID string, coins int64, payoutID string, cooldown time.Duration, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return models.ErrNotFound
	}
	if u.CoinBalance < coins || u.InflightPayoutID != "" {
		return models.ErrConflict
	}
	if u.LastPayoutRequestAt != nil && u.LastPayoutRequestAt.After(now.Add(-cooldown)) {
		return models.ErrConflict
	}
	u.CoinBalance -= coins
	requestedAt := now
	u.LastPayoutRequestAt = &requestedAt
	u.InflightPayoutID = payoutID
	return nil
}

func (m *Memory) ReleasePayout(ctx context.Context, deviceID, payoutID string, refund int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[deviceID]
	if !ok {
		return models.ErrNotFound
	}
	if u.InflightPayoutID != payoutID {
		return models.ErrConflict
	}
	u.CoinBalance += refund
	u.InflightPayoutID = ""
	return nil
}

func (m *Memory) ListUsers(ctx context.Context, limit, skip int64) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *copyUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if skip >= int64(len(all)) {
		return []models.User{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < int64(len(all)) {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) CountUsers(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// ----- PayoutStore -----

func (m *Memory) InsertPayout(ctx context.Context, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	id := p.ID.Hex()
	if _, ok := m.payouts[id]; ok {
		return models.ErrConflict
	}
	m.payouts[id] = copyPayout(p)
	return nil
}

func (m *Memory) FindPayoutByID(ctx context.Context, id string) (*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyPayout(p), nil
}

func (m *Memory) ListPayoutsByDevice(ctx context.Context, deviceID string, limit int64) ([]models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payout
	for _, p := range m.payouts {
		if p.DeviceID == deviceID {
			out = append(out, *copyPayout(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListPayouts(ctx context.Context, status string, limit, skip int64) ([]models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payout
	for _, p := range m.payouts {
		if status == "" || p.Status == status {
			out = append(out, *copyPayout(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if skip >= int64(len(out)) {
		return []models.Payout{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.payouts {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) TransitionPayout(ctx context.Context, id string, tr PayoutTransition) (*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !contains(tr.AllowedFrom, p.Status) {
		return nil, models.ErrConflict
	}
	p.Status = tr.To
	at := tr.At
	switch tr.To {
	case models.PayoutStatusApproved:
		p.ApprovedAt = &at
	case models.PayoutStatusPaid:
		p.PaidAt = &at
	case models.PayoutStatusRejected:
		p.RejectedAt = &at
	}
	if tr.Reason != "" {
		p.Reason = tr.Reason
	}
	if tr.AdminNotes != "" {
		p.AdminNotes = tr.AdminNotes
	}
	if tr.TxRef != "" {
		p.TxRef = tr.TxRef
	}
	return copyPayout(p), nil
}

// ----- NonceStore -----

func (m *Memory) RecordNonce(ctx context.Context, deviceID, nonce string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := deviceID + "\x00" + nonce
	if _, ok := m.nonces[key]; ok {
		return models.ErrReplayedNonce
	}
	m.nonces[key] = struct{}{}
	return nil
}

// ----- SettingsStore -----

func (m *Memory) GetSettings(ctx context.Context) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, models.ErrNotFound
	}
	cp := *m.settings
	return &cp, nil
}

func (m *Memory) SeedSettings(ctx context.Context, s *models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings != nil {
		return nil
	}
	cp := *s
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	}
	m.settings = &cp
	return nil
}

func (m *Memory) ApplySettings(ctx context.Context, patch models.SettingsPatch, updatedBy string, now time.Time) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, models.ErrNotFound
	}
	s := m.settings
	if patch.MinPayoutUsd != nil {
		s.MinPayoutUsd = *patch.MinPayoutUsd
	}
	if patch.PayoutCooldownHours != nil {
		s.PayoutCooldownHours = *patch.PayoutCooldownHours
	}
	if patch.MaxDailyEarnUsd != nil {
		s.MaxDailyEarnUsd = *patch.MaxDailyEarnUsd
	}
	if patch.SafetyMargin != nil {
		s.SafetyMargin = *patch.SafetyMargin
	}
	if patch.ECPMUsd != nil {
		s.ECPMUsd = *patch.ECPMUsd
	}
	if patch.EmulatorPayouts != nil {
		s.EmulatorPayouts = *patch.EmulatorPayouts
	}
	if patch.CoinToUsdRate != nil {
		s.CoinToUsdRate = *patch.CoinToUsdRate
	}
	s.UpdatedAt = now
	if updatedBy != "" {
		s.UpdatedBy = updatedBy
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) AddImpressions(ctx context.Context, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings != nil {
		m.settings.ImpressionsToday += n
	}
	return nil
}

// ----- VersionStore -----

func (m *Memory) GetVersion(ctx context.Context) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version == nil {
		return nil, models.ErrNotFound
	}
	cp := *m.version
	return &cp, nil
}

func (m *Memory) SeedVersion(ctx context.Context, v *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version != nil {
		return nil
	}
	cp := *v
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	}
	m.version = &cp
	return nil
}

func (m *Memory) ApplyVersion(ctx context.Context, patch models.VersionPatch, updatedBy string, now time.Time) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version == nil {
		return nil, models.ErrNotFound
	}
	v := m.version
	if patch.MinimumVersion != nil {
		v.MinimumVersion = *patch.MinimumVersion
	}
	if patch.MinimumBuildNumber != nil {
		v.MinimumBuildNumber = *patch.MinimumBuildNumber
	}
	if patch.LatestVersion != nil {
		v.LatestVersion = *patch.LatestVersion
	}
	if patch.LatestBuildNumber != nil {
		v.LatestBuildNumber = *patch.LatestBuildNumber
	}
	if patch.ForceUpdate != nil {
		v.ForceUpdate = *patch.ForceUpdate
	}
	if patch.UpdateMessage != nil {
		v.UpdateMessage = *patch.UpdateMessage
	}
	if patch.UpdateTitle != nil {
		v.UpdateTitle = *patch.UpdateTitle
	}
	if patch.AndroidDownloadURL != nil {
		v.AndroidDownloadURL = *patch.AndroidDownloadURL
	}
	if patch.IOSDownloadURL != nil {
		v.IOSDownloadURL = *patch.IOSDownloadURL
	}
	if patch.MaintenanceMode != nil {
		v.MaintenanceMode = *patch.MaintenanceMode
	}
	if patch.MaintenanceMessage != nil {
		v.MaintenanceMessage = *patch.MaintenanceMessage
	}
	if patch.Features != nil {
		v.Features = *patch.Features
	}
	v.LastUpdated = now
	if updatedBy != "" {
		v.UpdatedBy = updatedBy
	}
	cp := *v
	return &cp, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
