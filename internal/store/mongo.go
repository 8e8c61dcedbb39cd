package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learn-earn/backend/internal/models"
)

// Mongo implements the stores on top of a MongoDB database. All guarded
// operations are single-document updates, so they are atomic without
// multi-document transactions.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) users() *mongo.Collection    { return m.db.Collection("users") }
func (m *Mongo) payouts() *mongo.Collection  { return m.db.Collection("payouts") }
func (m *Mongo) nonces() *mongo.Collection   { return m.db.Collection("nonces") }
func (m *Mongo) settings() *mongo.Collection { return m.db.Collection("settings") }
func (m *Mongo) versions() *mongo.Collection { return m.db.Collection("versions") }

// EnsureIndexes creates the unique indexes the integrity guarantees depend
// on: one user per device and one use per (device, nonce).
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.nonces().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}, {Key: "nonce", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.payouts().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "requested_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

// ----- UserStore -----

func (m *Mongo) FindUserByDevice(ctx context.Context, deviceID string) (*models.User, error) {
	var u models.User
	err := m.users().FindOne(ctx, bson.M{"device_id": deviceID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := m.users().InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrConflict
	}
	return err
}

func (m *Mongo) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	_, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID},
		bson.M{"$set": bson.M{"last_active_at": at}})
	return err
}

func (m *Mongo) BindMobileNumber(ctx context.Context, deviceID, mmHash string, lockedUntil, now time.Time) error {
	// Allowed when no number is bound yet, the same number is re-bound,
	// or the change lock has expired.
	filter := bson.M{
		"device_id": deviceID,
		"$or": bson.A{
			bson.M{"mm_hash": bson.M{"$in": bson.A{nil, "", mmHash}}},
			bson.M{"number_locked_until": bson.M{"$lte": now}},
		},
	}
	res, err := m.users().UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"mm_hash":             mmHash,
		"number_locked_until": lockedUntil,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := m.FindUserByDevice(ctx, deviceID); err != nil {
			return err
		}
		return models.ErrNumberLocked
	}
	return nil
}

func (m *Mongo) UpsertProgress(ctx context.Context, deviceID, lessonID string, upd ProgressUpdate, now time.Time) (*models.LessonProgress, error) {
	elemUpdate := bson.M{
		"$max": bson.M{"lesson_progress.$[elem].scroll_position": upd.ScrollPosition},
		"$set": bson.M{"lesson_progress.$[elem].last_read_at": now},
	}
	if upd.TimeSpentSeconds > 0 {
		elemUpdate["$set"].(bson.M)["lesson_progress.$[elem].time_spent_seconds"] = upd.TimeSpentSeconds
	}
	if upd.Session != nil {
		elemUpdate["$push"] = bson.M{"lesson_progress.$[elem].reading_sessions": upd.Session}
	}
	arrayOpts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.lesson_id": lessonID}},
	})

	res, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID, "lesson_progress.lesson_id": lessonID},
		elemUpdate, arrayOpts)
	if err != nil {
		return nil, err
	}

	if res.MatchedCount == 0 {
		entry := models.LessonProgress{
			LessonID:         lessonID,
			ScrollPosition:   upd.ScrollPosition,
			TimeSpentSeconds: upd.TimeSpentSeconds,
			LastReadAt:       now,
			ReadingSessions:  []models.ReadingSession{},
		}
		if upd.Session != nil {
			entry.ReadingSessions = append(entry.ReadingSessions, *upd.Session)
		}
		// Guarded push: a concurrent create loses this race and falls
		// back to the element update, keeping lesson ids unique.
		pushRes, err := m.users().UpdateOne(ctx,
			bson.M{"device_id": deviceID, "lesson_progress.lesson_id": bson.M{"$ne": lessonID}},
			bson.M{"$push": bson.M{"lesson_progress": entry}})
		if err != nil {
			return nil, err
		}
		if pushRes.MatchedCount == 0 {
			if _, err := m.users().UpdateOne(ctx,
				bson.M{"device_id": deviceID, "lesson_progress.lesson_id": lessonID},
				elemUpdate, arrayOpts); err != nil {
				return nil, err
			}
		}
	}

	return m.findProgress(ctx, deviceID, lessonID)
}

func (m *Mongo) CompleteLesson(ctx context.Context, deviceID, lessonID string, force bool, award Award, now time.Time) (bool, *models.LessonProgress, error) {
	// Make sure the progress entry exists (manual completion may arrive
	// before any progress report).
	entry := models.LessonProgress{
		LessonID:        lessonID,
		LastReadAt:      now,
		ReadingSessions: []models.ReadingSession{},
	}
	if _, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID, "lesson_progress.lesson_id": bson.M{"$ne": lessonID}},
		bson.M{"$push": bson.M{"lesson_progress": entry}}); err != nil {
		return false, nil, err
	}

	setFields := bson.M{
		"lesson_progress.$[elem].is_completed": true,
		"lesson_progress.$[elem].completed_at": now,
		"lesson_progress.$[elem].last_read_at": now,
	}
	update := bson.M{
		"$set":      setFields,
		"$addToSet": bson.M{"completed_lessons": lessonID},
	}
	if force {
		update["$max"] = bson.M{"lesson_progress.$[elem].scroll_position": 100}
	}
	arrayOpts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.lesson_id": lessonID, "elem.is_completed": false}},
	})

	notCompleted := bson.M{
		"device_id": deviceID,
		"lesson_progress": bson.M{"$elemMatch": bson.M{
			"lesson_id":    lessonID,
			"is_completed": false,
		}},
	}

	// First attempt: flip the completion flag and credit the award in one
	// guarded update. The is_completed guard makes the award exactly-once.
	withAward := bson.M{"earned_today_usd": bson.M{"$lte": award.CapUsd - award.AmountUsd}}
	for k, v := range notCompleted {
		withAward[k] = v
	}
	awardUpdate := bson.M{
		"$set":      setFields,
		"$addToSet": bson.M{"completed_lessons": lessonID},
		"$inc": bson.M{
			"coin_balance":     award.Coins,
			"earned_today_usd": award.AmountUsd,
		},
	}
	if force {
		awardUpdate["$max"] = bson.M{"lesson_progress.$[elem].scroll_position": 100}
	}

	res, err := m.users().UpdateOne(ctx, withAward, awardUpdate, arrayOpts)
	if err != nil {
		return false, nil, err
	}
	awarded := res.ModifiedCount > 0

	if !awarded {
		// Daily cap reached or already completed: record the completion
		// without coins. A no-op here means the lesson was completed
		// earlier, which is fine.
		if _, err := m.users().UpdateOne(ctx, notCompleted, update, arrayOpts); err != nil {
			return false, nil, err
		}
	}

	p, err := m.findProgress(ctx, deviceID, lessonID)
	if err != nil {
		return false, nil, err
	}
	return awarded, p, nil
}

func (m *Mongo) ResetProgress(ctx context.Context, deviceID, lessonID string) error {
	res, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID},
		bson.M{"$pull": bson.M{
			"lesson_progress":   bson.M{"lesson_id": lessonID},
			"completed_lessons": lessonID,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) CreditEarning(ctx context.Context, deviceID string, award Award) (bool, error) {
	res, err := m.users().UpdateOne(ctx,
		bson.M{
			"device_id":        deviceID,
			"earned_today_usd": bson.M{"$lte": award.CapUsd - award.AmountUsd},
		},
		bson.M{"$inc": bson.M{
			"coin_balance":     award.Coins,
			"earned_today_usd": award.AmountUsd,
		}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := m.FindUserByDevice(ctx, deviceID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (m *Mongo) DailyReset(ctx context.Context, deviceID string, now time.Time) error {
	res, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID},
		bson.M{
			"$set": bson.M{"earned_today_usd": float64(0), "last_daily_reset": now},
			"$inc": bson.M{"daily_reset_count": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) ReservePayout(ctx context.Context, deviceID string, coins int64, payoutID string, cooldown time.Duration, now time.Time) error {
	cutoff := now.Add(-cooldown)
	filter := bson.M{
		"device_id":    deviceID,
		"coin_balance": bson.M{"$gte": coins},
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"inflight_payout_id": bson.M{"$exists": false}},
				bson.M{"inflight_payout_id": ""},
			}},
			bson.M{"$or": bson.A{
				bson.M{"last_payout_request_at": bson.M{"$exists": false}},
				bson.M{"last_payout_request_at": bson.M{"$lte": cutoff}},
			}},
		},
	}
	res, err := m.users().UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"coin_balance": -coins},
		"$set": bson.M{
			"last_payout_request_at": now,
			"inflight_payout_id":     payoutID,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

func (m *Mongo) ReleasePayout(ctx context.Context, deviceID, payoutID string, refund int64) error {
	res, err := m.users().UpdateOne(ctx,
		bson.M{"device_id": deviceID, "inflight_payout_id": payoutID},
		bson.M{
			"$inc": bson.M{"coin_balance": refund},
			"$set": bson.M{"inflight_payout_id": ""},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

func (m *Mongo) ListUsers(ctx context.Context, limit, skip int64) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit).
		SetSkip(skip)
	cursor, err := m.users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (m *Mongo) CountUsers(ctx context.Context) (int64, error) {
	return m.users().CountDocuments(ctx, bson.M{})
}

func (m *Mongo) findProgress(ctx context.Context, deviceID, lessonID string) (*models.LessonProgress, error) {
	u, err := m.FindUserByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	p := u.Progress(lessonID)
	if p == nil {
		return nil, models.ErrNotFound
	}
	return p, nil
}

// ----- PayoutStore -----

func (m *Mongo) InsertPayout(ctx context.Context, p *models.Payout) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := m.payouts().InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrConflict
	}
	return err
}

func (m *Mongo) FindPayoutByID(ctx context.Context, id string) (*models.Payout, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	var p models.Payout
	err = m.payouts().FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *Mongo) ListPayoutsByDevice(ctx context.Context, deviceID string, limit int64) ([]models.Payout, error) {
	opts := options.Find().SetSort(bson.M{"requested_at": -1}).SetLimit(limit)
	cursor, err := m.payouts().Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payouts []models.Payout
	if err := cursor.All(ctx, &payouts); err != nil {
		return nil, err
	}
	return payouts, nil
}

func (m *Mongo) ListPayouts(ctx context.Context, status string, limit, skip int64) ([]models.Payout, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.M{"requested_at": -1}).
		SetLimit(limit).
		SetSkip(skip)
	cursor, err := m.payouts().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payouts []models.Payout
	if err := cursor.All(ctx, &payouts); err != nil {
		return nil, err
	}
	return payouts, nil
}

func (m *Mongo) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	return m.payouts().CountDocuments(ctx, bson.M{"status": status})
}

func (m *Mongo) TransitionPayout(ctx context.Context, id string, tr PayoutTransition) (*models.Payout, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}

	set := bson.M{"status": tr.To}
	switch tr.To {
	case models.PayoutStatusApproved:
		set["approved_at"] = tr.At
	case models.PayoutStatusPaid:
		set["paid_at"] = tr.At
	case models.PayoutStatusRejected:
		set["rejected_at"] = tr.At
	}
	if tr.Reason != "" {
		set["reason"] = tr.Reason
	}
	if tr.AdminNotes != "" {
		set["admin_notes"] = tr.AdminNotes
	}
	if tr.TxRef != "" {
		set["tx_ref"] = tr.TxRef
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Payout
	err = m.payouts().FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": bson.M{"$in": tr.AllowedFrom}},
		bson.M{"$set": set}, opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		// Either the payout does not exist or another transition won.
		if _, findErr := m.FindPayoutByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ----- NonceStore -----

func (m *Mongo) RecordNonce(ctx context.Context, deviceID, nonce string, now time.Time) error {
	_, err := m.nonces().InsertOne(ctx, bson.M{
		"device_id":  deviceID,
		"nonce":      nonce,
		"created_at": now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrReplayedNonce
	}
	return err
}

// ----- SettingsStore -----

func (m *Mongo) GetSettings(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	err := m.settings().FindOne(ctx, bson.M{}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Mongo) SeedSettings(ctx context.Context, s *models.Settings) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	_, err := m.settings().UpdateOne(ctx, bson.M{},
		bson.M{"$setOnInsert": s},
		options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) ApplySettings(ctx context.Context, patch models.SettingsPatch, updatedBy string, now time.Time) (*models.Settings, error) {
	set := bson.M{"updated_at": now}
	if updatedBy != "" {
		set["updated_by"] = updatedBy
	}
	if patch.MinPayoutUsd != nil {
		set["min_payout_usd"] = *patch.MinPayoutUsd
	}
	if patch.PayoutCooldownHours != nil {
		set["payout_cooldown_hours"] = *patch.PayoutCooldownHours
	}
	if patch.MaxDailyEarnUsd != nil {
		set["max_daily_earn_usd"] = *patch.MaxDailyEarnUsd
	}
	if patch.SafetyMargin != nil {
		set["safety_margin"] = *patch.SafetyMargin
	}
	if patch.ECPMUsd != nil {
		set["ecpm_usd"] = *patch.ECPMUsd
	}
	if patch.EmulatorPayouts != nil {
		set["emulator_payouts"] = *patch.EmulatorPayouts
	}
	if patch.CoinToUsdRate != nil {
		set["coin_to_usd_rate"] = *patch.CoinToUsdRate
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var s models.Settings
	err := m.settings().FindOneAndUpdate(ctx, bson.M{}, bson.M{"$set": set}, opts).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Mongo) AddImpressions(ctx context.Context, n int64) error {
	_, err := m.settings().UpdateOne(ctx, bson.M{},
		bson.M{"$inc": bson.M{"impressions_today": n}})
	return err
}

// ----- VersionStore -----

func (m *Mongo) GetVersion(ctx context.Context) (*models.Version, error) {
	var v models.Version
	err := m.versions().FindOne(ctx, bson.M{}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (m *Mongo) SeedVersion(ctx context.Context, v *models.Version) error {
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	_, err := m.versions().UpdateOne(ctx, bson.M{},
		bson.M{"$setOnInsert": v},
		options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) ApplyVersion(ctx context.Context, patch models.VersionPatch, updatedBy string, now time.Time) (*models.Version, error) {
	set := bson.M{"last_updated": now}
	if updatedBy != "" {
		set["updated_by"] = updatedBy
	}
	if patch.MinimumVersion != nil {
		set["minimum_version"] = *patch.MinimumVersion
	}
	if patch.MinimumBuildNumber != nil {
		set["minimum_build_number"] = *patch.MinimumBuildNumber
	}
	if patch.LatestVersion != nil {
		set["latest_version"] = *patch.LatestVersion
	}
	if patch.LatestBuildNumber != nil {
		set["latest_build_number"] = *patch.LatestBuildNumber
	}
	if patch.ForceUpdate != nil {
		set["force_update"] = *patch.ForceUpdate
	}
	if patch.UpdateMessage != nil {
		set["update_message"] = *patch.UpdateMessage
	}
	if patch.UpdateTitle != nil {
		set["update_title"] = *patch.UpdateTitle
	}
	if patch.AndroidDownloadURL != nil {
		set["android_download_url"] = *patch.AndroidDownloadURL
	}
	if patch.IOSDownloadURL != nil {
		set["ios_download_url"] = *patch.IOSDownloadURL
	}
	if patch.MaintenanceMode != nil {
		set["maintenance_mode"] = *patch.MaintenanceMode
	}
	if patch.MaintenanceMessage != nil {
		set["maintenance_message"] = *patch.MaintenanceMessage
	}
	if patch.Features != nil {
		set["features"] = *patch.Features
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var v models.Version
	err := m.versions().FindOneAndUpdate(ctx, bson.M{}, bson.M{"$set": set}, opts).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
