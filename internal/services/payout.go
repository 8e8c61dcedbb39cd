package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/learn-earn/backend/internal/models"
	"github.com/learn-earn/backend/internal/store"
)

// NumberChangeLock is how long a mobile money number stays locked after
// being bound or used in a payout.
const NumberChangeLock = 72 * time.Hour

// Admin/user actions on a payout.
const (
	PayoutActionApprove  = "approve"
	PayoutActionReject   = "reject"
	PayoutActionMarkPaid = "markPaid"
	PayoutActionCancel   = "cancel"
)

// PayoutRequest is a signed redemption attempt.
type PayoutRequest struct {
	MobileNumber string
	Coins        int64
	Signature    string
	Nonce        string
}

// PayoutService validates payout requests and drives them through the
// state machine: pending -> approved -> paid, pending -> rejected,
// pending|approved -> canceled.
type PayoutService struct {
	users    store.UserStore
	payouts  store.PayoutStore
	nonces   store.NonceStore
	settings *SettingsService
}

func NewPayoutService(users store.UserStore, payouts store.PayoutStore, nonces store.NonceStore, settings *SettingsService) *PayoutService {
	return &PayoutService{users: users, payouts: payouts, nonces: nonces, settings: settings}
}

// Request creates a payout. Order is fixed: authentication (signature,
// nonce), then policy (emulator, minimum, number lock), then the atomic
// reservation that checks balance and cooldown and debits in one step.
// Nothing mutates before the signature and nonce checks pass, and the
// nonce is burned even when a later policy check rejects the request.
func (s *PayoutService) Request(ctx context.Context, user *models.User, req PayoutRequest) (*models.Payout, error) {
	if req.MobileNumber == "" || req.Coins <= 0 || req.Signature == "" || req.Nonce == "" {
		return nil, models.ErrInvalidInput
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	if err := VerifyPayoutSignature(settings.AppPepper, user, req.MobileNumber, req.Coins, req.Nonce, req.Signature); err != nil {
		return nil, err
	}
	if err := s.nonces.RecordNonce(ctx, user.DeviceID, req.Nonce, now); err != nil {
		return nil, err
	}

	if user.IsEmulator && !settings.EmulatorPayouts {
		return nil, models.ErrEmulatorBlocked
	}

	amountUsd := UsdForCoins(settings, req.Coins)
	if amountUsd < settings.MinPayoutUsd {
		return nil, models.ErrBelowMinimum
	}

	mmHash := HashMobileNumber(settings.AppPepper, req.MobileNumber)
	if user.MMHash != "" && user.MMHash != mmHash {
		if user.NumberLockedUntil != nil && user.NumberLockedUntil.After(now) {
			return nil, models.ErrNumberLocked
		}
	}

	payoutID := primitive.NewObjectID()
	err = s.users.ReservePayout(ctx, user.DeviceID, req.Coins, payoutID.Hex(), settings.PayoutCooldown(), now)
	if err == models.ErrConflict {
		return nil, s.diagnoseReservation(ctx, user.DeviceID, req.Coins, settings.PayoutCooldown(), now)
	}
	if err != nil {
		return nil, err
	}

	// Reservation committed: (re)bind the number and lock changes.
	_ = s.users.BindMobileNumber(ctx, user.DeviceID, mmHash, now.Add(NumberChangeLock), now)

	registeredAt := user.CreatedAt
	payout := &models.Payout{
		ID:               payoutID,
		DeviceID:         user.DeviceID,
		MobileNumber:     req.MobileNumber,
		Coins:            req.Coins,
		AmountUsd:        amountUsd,
		Status:           models.PayoutStatusPending,
		RequestedAt:      now,
		UserRegisteredAt: &registeredAt,
		Signature:        req.Signature,
		Nonce:            req.Nonce,
	}
	if err := s.payouts.InsertPayout(ctx, payout); err != nil {
		// Roll the reservation back so the debit is not stranded
		_ = s.users.ReleasePayout(ctx, user.DeviceID, payoutID.Hex(), req.Coins)
		return nil, err
	}
	return payout, nil
}

// diagnoseReservation re-reads the user to turn a failed reservation
// guard into the precondition that actually failed.
func (s *PayoutService) diagnoseReservation(ctx context.Context, deviceID string, coins int64, cooldown time.Duration, now time.Time) error {
	u, err := s.users.FindUserByDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if u.CoinBalance < coins {
		return models.ErrInsufficientBalance
	}
	if u.InflightPayoutID != "" || (u.LastPayoutRequestAt != nil && u.LastPayoutRequestAt.After(now.Add(-cooldown))) {
		var remaining time.Duration
		if u.LastPayoutRequestAt != nil {
			remaining = u.LastPayoutRequestAt.Add(cooldown).Sub(now)
		}
		if remaining < 0 {
			remaining = 0
		}
		return &models.CooldownError{Remaining: remaining}
	}
	return models.ErrConflict
}

// SetMobileNumber binds (or rebinds) the mobile money number. A bound
// number is locked against changes for NumberChangeLock.
func (s *PayoutService) SetMobileNumber(ctx context.Context, user *models.User, mobileNumber string) error {
	if mobileNumber == "" {
		return models.ErrInvalidInput
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	mmHash := HashMobileNumber(settings.AppPepper, mobileNumber)
	return s.users.BindMobileNumber(ctx, user.DeviceID, mmHash, now.Add(NumberChangeLock), now)
}

// CooldownStatus reports whether the device may request a payout and how
// long until the window opens.
type CooldownStatus struct {
	Active           bool  `json:"active"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

func (s *PayoutService) CooldownStatus(ctx context.Context, user *models.User) (*CooldownStatus, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	status := &CooldownStatus{}
	if user.LastPayoutRequestAt != nil {
		until := user.LastPayoutRequestAt.Add(settings.PayoutCooldown())
		if until.After(now) {
			status.Active = true
			remaining := until.Sub(now)
			status.RemainingSeconds = int64((remaining + time.Second - 1) / time.Second)
		}
	}
	if user.InflightPayoutID != "" {
		status.Active = true
	}
	return status, nil
}

// UpdateStatus applies an admin action. Reject and cancel restore the
// debited coins; mark-paid settles the reservation without a refund.
func (s *PayoutService) UpdateStatus(ctx context.Context, payoutID, action, reason, notes, txRef string) (*models.Payout, error) {
	now := time.Now()
	switch action {
	case PayoutActionApprove:
		return s.payouts.TransitionPayout(ctx, payoutID, store.PayoutTransition{
			To:          models.PayoutStatusApproved,
			AllowedFrom: []string{models.PayoutStatusPending},
			AdminNotes:  notes,
			At:          now,
		})
	case PayoutActionMarkPaid:
		return s.transitionAndRelease(ctx, payoutID, store.PayoutTransition{
			To:          models.PayoutStatusPaid,
			AllowedFrom: []string{models.PayoutStatusApproved},
			AdminNotes:  notes,
			TxRef:       txRef,
			At:          now,
		}, 0)
	case PayoutActionReject:
		return s.transitionAndRelease(ctx, payoutID, store.PayoutTransition{
			To:          models.PayoutStatusRejected,
			AllowedFrom: []string{models.PayoutStatusPending, models.PayoutStatusApproved},
			Reason:      reason,
			AdminNotes:  notes,
			At:          now,
		}, -1)
	case PayoutActionCancel:
		return s.transitionAndRelease(ctx, payoutID, store.PayoutTransition{
			To:          models.PayoutStatusCanceled,
			AllowedFrom: []string{models.PayoutStatusPending, models.PayoutStatusApproved},
			Reason:      reason,
			AdminNotes:  notes,
			At:          now,
		}, -1)
	default:
		return nil, models.ErrInvalidInput
	}
}

// Cancel is the user-initiated cancellation, allowed from pending only.
func (s *PayoutService) Cancel(ctx context.Context, user *models.User, payoutID string) (*models.Payout, error) {
	p, err := s.payouts.FindPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.DeviceID != user.DeviceID {
		return nil, models.ErrNotFound
	}
	return s.transitionAndRelease(ctx, payoutID, store.PayoutTransition{
		To:          models.PayoutStatusCanceled,
		AllowedFrom: []string{models.PayoutStatusPending},
		At:          time.Now(),
	}, -1)
}

// transitionAndRelease flips the payout status and settles the user-side
// reservation. refund < 0 means refund the payout's coins. The status
// guard ensures only one transition wins, and the release is guarded on
// the in-flight marker, so a refund can apply at most once. If the
// release fails the status flip is compensated so the record never says
// rejected while the coins are still withheld.
func (s *PayoutService) transitionAndRelease(ctx context.Context, payoutID string, tr store.PayoutTransition, refund int64) (*models.Payout, error) {
	prior, err := s.payouts.FindPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	p, err := s.payouts.TransitionPayout(ctx, payoutID, tr)
	if err != nil {
		return nil, err
	}

	if refund < 0 {
		refund = p.Coins
	}
	if err := s.users.ReleasePayout(ctx, p.DeviceID, payoutID, refund); err != nil {
		_, _ = s.payouts.TransitionPayout(ctx, payoutID, store.PayoutTransition{
			To:          prior.Status,
			AllowedFrom: []string{tr.To},
			At:          time.Now(),
		})
		return nil, err
	}
	return p, nil
}

// History returns the device's payouts, newest first.
func (s *PayoutService) History(ctx context.Context, deviceID string, limit int64) ([]models.Payout, error) {
	return s.payouts.ListPayoutsByDevice(ctx, deviceID, limit)
}

// Status returns one payout, scoped to the requesting device.
func (s *PayoutService) Status(ctx context.Context, user *models.User, payoutID string) (*models.Payout, error) {
	p, err := s.payouts.FindPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.DeviceID != user.DeviceID {
		return nil, models.ErrNotFound
	}
	return p, nil
}

// ListAll is the admin payout queue.
func (s *PayoutService) ListAll(ctx context.Context, status string, limit, skip int64) ([]models.Payout, error) {
	return s.payouts.ListPayouts(ctx, status, limit, skip)
}

// PendingCount is used by the admin dashboard.
func (s *PayoutService) PendingCount(ctx context.Context) (int64, error) {
	return s.payouts.CountPayoutsByStatus(ctx, models.PayoutStatusPending)
}
