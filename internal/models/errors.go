package models

import (
	"errors"
	"fmt"
	"time"
)

// Domain error taxonomy. Handlers map these onto HTTP status codes in one
// place; services return them verbatim so callers get enough detail to act.
var (
	ErrUnauthenticated     = errors.New("device identity required")
	ErrNotFound            = errors.New("not found")
	ErrInvalidSignature    = errors.New("invalid request signature")
	ErrReplayedNonce       = errors.New("nonce already used")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrBelowMinimum        = errors.New("amount below minimum payout")
	ErrEmulatorBlocked     = errors.New("payouts are not available on emulator devices")
	ErrNumberLocked        = errors.New("mobile number is locked and does not match")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrInvalidInput        = errors.New("invalid input")
)

// CooldownError is returned when a payout request arrives while a prior
// request is still in flight or inside the cooldown window. Remaining is
// surfaced to the caller.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("payout cooldown active, %s remaining", e.Remaining.Round(time.Second))
}

// RemainingSeconds is the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) RemainingSeconds() int64 {
	secs := int64((e.Remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
