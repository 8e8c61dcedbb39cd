package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/learn-earn/backend/internal/models"
)

// Request authentication for money-relevant endpoints. The scheme is
// symmetric: the signing key is derived from the app pepper and the
// device's registered material, so only a device that registered its pub
// key (and a server that knows the pepper) can produce a valid signature.
//
// Canonical payload: deviceId|mobileNumber|coins|nonce. The nonce is
// single-use per device; uniqueness alone prevents replay (nonces never
// expire).

// SigningKey derives the per-device HMAC key.
func SigningKey(pepper, deviceID, pubKey string) []byte {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(deviceID))
	mac.Write([]byte(":"))
	mac.Write([]byte(pubKey))
	return mac.Sum(nil)
}

// PayoutCanonicalPayload is the exact byte string both sides sign.
func PayoutCanonicalPayload(deviceID, mobileNumber string, coins int64, nonce string) string {
	return fmt.Sprintf("%s|%s|%d|%s", deviceID, mobileNumber, coins, nonce)
}

// SignPayoutRequest computes the hex signature for a payout request. The
// mobile client implements the same derivation.
func SignPayoutRequest(pepper string, user *models.User, mobileNumber string, coins int64, nonce string) string {
	key := SigningKey(pepper, user.DeviceID, user.PubKey)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(PayoutCanonicalPayload(user.DeviceID, mobileNumber, coins, nonce)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayoutSignature recomputes the expected signature and compares in
// constant time. It performs no I/O and must run before any state change.
func VerifyPayoutSignature(pepper string, user *models.User, mobileNumber string, coins int64, nonce, signature string) error {
	expected := SignPayoutRequest(pepper, user, mobileNumber, coins, nonce)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return models.ErrInvalidSignature
	}
	return nil
}

// HashMobileNumber produces the stored mm_hash for a mobile money number.
// Peppered so a leaked database does not expose phone numbers to a plain
// dictionary scan.
func HashMobileNumber(pepper, mobileNumber string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(mobileNumber))
	return hex.EncodeToString(mac.Sum(nil))
}
