package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payout statuses. Transitions are monotonic:
// pending -> approved -> paid; pending -> rejected; pending|approved -> canceled.
const (
	PayoutStatusPending  = "pending"
	PayoutStatusApproved = "approved"
	PayoutStatusPaid     = "paid"
	PayoutStatusRejected = "rejected"
	PayoutStatusCanceled = "canceled"
)

// Payout is one redemption attempt. Coins are debited from the user at
// creation (reservation semantics) and restored on reject/cancel.
type Payout struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID     string             `bson:"device_id" json:"deviceId"`
	MobileNumber string             `bson:"mobile_number" json:"mobileNumber"`
	Coins        int64              `bson:"coins" json:"coins"`
	AmountUsd    float64            `bson:"amount_usd" json:"amountUsd"`
	Status       string             `bson:"status" json:"status"`
	Reason       string             `bson:"reason,omitempty" json:"reason,omitempty"`

	RequestedAt time.Time  `bson:"requested_at" json:"requestedAt"`
	ApprovedAt  *time.Time `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	PaidAt      *time.Time `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	RejectedAt  *time.Time `bson:"rejected_at,omitempty" json:"rejectedAt,omitempty"`

	UserRegisteredAt *time.Time `bson:"user_registered_at,omitempty" json:"userRegisteredAt,omitempty"`
	TxRef            string     `bson:"tx_ref,omitempty" json:"txRef,omitempty"`
	AdminNotes       string     `bson:"admin_notes,omitempty" json:"adminNotes,omitempty"`

	// Request authentication material. Nonce is unique per device across
	// all payout requests, accepted or not.
	Signature string `bson:"signature" json:"-"`
	Nonce     string `bson:"nonce" json:"-"`
}

// Terminal reports whether no further transitions are allowed.
func (p *Payout) Terminal() bool {
	return p.Status == PayoutStatusPaid || p.Status == PayoutStatusRejected || p.Status == PayoutStatusCanceled
}
