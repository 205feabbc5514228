package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProvider for recorded payments.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderManual = "manual"
)

// PaymentKind distinguishes charges from refunds.
const (
	PaymentKindCharge = "charge"
	PaymentKindRefund = "refund"
)

// Payment is one recorded charge or refund against a registration. The
// registration's payment_status is the state machine; payments are its
// append-only history.
type Payment struct {
	ID                uuid.UUID `json:"id"`
	EventID           uuid.UUID `json:"event_id"`
	RegistrationID    uuid.UUID `json:"registration_id"`
	Provider          string    `json:"provider"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	Kind              string    `json:"kind"`
	AmountCents       int       `json:"amount_cents"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
}
