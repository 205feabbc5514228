package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus of a registration. Transitions are pending → paid → refunded.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Registration is an attendee registration for an event, with its selected
// access items and the price breakdown snapshotted at booking time.
type Registration struct {
	ID                       uuid.UUID              `json:"id"`
	EventID                  uuid.UUID              `json:"event_id"`
	Email                    string                 `json:"email"`
	FullName                 string                 `json:"full_name"`
	FormData                 map[string]interface{} `json:"form_data,omitempty"`
	PaymentStatus            string                 `json:"payment_status"`
	PaidAmountCents          int                    `json:"paid_amount_cents"`
	TotalAmountCents         int                    `json:"total_amount_cents"`
	AdditionalAmountDueCents int                    `json:"additional_amount_due_cents"`
	SponsorshipCodes         []string               `json:"sponsorship_codes,omitempty"`
	PriceBreakdown           *PriceBreakdown        `json:"price_breakdown,omitempty"`
	IdempotencyKey           string                 `json:"idempotency_key,omitempty"`
	Items                    []RegistrationItem     `json:"items,omitempty"`
	ConfirmedAt              *time.Time             `json:"confirmed_at,omitempty"`
	CheckedInAt              *time.Time             `json:"checked_in_at,omitempty"`
	CreatedAt                time.Time              `json:"created_at"`
	UpdatedAt                time.Time              `json:"updated_at"`
}

// Paid reports whether any money has been collected for the registration.
func (r *Registration) Paid() bool {
	return r.PaymentStatus == PaymentStatusPaid || r.PaidAmountCents > 0
}

// RegistrationItem is one selected access item on a registration. Name is
// denormalized from the item at load time for display.
type RegistrationItem struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	AccessItemID   uuid.UUID `json:"access_item_id"`
	Name           string    `json:"name,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

// ItemSelection is a requested access item with quantity.
type ItemSelection struct {
	AccessItemID uuid.UUID `json:"access_item_id"`
	Quantity     int       `json:"quantity"`
}
