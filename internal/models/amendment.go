package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldChange records one form field's before/after values.
type FieldChange struct {
	Field string      `json:"field"`
	From  interface{} `json:"from,omitempty"`
	To    interface{} `json:"to,omitempty"`
}

// ItemChange records one access item added or removed by an amendment.
type ItemChange struct {
	AccessItemID   uuid.UUID `json:"access_item_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

// Amendment is one post-registration change record. The table is
// append-only: rows are never updated or deleted, and Seq counts from 1
// per registration in the order changes were applied.
type Amendment struct {
	ID                         uuid.UUID       `json:"id"`
	RegistrationID             uuid.UUID       `json:"registration_id"`
	Seq                        int             `json:"seq"`
	FormChanges                []FieldChange   `json:"form_changes,omitempty"`
	AddedItems                 []ItemChange    `json:"added_items,omitempty"`
	RemovedItems               []ItemChange    `json:"removed_items,omitempty"`
	PreviousTotalCents         int             `json:"previous_total_cents"`
	NewTotalCents              int             `json:"new_total_cents"`
	PreviousAdditionalDueCents int             `json:"previous_additional_due_cents"`
	NewAdditionalDueCents      int             `json:"new_additional_due_cents"`
	PriceBreakdown             *PriceBreakdown `json:"price_breakdown,omitempty"`
	CreatedAt                  time.Time       `json:"created_at"`
}
