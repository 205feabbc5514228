package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessItemType classifies access items. "other" items group by group_label.
const (
	ItemTypeSession       = "session"
	ItemTypeWorkshop      = "workshop"
	ItemTypeDinner        = "dinner"
	ItemTypeNetworking    = "networking"
	ItemTypeAccommodation = "accommodation"
	ItemTypeTransport     = "transport"
	ItemTypeOther         = "other"
)

// SelectionType of a slot: radio-style when alternatives compete for the
// same start time, checkbox-style otherwise.
const (
	SelectionSingle   = "single"
	SelectionMultiple = "multiple"
)

// AccessItem is a bookable component of an event (workshop seat, dinner
// place, shuttle, ...). Capacity counters only move through the ledger.
type AccessItem struct {
	ID              uuid.UUID   `json:"id"`
	EventID         uuid.UUID   `json:"event_id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	ItemType        string      `json:"item_type"`
	GroupLabel      string      `json:"group_label,omitempty"`
	StartsAt        *time.Time  `json:"starts_at,omitempty"`
	EndsAt          *time.Time  `json:"ends_at,omitempty"`
	AvailableFrom   *time.Time  `json:"available_from,omitempty"`
	AvailableTo     *time.Time  `json:"available_to,omitempty"`
	PriceCents      int         `json:"price_cents"`
	MaxCapacity     *int        `json:"max_capacity,omitempty"`
	RegisteredCount int         `json:"registered_count"`
	Conditions      []Condition `json:"conditions,omitempty"`
	ConditionLogic  string      `json:"condition_logic"`
	Prerequisites   []uuid.UUID `json:"prerequisites,omitempty"`
	Active          bool        `json:"active"`
	SortOrder       int         `json:"sort_order"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Remaining returns seats left, or nil when capacity is unlimited.
func (a *AccessItem) Remaining() *int {
	if a.MaxCapacity == nil {
		return nil
	}
	r := *a.MaxCapacity - a.RegisteredCount
	if r < 0 {
		r = 0
	}
	return &r
}

// AvailableAt reports whether the item's sale window contains now.
func (a *AccessItem) AvailableAt(now time.Time) bool {
	if a.AvailableFrom != nil && now.Before(*a.AvailableFrom) {
		return false
	}
	if a.AvailableTo != nil && now.After(*a.AvailableTo) {
		return false
	}
	return true
}

// AccessSlot is one start-time bucket inside a group. Items sharing an exact
// start time compete: two or more make the slot single-choice.
type AccessSlot struct {
	StartsAt      *time.Time   `json:"starts_at,omitempty"`
	EndsAt        *time.Time   `json:"ends_at,omitempty"`
	SelectionType string       `json:"selection_type"`
	Items         []AccessItem `json:"items"`
}

// AccessGroup is one section of the grouped item view shown to attendees.
type AccessGroup struct {
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Slots []AccessSlot `json:"slots"`
}
