package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus lifecycle.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"
)

// FormFieldConfig is one field in the attendee registration form (organizer-defined).
type FormFieldConfig struct {
	ID       string   `json:"id"`    // key for storing response, e.g. "company"
	Label    string   `json:"label"` // display label, e.g. "Company name"
	Type     string   `json:"type"`  // "text", "email", "number", "textarea", "select"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // for "select"
}

// Event represents a registrable event.
type Event struct {
	ID                   uuid.UUID         `json:"id"`
	OrganizationID       *uuid.UUID        `json:"organization_id,omitempty"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	StartsAt             time.Time         `json:"starts_at"`
	EndsAt               *time.Time        `json:"ends_at,omitempty"`
	RegistrationOpensAt  *time.Time        `json:"registration_opens_at,omitempty"`
	RegistrationClosesAt *time.Time        `json:"registration_closes_at,omitempty"`
	BasePriceCents       int               `json:"base_price_cents"`
	Currency             string            `json:"currency"`
	MaxCapacity          *int              `json:"max_capacity,omitempty"`
	RegisteredCount      int               `json:"registered_count"`
	FormFields           []FormFieldConfig `json:"form_fields,omitempty"`
	Status               string            `json:"status"`
	CreatedBy            uuid.UUID         `json:"created_by"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// RegistrationOpen reports whether the event accepts registrations at now.
// The window closes at registration_closes_at, or event start when unset.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if e.Status != EventStatusPublished {
		return false
	}
	if e.RegistrationOpensAt != nil && now.Before(*e.RegistrationOpensAt) {
		return false
	}
	closes := e.StartsAt
	if e.RegistrationClosesAt != nil {
		closes = *e.RegistrationClosesAt
	}
	return now.Before(closes)
}

// Remaining returns seats left on the event, or nil when unlimited.
func (e *Event) Remaining() *int {
	if e.MaxCapacity == nil {
		return nil
	}
	r := *e.MaxCapacity - e.RegisteredCount
	if r < 0 {
		r = 0
	}
	return &r
}
