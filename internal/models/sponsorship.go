package models

import (
	"time"

	"github.com/google/uuid"
)

// SponsorshipCode is a fixed-amount subsidy code for an event, typically
// handed out by a sponsor to cover part of an attendee's fee.
type SponsorshipCode struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	Code        string     `json:"code"`
	SponsorName string     `json:"sponsor_name,omitempty"`
	AmountCents int        `json:"amount_cents"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	UsedCount   int        `json:"used_count"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Usable reports whether the code can still be applied at now.
func (s *SponsorshipCode) Usable(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.ValidFrom != nil && now.Before(*s.ValidFrom) {
		return false
	}
	if s.ValidUntil != nil && now.After(*s.ValidUntil) {
		return false
	}
	if s.MaxUses != nil && s.UsedCount >= *s.MaxUses {
		return false
	}
	return true
}
