package models

import (
	"time"

	"github.com/google/uuid"
)

// PricingRuleType: BASE_PRICE picks the starting price, MODIFIER adjusts it.
const (
	RuleTypeBasePrice = "BASE_PRICE"
	RuleTypeModifier  = "MODIFIER"
)

// PriceType of a rule value. FIXED values are cents; PERCENTAGE values are
// whole percent applied to the running total.
const (
	PriceTypeFixed      = "FIXED"
	PriceTypePercentage = "PERCENTAGE"
)

// PricingRule is a conditional price for an event.
type PricingRule struct {
	ID             uuid.UUID   `json:"id"`
	EventID        uuid.UUID   `json:"event_id"`
	Name           string      `json:"name"`
	RuleType       string      `json:"rule_type"`
	Priority       int         `json:"priority"`
	Conditions     []Condition `json:"conditions,omitempty"`
	ConditionLogic string      `json:"condition_logic"`
	PriceType      string      `json:"price_type"`
	PriceValue     int         `json:"price_value"`
	ValidFrom      *time.Time  `json:"valid_from,omitempty"`
	ValidUntil     *time.Time  `json:"valid_until,omitempty"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ValidAt reports whether the rule's validity window contains now.
func (r *PricingRule) ValidAt(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}
