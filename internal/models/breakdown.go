package models

import "github.com/google/uuid"

// AppliedRule records one pricing rule's effect. For a BASE_PRICE rule
// AmountCents is the base it set; for a MODIFIER it is the signed change.
type AppliedRule struct {
	RuleID      uuid.UUID `json:"rule_id"`
	Name        string    `json:"name"`
	RuleType    string    `json:"rule_type"`
	PriceType   string    `json:"price_type"`
	AmountCents int       `json:"amount_cents"`
}

// AccessLineItem is one selected access item's cost line.
type AccessLineItem struct {
	AccessItemID   uuid.UUID `json:"access_item_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	SubtotalCents  int       `json:"subtotal_cents"`
}

// SponsorshipLine reports one submitted code's effect. Invalid codes are
// listed with Valid false and a zero amount rather than dropped.
type SponsorshipLine struct {
	Code        string `json:"code"`
	AmountCents int    `json:"amount_cents"`
	Valid       bool   `json:"valid"`
}

// PriceBreakdown is the full cost composition for a selection. It is
// recomputed from scratch on every quote and snapshotted onto registrations;
// a stored breakdown is never edited in place.
type PriceBreakdown struct {
	BasePriceCents           int               `json:"base_price_cents"`
	CalculatedBasePriceCents int               `json:"calculated_base_price_cents"`
	AppliedRules             []AppliedRule     `json:"applied_rules,omitempty"`
	AccessItems              []AccessLineItem  `json:"access_items,omitempty"`
	AccessTotalCents         int               `json:"access_total_cents"`
	Sponsorships             []SponsorshipLine `json:"sponsorships,omitempty"`
	SponsorshipTotalCents    int               `json:"sponsorship_total_cents"`
	SubtotalCents            int               `json:"subtotal_cents"`
	TotalCents               int               `json:"total_cents"`
	Currency                 string            `json:"currency"`
}
