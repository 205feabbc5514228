package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/models"
)

// CalculatePrice composes the full price breakdown for a selection: pricing
// rules on the event base, access line items, then sponsorship codes.
// Read-only: no capacity is reserved and no counters move. Unknown codes
// are reported invalid with a zero amount, never dropped.
func (e *Engine) CalculatePrice(ctx context.Context, eventID uuid.UUID, formData map[string]interface{}, selections []models.ItemSelection, codes []string) (*models.PriceBreakdown, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, ErrNotFound
	}
	rules, err := e.rules.ListRules(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	items, err := e.items.ListItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list access items: %w", err)
	}
	return e.compose(ctx, event, rules, items, formData, selections, codes)
}

// compose builds a fresh breakdown from already-loaded inputs. Every call
// returns a new value; stored snapshots are never reused or edited.
func (e *Engine) compose(ctx context.Context, event *models.Event, rules []models.PricingRule, items []models.AccessItem, formData map[string]interface{}, selections []models.ItemSelection, codes []string) (*models.PriceBreakdown, error) {
	now := e.now()
	calcBase, applied := resolveBasePrice(event, rules, formData, now)

	byID := make(map[uuid.UUID]*models.AccessItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	bd := &models.PriceBreakdown{
		BasePriceCents:           event.BasePriceCents,
		CalculatedBasePriceCents: calcBase,
		AppliedRules:             applied,
		Currency:                 event.Currency,
	}

	for _, sel := range selections {
		it := byID[sel.AccessItemID]
		if it == nil {
			return nil, fmt.Errorf("access item %s: %w", sel.AccessItemID, ErrNotFound)
		}
		sub := it.PriceCents * sel.Quantity
		bd.AccessItems = append(bd.AccessItems, models.AccessLineItem{
			AccessItemID:   it.ID,
			Name:           it.Name,
			UnitPriceCents: it.PriceCents,
			Quantity:       sel.Quantity,
			SubtotalCents:  sub,
		})
		bd.AccessTotalCents += sub
	}

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		sc, err := e.sponsorships.GetCode(ctx, event.ID, code)
		if err != nil {
			return nil, fmt.Errorf("get sponsorship code: %w", err)
		}
		line := models.SponsorshipLine{Code: code}
		if sc != nil && sc.Usable(now) {
			line.Valid = true
			line.AmountCents = sc.AmountCents
			bd.SponsorshipTotalCents += sc.AmountCents
		}
		bd.Sponsorships = append(bd.Sponsorships, line)
	}

	bd.SubtotalCents = bd.CalculatedBasePriceCents + bd.AccessTotalCents
	total := bd.SubtotalCents - bd.SponsorshipTotalCents
	if total < 0 {
		total = 0
	}
	bd.TotalCents = total
	return bd, nil
}
