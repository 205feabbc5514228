package engine

import (
	"math"
	"sort"
	"time"

	"github.com/eventlane/backend/internal/models"
)

// resolveBasePrice applies an event's pricing rules to its configured base
// price at now. Rules are ordered by descending priority, then creation
// order for a stable tie-break. The first matching BASE_PRICE rule alone
// sets the base (FIXED replaces it; PERCENTAGE is taken of the configured
// base). Every matching MODIFIER then applies cumulatively in the same
// order, percentages compounding on the running total. Returns the
// calculated base and each applied rule with its numeric effect.
func resolveBasePrice(event *models.Event, rules []models.PricingRule, formData map[string]interface{}, now time.Time) (int, []models.AppliedRule) {
	ordered := make([]models.PricingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	price := event.BasePriceCents
	var applied []models.AppliedRule

	for i := range ordered {
		r := &ordered[i]
		if r.RuleType != models.RuleTypeBasePrice || !r.Active || !r.ValidAt(now) {
			continue
		}
		if !EvaluateConditions(r.Conditions, r.ConditionLogic, formData) {
			continue
		}
		if r.PriceType == models.PriceTypePercentage {
			price = roundPercent(event.BasePriceCents, r.PriceValue)
		} else {
			price = r.PriceValue
		}
		applied = append(applied, models.AppliedRule{
			RuleID:      r.ID,
			Name:        r.Name,
			RuleType:    r.RuleType,
			PriceType:   r.PriceType,
			AmountCents: price,
		})
		break
	}

	for i := range ordered {
		r := &ordered[i]
		if r.RuleType != models.RuleTypeModifier || !r.Active || !r.ValidAt(now) {
			continue
		}
		if !EvaluateConditions(r.Conditions, r.ConditionLogic, formData) {
			continue
		}
		delta := r.PriceValue
		if r.PriceType == models.PriceTypePercentage {
			delta = roundPercent(price, r.PriceValue)
		}
		price += delta
		applied = append(applied, models.AppliedRule{
			RuleID:      r.ID,
			Name:        r.Name,
			RuleType:    r.RuleType,
			PriceType:   r.PriceType,
			AmountCents: delta,
		})
	}
	return price, applied
}

// roundPercent is percent of cents, rounded half away from zero.
func roundPercent(cents, percent int) int {
	return int(math.Round(float64(cents) * float64(percent) / 100.0))
}
