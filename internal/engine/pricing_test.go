package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlane/backend/internal/models"
)

func baseRule(name string, priority, value int) models.PricingRule {
	return models.PricingRule{
		ID:         uuid.New(),
		Name:       name,
		RuleType:   models.RuleTypeBasePrice,
		Priority:   priority,
		PriceType:  models.PriceTypeFixed,
		PriceValue: value,
		Active:     true,
		CreatedAt:  testNow.Add(-time.Hour),
	}
}

func modRule(name string, priceType string, value int) models.PricingRule {
	return models.PricingRule{
		ID:         uuid.New(),
		Name:       name,
		RuleType:   models.RuleTypeModifier,
		PriceType:  priceType,
		PriceValue: value,
		Active:     true,
		CreatedAt:  testNow.Add(-time.Hour),
	}
}

func TestResolveBasePriceFirstMatchByPriority(t *testing.T) {
	ev := &models.Event{BasePriceCents: 10000}
	low := baseRule("low", 5, 5000)
	high := baseRule("high", 10, 8000)

	price, applied := resolveBasePrice(ev, []models.PricingRule{low, high}, nil, testNow)
	assert.Equal(t, 8000, price)
	require.Len(t, applied, 1)
	assert.Equal(t, "high", applied[0].Name)
}

func TestResolveBasePriceCreationOrderTieBreak(t *testing.T) {
	ev := &models.Event{BasePriceCents: 10000}
	older := baseRule("older", 5, 7000)
	older.CreatedAt = testNow.Add(-2 * time.Hour)
	newer := baseRule("newer", 5, 6000)
	newer.CreatedAt = testNow.Add(-1 * time.Hour)

	// Listed order must not matter; creation order breaks the tie.
	price, _ := resolveBasePrice(ev, []models.PricingRule{newer, older}, nil, testNow)
	assert.Equal(t, 7000, price)
}

func TestResolveBasePricePercentageBase(t *testing.T) {
	ev := &models.Event{BasePriceCents: 10000}
	half := baseRule("early bird", 10, 50)
	half.PriceType = models.PriceTypePercentage

	price, applied := resolveBasePrice(ev, []models.PricingRule{half}, nil, testNow)
	assert.Equal(t, 5000, price)
	assert.Equal(t, 5000, applied[0].AmountCents)
}

func TestResolveBasePriceModifierCompounding(t *testing.T) {
	ev := &models.Event{BasePriceCents: 100}
	plusTen := modRule("plus ten", models.PriceTypeFixed, 10)
	plusTen.CreatedAt = testNow.Add(-2 * time.Hour)
	plusTenPct := modRule("plus ten percent", models.PriceTypePercentage, 10)
	plusTenPct.CreatedAt = testNow.Add(-1 * time.Hour)

	// 100 + 10 = 110, then +10% of the running 110 = 121.
	price, applied := resolveBasePrice(ev, []models.PricingRule{plusTen, plusTenPct}, nil, testNow)
	assert.Equal(t, 121, price)
	require.Len(t, applied, 2)
	assert.Equal(t, 10, applied[0].AmountCents)
	assert.Equal(t, 11, applied[1].AmountCents)
}

func TestResolveBasePriceConditionsGate(t *testing.T) {
	ev := &models.Event{BasePriceCents: 10000}
	student := baseRule("student", 10, 2000)
	student.Conditions = []models.Condition{{Field: "role", Operator: models.OpEquals, Value: "student"}}
	student.ConditionLogic = models.ConditionLogicAnd

	price, _ := resolveBasePrice(ev, []models.PricingRule{student}, map[string]interface{}{"role": "student"}, testNow)
	assert.Equal(t, 2000, price)

	price, applied := resolveBasePrice(ev, []models.PricingRule{student}, map[string]interface{}{"role": "speaker"}, testNow)
	assert.Equal(t, 10000, price)
	assert.Empty(t, applied)
}

func TestResolveBasePriceValidityAndActive(t *testing.T) {
	ev := &models.Event{BasePriceCents: 10000}
	expired := baseRule("expired", 10, 1000)
	expired.ValidUntil = timePtr(testNow.Add(-time.Minute))
	future := baseRule("future", 9, 2000)
	future.ValidFrom = timePtr(testNow.Add(time.Minute))
	inactive := baseRule("inactive", 8, 3000)
	inactive.Active = false
	live := baseRule("live", 1, 4000)
	live.ValidFrom = timePtr(testNow.Add(-time.Minute))
	live.ValidUntil = timePtr(testNow.Add(time.Minute))

	price, applied := resolveBasePrice(ev, []models.PricingRule{expired, future, inactive, live}, nil, testNow)
	assert.Equal(t, 4000, price)
	require.Len(t, applied, 1)
	assert.Equal(t, "live", applied[0].Name)
}

func TestRoundPercentHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 16, roundPercent(105, 15)) // 15.75
	assert.Equal(t, 53, roundPercent(1050, 5)) // 52.5 rounds up
	assert.Equal(t, -11, roundPercent(105, -10))
	assert.Equal(t, 0, roundPercent(0, 50))
}
