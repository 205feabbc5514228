package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlane/backend/internal/models"
)

func TestCalculatePriceComposition(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 10000, Currency: "EUR"})
	workshop := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true, PriceCents: 2500})
	dinner := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Dinner", ItemType: models.ItemTypeDinner, Active: true, PriceCents: 4000})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "ACME50", AmountCents: 5000, Active: true})
	e := newTestEngine(s)

	bd, err := e.CalculatePrice(context.Background(), ev.ID, nil, []models.ItemSelection{
		{AccessItemID: workshop.ID, Quantity: 1},
		{AccessItemID: dinner.ID, Quantity: 2},
	}, []string{"ACME50", "BOGUS"})
	require.NoError(t, err)

	assert.Equal(t, 10000, bd.BasePriceCents)
	assert.Equal(t, 10000, bd.CalculatedBasePriceCents)
	require.Len(t, bd.AccessItems, 2)
	assert.Equal(t, 8000, bd.AccessItems[1].SubtotalCents)
	assert.Equal(t, 10500, bd.AccessTotalCents)

	require.Len(t, bd.Sponsorships, 2)
	assert.True(t, bd.Sponsorships[0].Valid)
	assert.Equal(t, 5000, bd.Sponsorships[0].AmountCents)
	assert.False(t, bd.Sponsorships[1].Valid)
	assert.Equal(t, 0, bd.Sponsorships[1].AmountCents)
	assert.Equal(t, 5000, bd.SponsorshipTotalCents)

	assert.Equal(t, 20500, bd.SubtotalCents)
	assert.Equal(t, 15500, bd.TotalCents)
	assert.Equal(t, "EUR", bd.Currency)
}

func TestCalculatePriceTotalFloorsAtZero(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "Meetup", BasePriceCents: 2000})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "FULLRIDE", AmountCents: 99999, Active: true})
	e := newTestEngine(s)

	bd, err := e.CalculatePrice(context.Background(), ev.ID, nil, nil, []string{"FULLRIDE"})
	require.NoError(t, err)
	assert.Equal(t, 2000, bd.SubtotalCents)
	assert.Equal(t, 0, bd.TotalCents)
}

func TestCalculatePriceExpiredAndExhaustedCodes(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "Meetup", BasePriceCents: 5000})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "LATE", AmountCents: 1000, Active: true,
		ValidUntil: timePtr(testNow.Add(-time.Hour))})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "USEDUP", AmountCents: 1000, Active: true,
		MaxUses: intPtr(3), UsedCount: 3})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "OFF", AmountCents: 1000})
	e := newTestEngine(s)

	bd, err := e.CalculatePrice(context.Background(), ev.ID, nil, nil, []string{"LATE", "USEDUP", "OFF"})
	require.NoError(t, err)
	require.Len(t, bd.Sponsorships, 3)
	for _, line := range bd.Sponsorships {
		assert.False(t, line.Valid, line.Code)
	}
	assert.Equal(t, 5000, bd.TotalCents)
}

func TestCalculatePriceDuplicateCodesCountOnce(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "Meetup", BasePriceCents: 5000})
	s.addCode(models.SponsorshipCode{EventID: ev.ID, Code: "ACME", AmountCents: 1000, Active: true})
	e := newTestEngine(s)

	bd, err := e.CalculatePrice(context.Background(), ev.ID, nil, nil, []string{"ACME", "ACME"})
	require.NoError(t, err)
	require.Len(t, bd.Sponsorships, 1)
	assert.Equal(t, 1000, bd.SponsorshipTotalCents)
	assert.Equal(t, 4000, bd.TotalCents)
}

func TestCalculatePriceWithRulesAndSelection(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 10000})
	student := baseRule("student", 10, 4000)
	student.EventID = ev.ID
	student.Conditions = []models.Condition{{Field: "role", Operator: models.OpEquals, Value: "student"}}
	student.ConditionLogic = models.ConditionLogicAnd
	s.addRule(student)
	vat := modRule("vat", models.PriceTypePercentage, 20)
	vat.EventID = ev.ID
	s.addRule(vat)
	workshop := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true, PriceCents: 1500})
	e := newTestEngine(s)

	form := map[string]interface{}{"role": "student"}
	bd, err := e.CalculatePrice(context.Background(), ev.ID, form, []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}}, nil)
	require.NoError(t, err)

	// 4000 student base, +20% VAT modifier = 4800; workshop on top.
	assert.Equal(t, 4800, bd.CalculatedBasePriceCents)
	assert.Equal(t, 1500, bd.AccessTotalCents)
	assert.Equal(t, 6300, bd.TotalCents)
	require.Len(t, bd.AppliedRules, 2)
}

func TestCalculatePriceUnknownEventAndItem(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "Meetup"})
	e := newTestEngine(s)

	_, err := e.CalculatePrice(context.Background(), uuid.New(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.CalculatePrice(context.Background(), ev.ID, nil, []models.ItemSelection{{AccessItemID: uuid.New(), Quantity: 1}}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
