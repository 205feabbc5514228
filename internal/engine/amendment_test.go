package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlane/backend/internal/models"
)

// amendFixture books a registration with one workshop seat and one dinner
// place against a 5000-cent base price.
func amendFixture(t *testing.T) (*fakeStore, *Engine, *models.Event, *models.AccessItem, *models.AccessItem, *models.Registration) {
	t.Helper()
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 5000, MaxCapacity: intPtr(100)})
	workshop := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true,
		PriceCents: 1000, MaxCapacity: intPtr(10)})
	dinner := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Dinner", ItemType: models.ItemTypeDinner, Active: true,
		PriceCents: 2000, MaxCapacity: intPtr(10)})
	e := newTestEngine(s)

	reg, err := e.CreateRegistration(context.Background(), CreateParams{
		EventID:  ev.ID,
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
		FormData: map[string]interface{}{"company": "Analytical Engines", "diet": "vegetarian"},
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 1},
			{AccessItemID: dinner.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 8000, reg.TotalAmountCents)
	return s, e, ev, workshop, dinner, reg
}

func markPaid(s *fakeStore, reg *models.Registration) {
	stored := s.registrations[reg.ID]
	stored.PaymentStatus = models.PaymentStatusPaid
	stored.PaidAmountCents = stored.TotalAmountCents
}

func TestReconcileAmendmentUnpaidRemoval(t *testing.T) {
	s, e, _, workshop, dinner, reg := amendFixture(t)

	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Unpaid: the total simply becomes the recomputed amount.
	assert.Equal(t, 6000, res.Registration.TotalAmountCents)
	assert.Equal(t, 0, res.AdditionalAmountDueCents)
	assert.Equal(t, 0, s.items[dinner.ID].RegisteredCount)
	assert.Equal(t, 1, s.items[workshop.ID].RegisteredCount)

	require.Len(t, res.Amendment.RemovedItems, 1)
	assert.Equal(t, dinner.ID, res.Amendment.RemovedItems[0].AccessItemID)
	assert.Equal(t, "Dinner", res.Amendment.RemovedItems[0].Name)
	assert.Equal(t, 8000, res.Amendment.PreviousTotalCents)
	assert.Equal(t, 6000, res.Amendment.NewTotalCents)
}

func TestReconcileAmendmentPaidRemovalBlocked(t *testing.T) {
	s, e, ev, workshop, dinner, reg := amendFixture(t)
	markPaid(s, reg)

	_, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrAccessRemovalBlocked)

	// Nothing moved: total, ledgers and history are untouched.
	stored := s.registrations[reg.ID]
	assert.Equal(t, 8000, stored.TotalAmountCents)
	assert.Equal(t, 1, s.items[dinner.ID].RegisteredCount)
	assert.Equal(t, 1, s.items[workshop.ID].RegisteredCount)
	assert.Equal(t, 1, s.events[ev.ID].RegisteredCount)
	assert.Empty(t, s.amendments[reg.ID])
}

func TestReconcileAmendmentPaidAddition(t *testing.T) {
	s, e, _, workshop, dinner, reg := amendFixture(t)
	markPaid(s, reg)
	extra := s.addItem(models.AccessItem{EventID: reg.EventID, Name: "City Tour", ItemType: models.ItemTypeNetworking, Active: true,
		PriceCents: 1500, MaxCapacity: intPtr(5)})

	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 1},
			{AccessItemID: dinner.ID, Quantity: 1},
			{AccessItemID: extra.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	// Paid: the charged total never changes; the delta is tracked apart.
	assert.Equal(t, 8000, res.Registration.TotalAmountCents)
	assert.Equal(t, 1500, res.AdditionalAmountDueCents)
	assert.Equal(t, 1500, res.Registration.AdditionalAmountDueCents)
	assert.Equal(t, 1, s.items[extra.ID].RegisteredCount)

	require.Len(t, res.Amendment.AddedItems, 1)
	assert.Equal(t, "City Tour", res.Amendment.AddedItems[0].Name)
	assert.Equal(t, 1500, res.Amendment.AddedItems[0].UnitPriceCents)
	assert.Equal(t, 0, res.Amendment.PreviousAdditionalDueCents)
	assert.Equal(t, 1500, res.Amendment.NewAdditionalDueCents)
}

func TestReconcileAmendmentPaidQuantityChange(t *testing.T) {
	s, e, _, workshop, dinner, reg := amendFixture(t)
	markPaid(s, reg)

	// Raising a quantity is an addition and allowed on paid registrations.
	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 1},
			{AccessItemID: dinner.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.items[dinner.ID].RegisteredCount)
	assert.Equal(t, 4000, res.AdditionalAmountDueCents)

	// Lowering one is a removal and refused.
	_, err = e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 1},
			{AccessItemID: dinner.ID, Quantity: 2},
		},
	})
	require.ErrorIs(t, err, ErrAccessRemovalBlocked)
	assert.Equal(t, 3, s.items[dinner.ID].RegisteredCount)
}

func TestReconcileAmendmentAdditionalDueFloorsAtZero(t *testing.T) {
	s, e, ev, _, _, reg := amendFixture(t)
	markPaid(s, reg)

	// A student base rule makes the recomputed total cheaper than what was
	// paid: no refund is owed through this path, due stays zero.
	student := baseRule("student", 10, 1000)
	student.EventID = ev.ID
	student.Conditions = []models.Condition{{Field: "role", Operator: models.OpEquals, Value: "student"}}
	student.ConditionLogic = models.ConditionLogicAnd
	s.addRule(student)

	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		FormData: map[string]interface{}{"role": "student"},
	})
	require.NoError(t, err)
	assert.Equal(t, 8000, res.Registration.TotalAmountCents)
	assert.Equal(t, 0, res.AdditionalAmountDueCents)
	assert.Less(t, res.Breakdown.TotalCents, 8000)
}

func TestReconcileAmendmentFormDiff(t *testing.T) {
	_, e, _, _, _, reg := amendFixture(t)

	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		FormData: map[string]interface{}{
			"diet":    "vegan",
			"company": "Analytical Engines", // unchanged, must not be recorded
			"badge":   "Ada",
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Amendment.FormChanges, 2)
	// Sorted by field name.
	assert.Equal(t, "badge", res.Amendment.FormChanges[0].Field)
	assert.Nil(t, res.Amendment.FormChanges[0].From)
	assert.Equal(t, "Ada", res.Amendment.FormChanges[0].To)
	assert.Equal(t, "diet", res.Amendment.FormChanges[1].Field)
	assert.Equal(t, "vegetarian", res.Amendment.FormChanges[1].From)
	assert.Equal(t, "vegan", res.Amendment.FormChanges[1].To)

	// Untouched fields survive the shallow merge.
	assert.Equal(t, "Analytical Engines", res.Registration.FormData["company"])
	assert.Equal(t, "vegan", res.Registration.FormData["diet"])
}

func TestReconcileAmendmentAppendOnlyHistory(t *testing.T) {
	s, e, _, workshop, dinner, reg := amendFixture(t)

	first, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Amendment.Seq)

	second, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 1},
			{AccessItemID: dinner.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Amendment.Seq)

	history := s.amendments[reg.ID]
	require.Len(t, history, 2)
	// The first record is untouched by the second edit.
	assert.Equal(t, 1, history[0].Seq)
	assert.Equal(t, 6000, history[0].NewTotalCents)
	assert.Equal(t, 8000, history[1].NewTotalCents)
}

func TestReconcileAmendmentRefundedFrozen(t *testing.T) {
	s, e, _, workshop, _, reg := amendFixture(t)
	s.registrations[reg.ID].PaymentStatus = models.PaymentStatusRefunded

	_, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrRegistrationRefunded)
	assert.Empty(t, s.amendments[reg.ID])
}

func TestReconcileAmendmentClosedEvent(t *testing.T) {
	s, e, ev, _, _, reg := amendFixture(t)
	s.events[ev.ID].StartsAt = testNow.Add(-time.Hour)

	_, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		FormData: map[string]interface{}{"diet": "vegan"},
	})
	require.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestReconcileAmendmentKeepsFullItem(t *testing.T) {
	s, e, _, workshop, dinner, reg := amendFixture(t)
	// The dinner fills up after booking; keeping the held place must not
	// require new pool capacity.
	s.items[dinner.ID].RegisteredCount = *s.items[dinner.ID].MaxCapacity

	res, err := e.ReconcileAmendment(context.Background(), reg.ID, EditRequest{
		Selections: []models.ItemSelection{
			{AccessItemID: workshop.ID, Quantity: 2},
			{AccessItemID: dinner.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.items[workshop.ID].RegisteredCount)
	require.Len(t, res.Amendment.AddedItems, 1)
	assert.Equal(t, workshop.ID, res.Amendment.AddedItems[0].AccessItemID)
}
