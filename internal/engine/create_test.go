package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlane/backend/internal/models"
)

func TestCreateRegistration(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 10000, MaxCapacity: intPtr(100)})
	workshop := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true,
		PriceCents: 2500, MaxCapacity: intPtr(20)})
	e := newTestEngine(s)

	reg, err := e.CreateRegistration(context.Background(), CreateParams{
		EventID:        ev.ID,
		Email:          "ada@example.com",
		FullName:       "Ada Lovelace",
		FormData:       map[string]interface{}{"company": "Analytical Engines"},
		Selections:     []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 2}},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, reg.PaymentStatus)
	assert.Equal(t, 15000, reg.TotalAmountCents)
	require.NotNil(t, reg.PriceBreakdown)
	assert.Equal(t, 15000, reg.PriceBreakdown.TotalCents)
	require.Len(t, reg.Items, 1)
	assert.Equal(t, 2, reg.Items[0].Quantity)
	assert.Equal(t, 2500, reg.Items[0].UnitPriceCents)
	require.NotNil(t, reg.ConfirmedAt)

	// Seat ledgers moved exactly once.
	assert.Equal(t, 1, s.events[ev.ID].RegisteredCount)
	assert.Equal(t, 2, s.items[workshop.ID].RegisteredCount)
}

func TestCreateRegistrationClosedEvent(t *testing.T) {
	s := newFakeStore()
	draft := s.addEvent(models.Event{Name: "Draft", Status: models.EventStatusDraft})
	past := s.addEvent(models.Event{Name: "Past", StartsAt: testNow.Add(-time.Hour)})
	notYet := s.addEvent(models.Event{Name: "Not Yet", RegistrationOpensAt: timePtr(testNow.Add(time.Hour))})
	e := newTestEngine(s)

	for _, ev := range []uuid.UUID{draft.ID, past.ID, notYet.ID} {
		_, err := e.CreateRegistration(context.Background(), CreateParams{EventID: ev, Email: "a@b.c", FullName: "A"})
		assert.ErrorIs(t, err, ErrRegistrationClosed)
	}

	_, err := e.CreateRegistration(context.Background(), CreateParams{EventID: uuid.New(), Email: "a@b.c", FullName: "A"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRegistrationValidationFailure(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	e := newTestEngine(s)

	_, err := e.CreateRegistration(context.Background(), CreateParams{
		EventID:    ev.ID,
		Email:      "a@b.c",
		FullName:   "A",
		Selections: []models.ItemSelection{{AccessItemID: uuid.New(), Quantity: 1}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, IssueInvalidSelection, verr.Issues[0].Code)
}

func TestCreateRegistrationIdempotentReplay(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 5000})
	workshop := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true,
		PriceCents: 1000, MaxCapacity: intPtr(10)})
	e := newTestEngine(s)

	params := CreateParams{
		EventID:        ev.ID,
		Email:          "ada@example.com",
		FullName:       "Ada Lovelace",
		Selections:     []models.ItemSelection{{AccessItemID: workshop.ID, Quantity: 1}},
		IdempotencyKey: "replay-me",
	}
	first, err := e.CreateRegistration(context.Background(), params)
	require.NoError(t, err)
	second, err := e.CreateRegistration(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalAmountCents, second.TotalAmountCents)
	// No double booking on replay.
	assert.Equal(t, 1, s.events[ev.ID].RegisteredCount)
	assert.Equal(t, 1, s.items[workshop.ID].RegisteredCount)
}

// racingStore hides the stored registration from the first idempotency
// lookup, so the engine hits the store's duplicate-key error and re-reads.
type racingStore struct {
	*fakeStore
	mu      sync.Mutex
	lookups int
}

func (r *racingStore) GetByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Registration, error) {
	r.mu.Lock()
	r.lookups++
	first := r.lookups == 1
	r.mu.Unlock()
	if first {
		return nil, nil
	}
	return r.fakeStore.GetByIdempotencyKey(ctx, eventID, key)
}

func TestCreateRegistrationDuplicateKeyRace(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", BasePriceCents: 5000})
	e := newTestEngine(s)

	first, err := e.CreateRegistration(context.Background(), CreateParams{
		EventID: ev.ID, Email: "a@b.c", FullName: "A", IdempotencyKey: "contended",
	})
	require.NoError(t, err)

	racing := &racingStore{fakeStore: s}
	e2 := New(s, s, s, s, racing, nil)
	e2.now = func() time.Time { return testNow }

	replay, err := e2.CreateRegistration(context.Background(), CreateParams{
		EventID: ev.ID, Email: "a@b.c", FullName: "A", IdempotencyKey: "contended",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, 1, s.events[ev.ID].RegisteredCount)
}

// staleItemsStore reports one more free seat on an item than the ledger
// really holds, standing in for a booking that lands between the validation
// read and the reservation.
type staleItemsStore struct {
	*fakeStore
	staleID uuid.UUID
}

func (s *staleItemsStore) ListItems(ctx context.Context, eventID uuid.UUID) ([]models.AccessItem, error) {
	items, err := s.fakeStore.ListItems(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == s.staleID && items[i].RegisteredCount > 0 {
			items[i].RegisteredCount--
		}
	}
	return items, nil
}

func TestCreateRegistrationCapacityRollback(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf", MaxCapacity: intPtr(50)})
	open := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Open", ItemType: models.ItemTypeWorkshop, Active: true,
		MaxCapacity: intPtr(10)})
	// Actually full; the stale read shows one seat free so validation passes
	// and the atomic reservation is what turns the booking away.
	contested := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Contested", ItemType: models.ItemTypeDinner, Active: true,
		MaxCapacity: intPtr(5), RegisteredCount: 5})
	stale := &staleItemsStore{fakeStore: s, staleID: contested.ID}
	e := New(s, stale, s, s, s, nil)
	e.now = func() time.Time { return testNow }

	params := CreateParams{
		EventID:  ev.ID,
		Email:    "a@b.c",
		FullName: "A",
		Selections: []models.ItemSelection{
			{AccessItemID: open.ID, Quantity: 1},
			{AccessItemID: contested.ID, Quantity: 1},
		},
	}
	_, err := e.CreateRegistration(context.Background(), params)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.Equal(t, contested.ID, capErr.ItemID)
	assert.Equal(t, 0, capErr.Remaining)

	// All or nothing: the passing item and the event seat rolled back.
	assert.Equal(t, 0, s.items[open.ID].RegisteredCount)
	assert.Equal(t, 5, s.items[contested.ID].RegisteredCount)
	assert.Equal(t, 0, s.events[ev.ID].RegisteredCount)
}

func TestCreateRegistrationEventFull(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "Tiny", MaxCapacity: intPtr(1), RegisteredCount: 1})
	e := newTestEngine(s)

	_, err := e.CreateRegistration(context.Background(), CreateParams{EventID: ev.ID, Email: "a@b.c", FullName: "A"})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ev.ID, capErr.ItemID)
	assert.Equal(t, 1, s.events[ev.ID].RegisteredCount)
}

func TestCreateRegistrationConcurrentNeverOversells(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	item := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Workshop", ItemType: models.ItemTypeWorkshop, Active: true,
		MaxCapacity: intPtr(4)})
	e := newTestEngine(s)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = e.CreateRegistration(context.Background(), CreateParams{
				EventID:        ev.ID,
				Email:          fmt.Sprintf("a%d@b.c", n),
				FullName:       "A",
				Selections:     []models.ItemSelection{{AccessItemID: item.ID, Quantity: 1}},
				IdempotencyKey: fmt.Sprintf("key-%d", n),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// The loser is turned away either by the read-only validation
		// pass or by the atomic reservation itself.
		var verr *ValidationError
		if errors.As(err, &verr) {
			require.Len(t, verr.Issues, 1)
			assert.Equal(t, IssueInsufficientCapacity, verr.Issues[0].Code)
		} else {
			assert.ErrorIs(t, err, ErrCapacityExceeded)
		}
	}
	assert.Equal(t, 4, succeeded)
	assert.Equal(t, 4, s.items[item.ID].RegisteredCount)
}
