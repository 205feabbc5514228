package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/models"
)

// testNow is the fixed clock used by engine tests.
var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// fakeStore backs every engine store interface with in-memory data. All
// capacity movement happens under one mutex, mirroring the atomicity of the
// database's conditional updates, so concurrency tests exercise the same
// contract the SQL ledger gives.
type fakeStore struct {
	mu            sync.Mutex
	events        map[uuid.UUID]*models.Event
	items         map[uuid.UUID]*models.AccessItem
	itemOrder     []uuid.UUID
	rules         []models.PricingRule
	ruleSeq       int
	codes         map[uuid.UUID]map[string]*models.SponsorshipCode
	registrations map[uuid.UUID]*models.Registration
	byKey         map[string]uuid.UUID
	amendments    map[uuid.UUID][]models.Amendment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:        make(map[uuid.UUID]*models.Event),
		items:         make(map[uuid.UUID]*models.AccessItem),
		codes:         make(map[uuid.UUID]map[string]*models.SponsorshipCode),
		registrations: make(map[uuid.UUID]*models.Registration),
		byKey:         make(map[string]uuid.UUID),
		amendments:    make(map[uuid.UUID][]models.Amendment),
	}
}

// newTestEngine wires an Engine onto the fake with a fixed clock.
func newTestEngine(s *fakeStore) *Engine {
	e := New(s, s, s, s, s, nil)
	e.now = func() time.Time { return testNow }
	return e
}

func (s *fakeStore) addEvent(ev models.Event) *models.Event {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Status == "" {
		ev.Status = models.EventStatusPublished
	}
	if ev.Currency == "" {
		ev.Currency = "EUR"
	}
	if ev.StartsAt.IsZero() {
		ev.StartsAt = testNow.Add(30 * 24 * time.Hour)
	}
	stored := ev
	s.events[ev.ID] = &stored
	return &stored
}

func (s *fakeStore) addItem(it models.AccessItem) *models.AccessItem {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	stored := it
	s.items[it.ID] = &stored
	s.itemOrder = append(s.itemOrder, it.ID)
	return &stored
}

func (s *fakeStore) addRule(r models.PricingRule) *models.PricingRule {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		s.ruleSeq++
		r.CreatedAt = testNow.Add(time.Duration(-100+s.ruleSeq) * time.Minute)
	}
	s.rules = append(s.rules, r)
	return &s.rules[len(s.rules)-1]
}

func (s *fakeStore) addCode(c models.SponsorshipCode) *models.SponsorshipCode {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if s.codes[c.EventID] == nil {
		s.codes[c.EventID] = make(map[string]*models.SponsorshipCode)
	}
	stored := c
	s.codes[c.EventID][c.Code] = &stored
	return &stored
}

func (s *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	out := *ev
	return &out, nil
}

func (s *fakeStore) ListItems(_ context.Context, eventID uuid.UUID) ([]models.AccessItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessItem
	for _, id := range s.itemOrder {
		it := s.items[id]
		if it.EventID == eventID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *fakeStore) ListRules(_ context.Context, eventID uuid.UUID) ([]models.PricingRule, error) {
	var out []models.PricingRule
	for _, r := range s.rules {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetCode(_ context.Context, eventID uuid.UUID, code string) (*models.SponsorshipCode, error) {
	c, ok := s.codes[eventID][code]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (s *fakeStore) GetRegistration(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

func (s *fakeStore) GetByIdempotencyKey(_ context.Context, eventID uuid.UUID, key string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[eventID.String()+"/"+key]
	if !ok {
		return nil, nil
	}
	out := *s.registrations[id]
	return &out, nil
}

// reserveLocked applies one atomic conditional increment. Callers hold mu.
func (s *fakeStore) reserveLocked(itemID uuid.UUID, qty int) error {
	it := s.items[itemID]
	if it.MaxCapacity != nil && *it.MaxCapacity-it.RegisteredCount < qty {
		remaining := *it.MaxCapacity - it.RegisteredCount
		if remaining < 0 {
			remaining = 0
		}
		return &CapacityError{ItemID: itemID, Name: it.Name, Requested: qty, Remaining: remaining}
	}
	it.RegisteredCount += qty
	return nil
}

// releaseLocked decrements, floored at zero. Callers hold mu.
func (s *fakeStore) releaseLocked(itemID uuid.UUID, qty int) {
	it := s.items[itemID]
	it.RegisteredCount -= qty
	if it.RegisteredCount < 0 {
		it.RegisteredCount = 0
	}
}

func (s *fakeStore) CreateRegistration(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg.IdempotencyKey != "" {
		if _, exists := s.byKey[reg.EventID.String()+"/"+reg.IdempotencyKey]; exists {
			return ErrDuplicateKey
		}
	}

	ev := s.events[reg.EventID]
	if ev.MaxCapacity != nil && *ev.MaxCapacity-ev.RegisteredCount < 1 {
		remaining := *ev.MaxCapacity - ev.RegisteredCount
		if remaining < 0 {
			remaining = 0
		}
		return &CapacityError{ItemID: ev.ID, Name: ev.Name, Requested: 1, Remaining: remaining}
	}
	ev.RegisteredCount++

	var reserved []models.RegistrationItem
	for _, it := range reg.Items {
		if err := s.reserveLocked(it.AccessItemID, it.Quantity); err != nil {
			for _, done := range reserved {
				s.releaseLocked(done.AccessItemID, done.Quantity)
			}
			ev.RegisteredCount--
			return err
		}
		reserved = append(reserved, it)
	}

	reg.ID = uuid.New()
	reg.CreatedAt = testNow
	reg.UpdatedAt = testNow
	for i := range reg.Items {
		reg.Items[i].RegistrationID = reg.ID
	}
	stored := *reg
	s.registrations[reg.ID] = &stored
	if reg.IdempotencyKey != "" {
		s.byKey[reg.EventID.String()+"/"+reg.IdempotencyKey] = reg.ID
	}
	return nil
}

func (s *fakeStore) ApplyAmendment(_ context.Context, reg *models.Registration, am *models.Amendment, added, removed []models.RegistrationItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reserved []models.RegistrationItem
	for _, it := range added {
		if err := s.reserveLocked(it.AccessItemID, it.Quantity); err != nil {
			for _, done := range reserved {
				s.releaseLocked(done.AccessItemID, done.Quantity)
			}
			return err
		}
		reserved = append(reserved, it)
	}
	for _, it := range removed {
		s.releaseLocked(it.AccessItemID, it.Quantity)
	}

	reg.UpdatedAt = testNow
	stored := *reg
	s.registrations[reg.ID] = &stored

	am.ID = uuid.New()
	am.Seq = len(s.amendments[reg.ID]) + 1
	am.CreatedAt = testNow
	s.amendments[reg.ID] = append(s.amendments[reg.ID], *am)
	return nil
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
