// Package engine implements the price and access allocation core: condition
// evaluation against registration form data, prerequisite cycle checks,
// access-item grouping with time-conflict detection, pricing rule
// resolution, price breakdown composition and amendment reconciliation.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/models"
)

// EventStore loads events. Lookups return (nil, nil) when absent.
type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// ItemStore loads an event's access items with prerequisite edges attached.
type ItemStore interface {
	ListItems(ctx context.Context, eventID uuid.UUID) ([]models.AccessItem, error)
}

// RuleStore loads an event's pricing rules.
type RuleStore interface {
	ListRules(ctx context.Context, eventID uuid.UUID) ([]models.PricingRule, error)
}

// SponsorshipStore looks up sponsorship codes. Returns (nil, nil) when the
// code does not exist for the event.
type SponsorshipStore interface {
	GetCode(ctx context.Context, eventID uuid.UUID, code string) (*models.SponsorshipCode, error)
}

// RegistrationStore persists registrations and amendments. CreateRegistration
// and ApplyAmendment run all capacity movements and row writes of one call in
// a single transaction: on any failure nothing is kept. CreateRegistration
// returns ErrDuplicateKey when the event+idempotency key pair already exists.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Registration, error)
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	ApplyAmendment(ctx context.Context, reg *models.Registration, am *models.Amendment, added, removed []models.RegistrationItem) error
}

// Engine is the allocation core. It holds no in-process locks and is safe
// for concurrent use from many request handlers; the only serialization
// point is the store's conditional capacity updates.
type Engine struct {
	events        EventStore
	items         ItemStore
	rules         RuleStore
	sponsorships  SponsorshipStore
	registrations RegistrationStore
	logger        *zap.Logger
	now           func() time.Time
}

// New creates an Engine. A nil logger is replaced with a no-op logger.
func New(events EventStore, items ItemStore, rules RuleStore, sponsorships SponsorshipStore, registrations RegistrationStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		events:        events,
		items:         items,
		rules:         rules,
		sponsorships:  sponsorships,
		registrations: registrations,
		logger:        logger,
		now:           time.Now,
	}
}
