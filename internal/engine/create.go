package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/models"
)

// CreateParams is a registration submission.
type CreateParams struct {
	EventID          uuid.UUID
	Email            string
	FullName         string
	FormData         map[string]interface{}
	Selections       []models.ItemSelection
	SponsorshipCodes []string
	IdempotencyKey   string
}

// CreateRegistration validates, prices and books a registration. Replaying
// the same idempotency key returns the originally created registration
// unchanged. The event seat and every selected item are reserved inside one
// store transaction together with the row writes: a single full item aborts
// the whole call and leaves every counter where it was.
func (e *Engine) CreateRegistration(ctx context.Context, p CreateParams) (*models.Registration, error) {
	event, err := e.events.GetEvent(ctx, p.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if !event.RegistrationOpen(e.now()) {
		return nil, ErrRegistrationClosed
	}

	if p.IdempotencyKey != "" {
		existing, err := e.registrations.GetByIdempotencyKey(ctx, p.EventID, p.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	issues, err := e.ValidateSelections(ctx, p.EventID, p.Selections, p.FormData)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	bd, err := e.CalculatePrice(ctx, p.EventID, p.FormData, p.Selections, p.SponsorshipCodes)
	if err != nil {
		return nil, err
	}

	now := e.now()
	reg := &models.Registration{
		EventID:          p.EventID,
		Email:            p.Email,
		FullName:         p.FullName,
		FormData:         p.FormData,
		PaymentStatus:    models.PaymentStatusPending,
		TotalAmountCents: bd.TotalCents,
		SponsorshipCodes: p.SponsorshipCodes,
		PriceBreakdown:   bd,
		IdempotencyKey:   p.IdempotencyKey,
		ConfirmedAt:      &now,
	}
	for _, line := range bd.AccessItems {
		reg.Items = append(reg.Items, models.RegistrationItem{
			AccessItemID:   line.AccessItemID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	if err := e.registrations.CreateRegistration(ctx, reg); err != nil {
		// Two identical submissions can race past the lookup above; the
		// unique key makes the loser read the winner's row.
		if errors.Is(err, ErrDuplicateKey) && p.IdempotencyKey != "" {
			existing, lookupErr := e.registrations.GetByIdempotencyKey(ctx, p.EventID, p.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	e.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", p.EventID.String()),
		zap.Int("total_cents", reg.TotalAmountCents),
		zap.Int("items", len(reg.Items)),
	)
	return reg, nil
}
