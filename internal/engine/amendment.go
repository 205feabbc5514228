package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/models"
)

// EditRequest amends an existing registration. FormData entries shallowly
// override the stored form data; Selections, when non-nil, fully replaces
// the selected item set (nil leaves it unchanged).
type EditRequest struct {
	FormData   map[string]interface{}
	Selections []models.ItemSelection
}

// AmendmentResult is the reconciled outcome of one edit.
type AmendmentResult struct {
	Registration             *models.Registration
	Breakdown                *models.PriceBreakdown
	Amendment                *models.Amendment
	AdditionalAmountDueCents int
}

// ReconcileAmendment applies an edit to a registration. Refunded
// registrations and closed events reject the edit outright. On a paid
// registration removals are refused before anything moves; additions leave
// the paid total untouched and record the extra balance as additional
// amount due. On an unpaid registration removals release their seats and
// the total is simply recomputed. Every edit appends one immutable
// amendment record; reservations, releases and row writes commit or roll
// back as one transaction.
func (e *Engine) ReconcileAmendment(ctx context.Context, registrationID uuid.UUID, edit EditRequest) (*AmendmentResult, error) {
	reg, err := e.registrations.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg == nil {
		return nil, ErrNotFound
	}
	if reg.PaymentStatus == models.PaymentStatusRefunded {
		return nil, ErrRegistrationRefunded
	}
	event, err := e.events.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if !event.RegistrationOpen(e.now()) {
		return nil, ErrRegistrationClosed
	}

	merged, formChanges := mergeFormData(reg.FormData, edit.FormData)

	newSelections := edit.Selections
	if newSelections == nil {
		newSelections = make([]models.ItemSelection, 0, len(reg.Items))
		for _, it := range reg.Items {
			newSelections = append(newSelections, models.ItemSelection{AccessItemID: it.AccessItemID, Quantity: it.Quantity})
		}
	}

	held := make(map[uuid.UUID]int, len(reg.Items))
	current := make(map[uuid.UUID]models.RegistrationItem, len(reg.Items))
	for _, it := range reg.Items {
		held[it.AccessItemID] = it.Quantity
		current[it.AccessItemID] = it
	}

	added, removed := diffSelections(current, newSelections)
	if reg.Paid() && len(removed) > 0 {
		return nil, ErrAccessRemovalBlocked
	}

	issues, err := e.validateSelections(ctx, reg.EventID, newSelections, merged, held)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	// Existing sponsorship codes carry over unchanged.
	bd, err := e.CalculatePrice(ctx, reg.EventID, merged, newSelections, reg.SponsorshipCodes)
	if err != nil {
		return nil, err
	}

	lines := make(map[uuid.UUID]models.AccessLineItem, len(bd.AccessItems))
	for _, line := range bd.AccessItems {
		lines[line.AccessItemID] = line
	}
	for i := range added {
		if added[i].Name == "" {
			if line, ok := lines[added[i].AccessItemID]; ok {
				added[i].Name = line.Name
				added[i].UnitPriceCents = line.UnitPriceCents
			}
		}
	}

	updated := *reg
	updated.FormData = merged
	updated.PriceBreakdown = bd
	updated.Items = nil
	for _, line := range bd.AccessItems {
		updated.Items = append(updated.Items, models.RegistrationItem{
			RegistrationID: reg.ID,
			AccessItemID:   line.AccessItemID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	if reg.Paid() {
		due := bd.TotalCents - reg.TotalAmountCents
		if due < 0 {
			due = 0
		}
		updated.AdditionalAmountDueCents = due
	} else {
		updated.TotalAmountCents = bd.TotalCents
		updated.AdditionalAmountDueCents = 0
	}

	am := &models.Amendment{
		RegistrationID:             reg.ID,
		FormChanges:                formChanges,
		AddedItems:                 itemChanges(added),
		RemovedItems:               itemChanges(removed),
		PreviousTotalCents:         reg.TotalAmountCents,
		NewTotalCents:              updated.TotalAmountCents,
		PreviousAdditionalDueCents: reg.AdditionalAmountDueCents,
		NewAdditionalDueCents:      updated.AdditionalAmountDueCents,
		PriceBreakdown:             bd,
	}

	if err := e.registrations.ApplyAmendment(ctx, &updated, am, added, removed); err != nil {
		return nil, err
	}

	e.logger.Info("registration amended",
		zap.String("registration_id", reg.ID.String()),
		zap.Int("seq", am.Seq),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Int("additional_due_cents", updated.AdditionalAmountDueCents),
	)
	return &AmendmentResult{
		Registration:             &updated,
		Breakdown:                bd,
		Amendment:                am,
		AdditionalAmountDueCents: updated.AdditionalAmountDueCents,
	}, nil
}

// mergeFormData shallowly overrides stored form data with the edit's fields
// and records each real change, sorted by field name so amendment records
// are deterministic.
func mergeFormData(stored, edits map[string]interface{}) (map[string]interface{}, []models.FieldChange) {
	merged := make(map[string]interface{}, len(stored)+len(edits))
	for k, v := range stored {
		merged[k] = v
	}
	var changes []models.FieldChange
	for k, v := range edits {
		if !reflect.DeepEqual(stored[k], v) {
			changes = append(changes, models.FieldChange{Field: k, From: stored[k], To: v})
		}
		merged[k] = v
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return merged, changes
}

// diffSelections splits an edit into per-item quantity deltas against the
// current selection. A quantity increase on a kept item counts as an
// addition of the difference; a decrease counts as a removal of it.
func diffSelections(current map[uuid.UUID]models.RegistrationItem, proposed []models.ItemSelection) (added, removed []models.RegistrationItem) {
	proposedQty := make(map[uuid.UUID]int, len(proposed))
	for _, sel := range proposed {
		proposedQty[sel.AccessItemID] = sel.Quantity
		cur, ok := current[sel.AccessItemID]
		if !ok {
			added = append(added, models.RegistrationItem{AccessItemID: sel.AccessItemID, Quantity: sel.Quantity})
			continue
		}
		if sel.Quantity > cur.Quantity {
			added = append(added, models.RegistrationItem{
				AccessItemID:   cur.AccessItemID,
				Name:           cur.Name,
				Quantity:       sel.Quantity - cur.Quantity,
				UnitPriceCents: cur.UnitPriceCents,
			})
		} else if sel.Quantity < cur.Quantity {
			removed = append(removed, models.RegistrationItem{
				AccessItemID:   cur.AccessItemID,
				Name:           cur.Name,
				Quantity:       cur.Quantity - sel.Quantity,
				UnitPriceCents: cur.UnitPriceCents,
			})
		}
	}
	ids := make([]uuid.UUID, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, ok := proposedQty[id]; !ok {
			removed = append(removed, current[id])
		}
	}
	return added, removed
}

// itemChanges converts ledger deltas into amendment change records.
func itemChanges(items []models.RegistrationItem) []models.ItemChange {
	out := make([]models.ItemChange, 0, len(items))
	for _, it := range items {
		out = append(out, models.ItemChange{
			AccessItemID:   it.AccessItemID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return out
}
