package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/models"
)

// ValidateSelections checks a submitted selection set for an event and
// returns every issue found: unknown or inactive items, availability
// windows, unmet conditions, missing prerequisites, time conflicts,
// capacity and quantity problems. It never stops at the first failure and
// never reserves anything; capacity is only read. An empty issue list
// means the selection is valid.
func (e *Engine) ValidateSelections(ctx context.Context, eventID uuid.UUID, selections []models.ItemSelection, formData map[string]interface{}) ([]ValidationIssue, error) {
	return e.validateSelections(ctx, eventID, selections, formData, nil)
}

// validateSelections is ValidateSelections with already-held quantities for
// amendments: held seats do not need to come out of the remaining pool
// again, so the capacity check only covers the quantity above held.
func (e *Engine) validateSelections(ctx context.Context, eventID uuid.UUID, selections []models.ItemSelection, formData map[string]interface{}, held map[uuid.UUID]int) ([]ValidationIssue, error) {
	items, err := e.items.ListItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list access items: %w", err)
	}
	now := e.now()

	byID := make(map[uuid.UUID]*models.AccessItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	chosen := make(map[uuid.UUID]bool, len(selections))
	for _, sel := range selections {
		chosen[sel.AccessItemID] = true
	}

	var issues []ValidationIssue
	addIssue := func(code string, itemID uuid.UUID, format string, args ...interface{}) {
		id := itemID
		issues = append(issues, ValidationIssue{
			Code:         code,
			AccessItemID: &id,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	seen := make(map[uuid.UUID]bool, len(selections))
	var valid []models.AccessItem
	for _, sel := range selections {
		if sel.Quantity < 1 {
			addIssue(IssueInvalidSelection, sel.AccessItemID, "quantity must be at least 1")
			continue
		}
		if seen[sel.AccessItemID] {
			addIssue(IssueInvalidSelection, sel.AccessItemID, "item selected more than once")
			continue
		}
		seen[sel.AccessItemID] = true

		it := byID[sel.AccessItemID]
		if it == nil {
			addIssue(IssueInvalidSelection, sel.AccessItemID, "unknown access item")
			continue
		}
		if !it.Active {
			addIssue(IssueItemUnavailable, it.ID, "%s is no longer offered", it.Name)
			continue
		}
		if !it.AvailableAt(now) {
			addIssue(IssueItemUnavailable, it.ID, "%s is not on sale right now", it.Name)
		}
		if !EvaluateConditions(it.Conditions, it.ConditionLogic, formData) {
			addIssue(IssueConditionsNotMet, it.ID, "%s is not available for the submitted details", it.Name)
		}
		for _, req := range it.Prerequisites {
			if !chosen[req] {
				name := req.String()
				if reqItem := byID[req]; reqItem != nil {
					name = reqItem.Name
				}
				addIssue(IssueMissingPrerequisite, it.ID, "%s requires %s", it.Name, name)
			}
		}
		if it.MaxCapacity != nil {
			needed := sel.Quantity - held[it.ID]
			remaining := *it.MaxCapacity - it.RegisteredCount
			if remaining < 0 {
				remaining = 0
			}
			if needed > 0 && remaining < needed {
				addIssue(IssueInsufficientCapacity, it.ID, "%s has %d spot(s) left", it.Name, remaining)
			}
		}
		valid = append(valid, *it)
	}

	for _, c := range DetectConflicts(valid) {
		aID, bID := c.A.ID, c.B.ID
		issues = append(issues, ValidationIssue{
			Code:          IssueTimeConflict,
			AccessItemID:  &aID,
			ConflictsWith: &bID,
			Message:       fmt.Sprintf("%s overlaps %s", c.A.Name, c.B.Name),
		})
	}
	return issues, nil
}
