package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/models"
)

// typeOrder is the canonical presentation order for access groups.
var typeOrder = map[string]int{
	models.ItemTypeSession:       0,
	models.ItemTypeWorkshop:      1,
	models.ItemTypeDinner:        2,
	models.ItemTypeNetworking:    3,
	models.ItemTypeAccommodation: 4,
	models.ItemTypeTransport:     5,
	models.ItemTypeOther:         6,
}

// typeLabels are the default group display labels.
var typeLabels = map[string]string{
	models.ItemTypeSession:       "Sessions",
	models.ItemTypeWorkshop:      "Workshops",
	models.ItemTypeDinner:        "Dinners",
	models.ItemTypeNetworking:    "Networking",
	models.ItemTypeAccommodation: "Accommodation",
	models.ItemTypeTransport:     "Transport",
	models.ItemTypeOther:         "Other",
}

// groupingKey returns the group key and display label for an item. Custom
// labels on "other" items form their own groups.
func groupingKey(it *models.AccessItem) (key, label string) {
	if it.ItemType == models.ItemTypeOther && it.GroupLabel != "" {
		return "other:" + it.GroupLabel, it.GroupLabel
	}
	label = typeLabels[it.ItemType]
	if label == "" {
		label = it.ItemType
	}
	return it.ItemType, label
}

// GroupAccessItems returns the event's selectable access items grouped by
// type and start-time slot. Items that are inactive, outside their
// availability window, failing their conditions against formData, or whose
// prerequisites are not all in selected are filtered out. Slots holding two
// or more items are single-choice; slots holding one are optional.
func (e *Engine) GroupAccessItems(ctx context.Context, eventID uuid.UUID, formData map[string]interface{}, selected []uuid.UUID) ([]models.AccessGroup, error) {
	items, err := e.items.ListItems(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list access items: %w", err)
	}
	now := e.now()

	chosen := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}

	type groupAccum struct {
		key      string
		label    string
		itemType string
		slots    map[int64][]models.AccessItem
		noTime   []models.AccessItem
	}
	groups := make(map[string]*groupAccum)

	for _, it := range items {
		if !it.Active || !it.AvailableAt(now) {
			continue
		}
		if !EvaluateConditions(it.Conditions, it.ConditionLogic, formData) {
			continue
		}
		if !prereqsMet(it.Prerequisites, chosen) {
			continue
		}
		key, label := groupingKey(&it)
		g := groups[key]
		if g == nil {
			g = &groupAccum{key: key, label: label, itemType: it.ItemType, slots: make(map[int64][]models.AccessItem)}
			groups[key] = g
		}
		if it.StartsAt == nil {
			g.noTime = append(g.noTime, it)
		} else {
			k := it.StartsAt.UnixNano()
			g.slots[k] = append(g.slots[k], it)
		}
	}

	out := make([]models.AccessGroup, 0, len(groups))
	for _, g := range groups {
		starts := make([]int64, 0, len(g.slots))
		for k := range g.slots {
			starts = append(starts, k)
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

		slots := make([]models.AccessSlot, 0, len(starts)+1)
		for _, k := range starts {
			slots = append(slots, buildSlot(g.slots[k]))
		}
		if len(g.noTime) > 0 {
			slots = append(slots, buildSlot(g.noTime))
		}
		out = append(out, models.AccessGroup{Key: g.key, Label: g.label, Slots: slots})
	}

	sort.Slice(out, func(i, j int) bool {
		oi, oj := groupSortRank(out[i].Key), groupSortRank(out[j].Key)
		if oi != oj {
			return oi < oj
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// prereqsMet reports whether every prerequisite id is in the selection set.
func prereqsMet(prereqs []uuid.UUID, chosen map[uuid.UUID]bool) bool {
	for _, id := range prereqs {
		if !chosen[id] {
			return false
		}
	}
	return true
}

// groupSortRank maps a group key to its canonical position. Labeled "other"
// groups sort with the other bucket.
func groupSortRank(key string) int {
	if rank, ok := typeOrder[key]; ok {
		return rank
	}
	return typeOrder[models.ItemTypeOther]
}

// buildSlot assembles one slot from items sharing a start time. The slot
// ends at the latest item end; two or more items make it single-choice.
func buildSlot(items []models.AccessItem) models.AccessSlot {
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].Name < items[j].Name
	})
	slot := models.AccessSlot{
		SelectionType: models.SelectionMultiple,
		Items:         items,
	}
	if len(items) >= 2 {
		slot.SelectionType = models.SelectionSingle
	}
	if items[0].StartsAt != nil {
		t := *items[0].StartsAt
		slot.StartsAt = &t
	}
	for _, it := range items {
		if it.EndsAt != nil && (slot.EndsAt == nil || it.EndsAt.After(*slot.EndsAt)) {
			t := *it.EndsAt
			slot.EndsAt = &t
		}
	}
	return slot
}

// Conflict is one overlapping pair of selected items within a group.
type Conflict struct {
	GroupKey string
	A, B     models.AccessItem
}

// DetectConflicts reports every overlapping pair among the given items.
// Items are partitioned by the same type/label key used for grouping, and
// a pair is only checked when both items carry both a start and an end
// time. Intervals that merely touch do not overlap.
func DetectConflicts(items []models.AccessItem) []Conflict {
	byGroup := make(map[string][]models.AccessItem)
	keys := make([]string, 0)
	for _, it := range items {
		key, _ := groupingKey(&it)
		if _, ok := byGroup[key]; !ok {
			keys = append(keys, key)
		}
		byGroup[key] = append(byGroup[key], it)
	}
	sort.Strings(keys)

	var conflicts []Conflict
	for _, key := range keys {
		group := byGroup[key]
		for i := 0; i < len(group); i++ {
			a := group[i]
			if a.StartsAt == nil || a.EndsAt == nil {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				b := group[j]
				if b.StartsAt == nil || b.EndsAt == nil {
					continue
				}
				if a.EndsAt.After(*b.StartsAt) && b.EndsAt.After(*a.StartsAt) {
					conflicts = append(conflicts, Conflict{GroupKey: key, A: a, B: b})
				}
			}
		}
	}
	return conflicts
}
