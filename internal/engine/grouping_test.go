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

func day(hour, min int) time.Time {
	return time.Date(2026, 6, 10, hour, min, 0, 0, time.UTC)
}

func TestGroupAccessItemsSlotsAndSelectionTypes(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	// Two workshops at 10:00 compete; one at 14:00 stands alone.
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Go Basics", ItemType: models.ItemTypeWorkshop, Active: true,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(12, 0)), SortOrder: 2})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Advanced SQL", ItemType: models.ItemTypeWorkshop, Active: true,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(11, 0)), SortOrder: 1})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Profiling Clinic", ItemType: models.ItemTypeWorkshop, Active: true,
		StartsAt: timePtr(day(14, 0)), EndsAt: timePtr(day(16, 0))})
	e := newTestEngine(s)

	groups, err := e.GroupAccessItems(context.Background(), ev.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, models.ItemTypeWorkshop, g.Key)
	require.Len(t, g.Slots, 2)

	morning := g.Slots[0]
	assert.Equal(t, models.SelectionSingle, morning.SelectionType)
	require.Len(t, morning.Items, 2)
	// Sort order inside the slot.
	assert.Equal(t, "Advanced SQL", morning.Items[0].Name)
	assert.Equal(t, "Go Basics", morning.Items[1].Name)
	// Slot runs to the latest item end.
	require.NotNil(t, morning.EndsAt)
	assert.Equal(t, day(12, 0), *morning.EndsAt)

	afternoon := g.Slots[1]
	assert.Equal(t, models.SelectionMultiple, afternoon.SelectionType)
	assert.Len(t, afternoon.Items, 1)
}

func TestGroupAccessItemsNoTimeSlotLast(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Conference Tee", ItemType: models.ItemTypeOther, Active: true})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "City Tour", ItemType: models.ItemTypeOther, Active: true,
		StartsAt: timePtr(day(17, 0)), EndsAt: timePtr(day(19, 0))})
	e := newTestEngine(s)

	groups, err := e.GroupAccessItems(context.Background(), ev.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Slots, 2)
	assert.NotNil(t, groups[0].Slots[0].StartsAt)
	assert.Nil(t, groups[0].Slots[1].StartsAt)
	assert.Equal(t, "Conference Tee", groups[0].Slots[1].Items[0].Name)
}

func TestGroupAccessItemsGroupLabelsAndOrder(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Merch Pack", ItemType: models.ItemTypeOther, GroupLabel: "Merchandise", Active: true})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Childcare Friday", ItemType: models.ItemTypeOther, GroupLabel: "Childcare", Active: true})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Gala Dinner", ItemType: models.ItemTypeDinner, Active: true,
		StartsAt: timePtr(day(19, 0)), EndsAt: timePtr(day(22, 0))})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Opening Keynote", ItemType: models.ItemTypeSession, Active: true,
		StartsAt: timePtr(day(9, 0)), EndsAt: timePtr(day(10, 0))})
	e := newTestEngine(s)

	groups, err := e.GroupAccessItems(context.Background(), ev.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, groups, 4)
	// Canonical type order first, labeled "other" groups alphabetical last.
	assert.Equal(t, models.ItemTypeSession, groups[0].Key)
	assert.Equal(t, models.ItemTypeDinner, groups[1].Key)
	assert.Equal(t, "other:Childcare", groups[2].Key)
	assert.Equal(t, "Childcare", groups[2].Label)
	assert.Equal(t, "other:Merchandise", groups[3].Key)
}

func TestGroupAccessItemsFiltering(t *testing.T) {
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	visible := s.addItem(models.AccessItem{EventID: ev.ID, Name: "Visible", ItemType: models.ItemTypeWorkshop, Active: true})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Inactive", ItemType: models.ItemTypeWorkshop})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Sale Over", ItemType: models.ItemTypeWorkshop, Active: true,
		AvailableTo: timePtr(testNow.Add(-time.Hour))})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Students Only", ItemType: models.ItemTypeWorkshop, Active: true,
		Conditions: []models.Condition{{Field: "role", Operator: models.OpEquals, Value: "student"}}, ConditionLogic: models.ConditionLogicAnd})
	s.addItem(models.AccessItem{EventID: ev.ID, Name: "Needs Visible", ItemType: models.ItemTypeWorkshop, Active: true,
		Prerequisites: []uuid.UUID{visible.ID}})
	e := newTestEngine(s)

	form := map[string]interface{}{"role": "professional"}

	groups, err := e.GroupAccessItems(context.Background(), ev.ID, form, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	names := itemNames(groups[0])
	assert.Equal(t, []string{"Visible"}, names)

	// Selecting the prerequisite unlocks the dependent item.
	groups, err = e.GroupAccessItems(context.Background(), ev.ID, form, []uuid.UUID{visible.ID})
	require.NoError(t, err)
	names = itemNames(groups[0])
	assert.ElementsMatch(t, []string{"Visible", "Needs Visible"}, names)
}

func itemNames(g models.AccessGroup) []string {
	var names []string
	for _, slot := range g.Slots {
		for _, it := range slot.Items {
			names = append(names, it.Name)
		}
	}
	return names
}

func TestDetectConflictsOverlap(t *testing.T) {
	a := models.AccessItem{ID: uuid.New(), Name: "A", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(11, 0))}
	b := models.AccessItem{ID: uuid.New(), Name: "B", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(10, 30)), EndsAt: timePtr(day(11, 30))}

	conflicts := DetectConflicts([]models.AccessItem{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "A", conflicts[0].A.Name)
	assert.Equal(t, "B", conflicts[0].B.Name)
}

func TestDetectConflictsTouchingIsNotOverlap(t *testing.T) {
	a := models.AccessItem{ID: uuid.New(), Name: "A", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(11, 0))}
	b := models.AccessItem{ID: uuid.New(), Name: "B", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(11, 0)), EndsAt: timePtr(day(12, 0))}

	assert.Empty(t, DetectConflicts([]models.AccessItem{a, b}))
}

func TestDetectConflictsScope(t *testing.T) {
	// Different groups never conflict, nor do items missing an end time.
	workshop := models.AccessItem{ID: uuid.New(), Name: "W", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(12, 0))}
	dinner := models.AccessItem{ID: uuid.New(), Name: "D", ItemType: models.ItemTypeDinner,
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(12, 0))}
	openEnd := models.AccessItem{ID: uuid.New(), Name: "O", ItemType: models.ItemTypeWorkshop,
		StartsAt: timePtr(day(10, 0))}

	assert.Empty(t, DetectConflicts([]models.AccessItem{workshop, dinner, openEnd}))

	// Labeled "other" groups are compared within the same label only.
	tourA := models.AccessItem{ID: uuid.New(), Name: "Tour A", ItemType: models.ItemTypeOther, GroupLabel: "Tours",
		StartsAt: timePtr(day(10, 0)), EndsAt: timePtr(day(12, 0))}
	tourB := models.AccessItem{ID: uuid.New(), Name: "Tour B", ItemType: models.ItemTypeOther, GroupLabel: "Tours",
		StartsAt: timePtr(day(11, 0)), EndsAt: timePtr(day(13, 0))}
	shuttle := models.AccessItem{ID: uuid.New(), Name: "Shuttle", ItemType: models.ItemTypeOther, GroupLabel: "Shuttles",
		StartsAt: timePtr(day(11, 0)), EndsAt: timePtr(day(13, 0))}

	conflicts := DetectConflicts([]models.AccessItem{tourA, tourB, shuttle})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "other:Tours", conflicts[0].GroupKey)
}
