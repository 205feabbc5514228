package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventlane/backend/internal/models"
)

// chainFixture builds an event with items A→B→C (A requires B, B requires C).
func chainFixture(t *testing.T) (*fakeStore, *Engine, *models.Event, [3]*models.AccessItem) {
	t.Helper()
	s := newFakeStore()
	ev := s.addEvent(models.Event{Name: "DevConf"})
	c := s.addItem(models.AccessItem{EventID: ev.ID, Name: "C", ItemType: models.ItemTypeWorkshop, Active: true})
	b := s.addItem(models.AccessItem{EventID: ev.ID, Name: "B", ItemType: models.ItemTypeWorkshop, Active: true, Prerequisites: []uuid.UUID{c.ID}})
	a := s.addItem(models.AccessItem{EventID: ev.ID, Name: "A", ItemType: models.ItemTypeWorkshop, Active: true, Prerequisites: []uuid.UUID{b.ID}})
	return s, newTestEngine(s), ev, [3]*models.AccessItem{a, b, c}
}

func TestHasPrerequisiteCycleTransitive(t *testing.T) {
	_, e, ev, items := chainFixture(t)
	a, c := items[0], items[2]

	// Closing the chain C→A creates A→B→C→A.
	hasCycle, err := e.HasPrerequisiteCycle(context.Background(), ev.ID, c.ID, []uuid.UUID{a.ID})
	require.NoError(t, err)
	require.True(t, hasCycle)
}

func TestHasPrerequisiteCycleUnrelated(t *testing.T) {
	s, e, ev, items := chainFixture(t)
	c := items[2]
	d := s.addItem(models.AccessItem{EventID: ev.ID, Name: "D", ItemType: models.ItemTypeWorkshop, Active: true})

	hasCycle, err := e.HasPrerequisiteCycle(context.Background(), ev.ID, c.ID, []uuid.UUID{d.ID})
	require.NoError(t, err)
	require.False(t, hasCycle)
}

func TestHasPrerequisiteCycleSelfReference(t *testing.T) {
	_, e, ev, items := chainFixture(t)
	a := items[0]

	hasCycle, err := e.HasPrerequisiteCycle(context.Background(), ev.ID, a.ID, []uuid.UUID{a.ID})
	require.NoError(t, err)
	require.True(t, hasCycle)
}

func TestHasPrerequisiteCycleProposedEdgesReplaceCurrent(t *testing.T) {
	_, e, ev, items := chainFixture(t)
	a, b := items[0], items[1]

	// B currently requires C. Proposing B→A would cycle with A→B, but
	// proposing an empty list clears B's edges and cannot.
	hasCycle, err := e.HasPrerequisiteCycle(context.Background(), ev.ID, b.ID, []uuid.UUID{a.ID})
	require.NoError(t, err)
	require.True(t, hasCycle)

	hasCycle, err = e.HasPrerequisiteCycle(context.Background(), ev.ID, b.ID, nil)
	require.NoError(t, err)
	require.False(t, hasCycle)
}
