package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventRegistrationOpen(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	starts := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"published before start", Event{Status: EventStatusPublished, StartsAt: starts}, true},
		{"draft never open", Event{Status: EventStatusDraft, StartsAt: starts}, false},
		{"cancelled never open", Event{Status: EventStatusCancelled, StartsAt: starts}, false},
		{"completed never open", Event{Status: EventStatusCompleted, StartsAt: starts}, false},
		{"closes at event start by default", Event{Status: EventStatusPublished, StartsAt: past}, false},
		{"explicit close in the past", Event{Status: EventStatusPublished, StartsAt: starts, RegistrationClosesAt: &past}, false},
		{"explicit close in the future", Event{Status: EventStatusPublished, StartsAt: past, RegistrationClosesAt: &future}, true},
		{"opens in the future", Event{Status: EventStatusPublished, StartsAt: starts, RegistrationOpensAt: &future}, false},
		{"opens in the past", Event{Status: EventStatusPublished, StartsAt: starts, RegistrationOpensAt: &past}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.RegistrationOpen(now))
		})
	}
}

func TestEventRemaining(t *testing.T) {
	capacity := 100

	unlimited := Event{RegisteredCount: 10}
	assert.Nil(t, unlimited.Remaining())

	open := Event{MaxCapacity: &capacity, RegisteredCount: 40}
	if assert.NotNil(t, open.Remaining()) {
		assert.Equal(t, 60, *open.Remaining())
	}

	full := Event{MaxCapacity: &capacity, RegisteredCount: 100}
	if assert.NotNil(t, full.Remaining()) {
		assert.Equal(t, 0, *full.Remaining())
	}

	// Overbooked events report zero, never negative.
	over := Event{MaxCapacity: &capacity, RegisteredCount: 104}
	if assert.NotNil(t, over.Remaining()) {
		assert.Equal(t, 0, *over.Remaining())
	}
}
