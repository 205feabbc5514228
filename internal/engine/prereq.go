package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// HasPrerequisiteCycle reports whether replacing itemID's prerequisite list
// with proposed would create a cycle in the event's requirement graph. The
// graph is rebuilt from the persisted edge lists on every call; nothing is
// cached between calls. Catches direct self-references and transitive
// cycles of any length.
func (e *Engine) HasPrerequisiteCycle(ctx context.Context, eventID, itemID uuid.UUID, proposed []uuid.UUID) (bool, error) {
	items, err := e.items.ListItems(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("list access items: %w", err)
	}

	adj := make(map[uuid.UUID][]uuid.UUID, len(items)+1)
	for _, it := range items {
		if it.ID == itemID {
			continue
		}
		adj[it.ID] = it.Prerequisites
	}
	adj[itemID] = proposed

	visited := make(map[uuid.UUID]bool, len(adj))
	onStack := make(map[uuid.UUID]bool, len(adj))
	var visit func(id uuid.UUID) bool
	visit = func(id uuid.UUID) bool {
		visited[id] = true
		onStack[id] = true
		for _, dep := range adj[id] {
			if onStack[dep] {
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}
		onStack[id] = false
		return false
	}
	for id := range adj {
		if !visited[id] && visit(id) {
			return true, nil
		}
	}
	return false, nil
}
