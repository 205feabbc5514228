package accessitems

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/pkg/database"
)

// Reserve takes qty units of an access item in one conditional UPDATE, so
// the capacity check and the increment are a single atomic statement. When
// the guard fails it returns *engine.CapacityError carrying the item name
// and seats still left.
func Reserve(ctx context.Context, q database.Querier, itemID uuid.UUID, qty int) error {
	tag, err := q.Exec(ctx, `UPDATE access_items
		SET registered_count = registered_count + $2, updated_at = NOW()
		WHERE id = $1 AND (max_capacity IS NULL OR max_capacity - registered_count >= $2)`,
		itemID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var name string
	var remaining *int
	err = q.QueryRow(ctx, `SELECT name, GREATEST(max_capacity - registered_count, 0)
		FROM access_items WHERE id = $1`, itemID).Scan(&name, &remaining)
	if err == pgx.ErrNoRows {
		return engine.ErrNotFound
	}
	if err != nil {
		return err
	}
	rem := 0
	if remaining != nil {
		rem = *remaining
	}
	return &engine.CapacityError{ItemID: itemID, Name: name, Requested: qty, Remaining: rem}
}

// Release returns qty units to an access item, flooring the counter at zero.
func Release(ctx context.Context, q database.Querier, itemID uuid.UUID, qty int) error {
	_, err := q.Exec(ctx, `UPDATE access_items
		SET registered_count = GREATEST(registered_count - $2, 0), updated_at = NOW()
		WHERE id = $1`, itemID, qty)
	return err
}
