package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/pkg/database"
)

// ReserveSeats takes qty event seats in one conditional UPDATE. The guard
// runs inside the statement, so concurrent callers cannot oversell. Returns
// *engine.CapacityError with the remaining count when the event is full.
func ReserveSeats(ctx context.Context, q database.Querier, eventID uuid.UUID, qty int) error {
	tag, err := q.Exec(ctx, `UPDATE events
		SET registered_count = registered_count + $2, updated_at = NOW()
		WHERE id = $1 AND (max_capacity IS NULL OR max_capacity - registered_count >= $2)`,
		eventID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var name string
	var remaining *int
	err = q.QueryRow(ctx, `SELECT name, GREATEST(max_capacity - registered_count, 0)
		FROM events WHERE id = $1`, eventID).Scan(&name, &remaining)
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
	return &engine.CapacityError{ItemID: eventID, Name: name, Requested: qty, Remaining: rem}
}

// ReleaseSeats returns qty event seats, flooring the counter at zero.
func ReleaseSeats(ctx context.Context, q database.Querier, eventID uuid.UUID, qty int) error {
	_, err := q.Exec(ctx, `UPDATE events
		SET registered_count = GREATEST(registered_count - $2, 0), updated_at = NOW()
		WHERE id = $1`, eventID, qty)
	return err
}
