package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/models"
)

const eventColumns = `id, organization_id, name, description, starts_at, ends_at,
	registration_opens_at, registration_closes_at, base_price_cents, currency,
	max_capacity, registered_count, form_fields, status, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.RegistrationOpensAt, &e.RegistrationClosesAt, &e.BasePriceCents, &e.Currency,
		&e.MaxCapacity, &e.RegisteredCount, &e.FormFields, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, organization_id, name, description, starts_at, ends_at,
		registration_opens_at, registration_closes_at, base_price_cents, currency,
		max_capacity, form_fields, status, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, registered_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.Name, e.Description, e.StartsAt, e.EndsAt,
		e.RegistrationOpensAt, e.RegistrationClosesAt, e.BasePriceCents, e.Currency,
		e.MaxCapacity, e.FormFields, e.Status, e.CreatedBy).
		Scan(&e.ID, &e.RegisteredCount, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEvent implements the allocation engine's event lookup.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.GetByID(ctx, id)
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	CreatedBy      *uuid.UUID
	OrganizationID *uuid.UUID
	Status         string
}

// List returns events ordered by start time, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	var cond string
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		if cond == "" {
			cond = " WHERE "
		} else {
			cond += " AND "
		}
		cond += fmt.Sprintf(clause, len(args))
	}
	if f.CreatedBy != nil {
		add("created_by = $%d", *f.CreatedBy)
	}
	if f.OrganizationID != nil {
		add("organization_id = $%d", *f.OrganizationID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	rows, err := r.pool.Query(ctx, q+cond+" ORDER BY starts_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// ListStartingBetween returns published events starting inside [from, to).
// Used by the reminder scheduler.
func (r *Repository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE status = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`, models.EventStatusPublished, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update writes all mutable event columns. registered_count only moves
// through the seat ledger.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, starts_at = $3, ends_at = $4,
		registration_opens_at = $5, registration_closes_at = $6, base_price_cents = $7,
		currency = $8, max_capacity = $9, form_fields = $10, updated_at = NOW()
		WHERE id = $11`
	_, err := r.pool.Exec(ctx, q, e.Name, e.Description, e.StartsAt, e.EndsAt,
		e.RegistrationOpensAt, e.RegistrationClosesAt, e.BasePriceCents,
		e.Currency, e.MaxCapacity, e.FormFields, e.ID)
	return err
}

// UpdateStatus moves the event lifecycle (draft/published/cancelled/completed).
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes an event by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

// Stats summarises registrations and revenue for an event dashboard.
type Stats struct {
	EventID        uuid.UUID `json:"event_id"`
	Registrations  int       `json:"registrations"`
	Pending        int       `json:"pending"`
	Paid           int       `json:"paid"`
	Refunded       int       `json:"refunded"`
	CheckedIn      int       `json:"checked_in"`
	RevenueCents   int       `json:"revenue_cents"`
	RegisteredSeat int       `json:"registered_count"`
}

// GetStats aggregates registration counts and collected revenue.
func (r *Repository) GetStats(ctx context.Context, eventID uuid.UUID) (*Stats, error) {
	const q = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE payment_status = 'pending'),
		COUNT(*) FILTER (WHERE payment_status = 'paid'),
		COUNT(*) FILTER (WHERE payment_status = 'refunded'),
		COUNT(*) FILTER (WHERE checked_in_at IS NOT NULL),
		COALESCE(SUM(paid_amount_cents), 0)
		FROM registrations WHERE event_id = $1`
	s := Stats{EventID: eventID}
	if err := r.pool.QueryRow(ctx, q, eventID).Scan(&s.Registrations, &s.Pending, &s.Paid, &s.Refunded, &s.CheckedIn, &s.RevenueCents); err != nil {
		return nil, err
	}
	if err := r.pool.QueryRow(ctx, `SELECT registered_count FROM events WHERE id = $1`, eventID).Scan(&s.RegisteredSeat); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
