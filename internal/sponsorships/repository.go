package sponsorships

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/pkg/database"
)

const codeColumns = `id, event_id, code, sponsor_name, amount_cents, max_uses,
	used_count, valid_from, valid_until, active, created_at, updated_at`

// Repository handles sponsorship code persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sponsorship codes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCode(row pgx.Row, sc *models.SponsorshipCode) error {
	return row.Scan(&sc.ID, &sc.EventID, &sc.Code, &sc.SponsorName, &sc.AmountCents, &sc.MaxUses,
		&sc.UsedCount, &sc.ValidFrom, &sc.ValidUntil, &sc.Active, &sc.CreatedAt, &sc.UpdatedAt)
}

// Create inserts a new sponsorship code. The (event_id, code) pair is unique.
func (r *Repository) Create(ctx context.Context, sc *models.SponsorshipCode) error {
	const q = `INSERT INTO sponsorship_codes (id, event_id, code, sponsor_name, amount_cents,
		max_uses, valid_from, valid_until, active)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, used_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, sc.EventID, sc.Code, sc.SponsorName, sc.AmountCents,
		sc.MaxUses, sc.ValidFrom, sc.ValidUntil, sc.Active).
		Scan(&sc.ID, &sc.UsedCount, &sc.CreatedAt, &sc.UpdatedAt)
}

// GetByID returns a sponsorship code, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SponsorshipCode, error) {
	var sc models.SponsorshipCode
	err := scanCode(r.pool.QueryRow(ctx, `SELECT `+codeColumns+` FROM sponsorship_codes WHERE id = $1`, id), &sc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetCode implements the allocation engine's code lookup. Matching is exact
// on the stored code string.
func (r *Repository) GetCode(ctx context.Context, eventID uuid.UUID, code string) (*models.SponsorshipCode, error) {
	var sc models.SponsorshipCode
	err := scanCode(r.pool.QueryRow(ctx, `SELECT `+codeColumns+` FROM sponsorship_codes
		WHERE event_id = $1 AND code = $2`, eventID, code), &sc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListByEvent returns the event's sponsorship codes.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.SponsorshipCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+codeColumns+` FROM sponsorship_codes
		WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SponsorshipCode
	for rows.Next() {
		var sc models.SponsorshipCode
		if err := scanCode(rows, &sc); err != nil {
			return nil, err
		}
		list = append(list, sc)
	}
	return list, rows.Err()
}

// Update writes all mutable code columns. used_count only moves through
// ConsumeUse.
func (r *Repository) Update(ctx context.Context, sc *models.SponsorshipCode) error {
	const q = `UPDATE sponsorship_codes SET sponsor_name = $1, amount_cents = $2,
		max_uses = $3, valid_from = $4, valid_until = $5, active = $6, updated_at = NOW()
		WHERE id = $7`
	_, err := r.pool.Exec(ctx, q, sc.SponsorName, sc.AmountCents,
		sc.MaxUses, sc.ValidFrom, sc.ValidUntil, sc.Active, sc.ID)
	return err
}

// Delete removes a sponsorship code.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sponsorship_codes WHERE id = $1`, id)
	return err
}

// ConsumeUse takes one use of a code in a conditional UPDATE so concurrent
// registrations cannot exceed max_uses. Returns *engine.CapacityError when
// the code is exhausted between quoting and booking.
func ConsumeUse(ctx context.Context, q database.Querier, eventID uuid.UUID, code string) error {
	tag, err := q.Exec(ctx, `UPDATE sponsorship_codes
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE event_id = $1 AND code = $2 AND (max_uses IS NULL OR used_count < max_uses)`, eventID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var id uuid.UUID
	err = q.QueryRow(ctx, `SELECT id FROM sponsorship_codes WHERE event_id = $1 AND code = $2`, eventID, code).Scan(&id)
	if err == pgx.ErrNoRows {
		return engine.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &engine.CapacityError{ItemID: id, Name: "sponsorship code " + code, Requested: 1, Remaining: 0}
}
