package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/accessitems"
	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/sponsorships"
)

const registrationColumns = `id, event_id, email, full_name, form_data, payment_status,
	paid_amount_cents, total_amount_cents, additional_amount_due_cents, sponsorship_codes,
	price_breakdown, idempotency_key, confirmed_at, checked_in_at, created_at, updated_at`

// Repository handles registration persistence. It implements the allocation
// engine's RegistrationStore: creation and amendment run their capacity
// movements and row writes in one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row, reg *models.Registration) error {
	return row.Scan(&reg.ID, &reg.EventID, &reg.Email, &reg.FullName, &reg.FormData, &reg.PaymentStatus,
		&reg.PaidAmountCents, &reg.TotalAmountCents, &reg.AdditionalAmountDueCents, &reg.SponsorshipCodes,
		&reg.PriceBreakdown, &reg.IdempotencyKey, &reg.ConfirmedAt, &reg.CheckedInAt, &reg.CreatedAt, &reg.UpdatedAt)
}

// attachItems loads the registration's selected items. Names are joined in
// from access_items at read time.
func (r *Repository) attachItems(ctx context.Context, reg *models.Registration) error {
	rows, err := r.pool.Query(ctx, `SELECT ri.registration_id, ri.access_item_id, i.name, ri.quantity, ri.unit_price_cents
		FROM registration_access_items ri
		INNER JOIN access_items i ON i.id = ri.access_item_id
		WHERE ri.registration_id = $1
		ORDER BY i.sort_order, i.name`, reg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.RegistrationItem
		if err := rows.Scan(&it.RegistrationID, &it.AccessItemID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return err
		}
		reg.Items = append(reg.Items, it)
	}
	return rows.Err()
}

// GetRegistration returns a registration with its items, or (nil, nil) when
// absent.
func (r *Repository) GetRegistration(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id), &reg)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByIdempotencyKey returns the registration created under the event+key
// pair, or (nil, nil) when none exists.
func (r *Repository) GetByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Registration, error) {
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations
		WHERE event_id = $1 AND idempotency_key = $2`, eventID, key), &reg)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, reg *models.Registration) error {
	for i := range reg.Items {
		reg.Items[i].RegistrationID = reg.ID
		_, err := tx.Exec(ctx, `INSERT INTO registration_access_items (registration_id, access_item_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)`,
			reg.ID, reg.Items[i].AccessItemID, reg.Items[i].Quantity, reg.Items[i].UnitPriceCents)
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateRegistration books a registration in one transaction: the event
// seat, every selected item's capacity and each applied sponsorship code
// move together with the row writes, or not at all. A duplicate
// event+idempotency key pair maps to engine.ErrDuplicateKey.
func (r *Repository) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := events.ReserveSeats(ctx, tx, reg.EventID, 1); err != nil {
		return err
	}
	for _, it := range reg.Items {
		if err := accessitems.Reserve(ctx, tx, it.AccessItemID, it.Quantity); err != nil {
			return err
		}
	}

	if reg.FormData == nil {
		reg.FormData = map[string]interface{}{}
	}
	if reg.SponsorshipCodes == nil {
		reg.SponsorshipCodes = []string{}
	}

	const q = `INSERT INTO registrations (id, event_id, email, full_name, form_data, payment_status,
		paid_amount_cents, total_amount_cents, additional_amount_due_cents, sponsorship_codes,
		price_breakdown, idempotency_key, confirmed_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, reg.EventID, reg.Email, reg.FullName, reg.FormData, reg.PaymentStatus,
		reg.PaidAmountCents, reg.TotalAmountCents, reg.AdditionalAmountDueCents, reg.SponsorshipCodes,
		reg.PriceBreakdown, reg.IdempotencyKey, reg.ConfirmedAt).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return engine.ErrDuplicateKey
		}
		return err
	}

	if err := insertItems(ctx, tx, reg); err != nil {
		return err
	}

	if reg.PriceBreakdown != nil {
		for _, line := range reg.PriceBreakdown.Sponsorships {
			if !line.Valid {
				continue
			}
			if err := sponsorships.ConsumeUse(ctx, tx, reg.EventID, line.Code); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

// ApplyAmendment applies a reconciled edit in one transaction: added items
// reserve capacity, removed items release it, the registration row and its
// item set are rewritten, and the amendment is appended under the next
// per-registration seq. The event seat itself does not move.
func (r *Repository) ApplyAmendment(ctx context.Context, reg *models.Registration, am *models.Amendment, added, removed []models.RegistrationItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, it := range added {
		if err := accessitems.Reserve(ctx, tx, it.AccessItemID, it.Quantity); err != nil {
			return err
		}
	}
	for _, it := range removed {
		if err := accessitems.Release(ctx, tx, it.AccessItemID, it.Quantity); err != nil {
			return err
		}
	}

	if reg.FormData == nil {
		reg.FormData = map[string]interface{}{}
	}
	_, err = tx.Exec(ctx, `UPDATE registrations SET form_data = $1, total_amount_cents = $2,
		additional_amount_due_cents = $3, price_breakdown = $4, updated_at = NOW()
		WHERE id = $5`,
		reg.FormData, reg.TotalAmountCents, reg.AdditionalAmountDueCents, reg.PriceBreakdown, reg.ID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM registration_access_items WHERE registration_id = $1`, reg.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, reg); err != nil {
		return err
	}

	if am.FormChanges == nil {
		am.FormChanges = []models.FieldChange{}
	}
	if am.AddedItems == nil {
		am.AddedItems = []models.ItemChange{}
	}
	if am.RemovedItems == nil {
		am.RemovedItems = []models.ItemChange{}
	}
	const q = `INSERT INTO amendments (id, registration_id, seq, form_changes, added_items, removed_items,
		previous_total_cents, new_total_cents, previous_additional_due_cents, new_additional_due_cents, price_breakdown)
		VALUES (gen_random_uuid(), $1,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM amendments WHERE registration_id = $1),
			$2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, seq, created_at`
	err = tx.QueryRow(ctx, q, am.RegistrationID, am.FormChanges, am.AddedItems, am.RemovedItems,
		am.PreviousTotalCents, am.NewTotalCents, am.PreviousAdditionalDueCents, am.NewAdditionalDueCents,
		am.PriceBreakdown).
		Scan(&am.ID, &am.Seq, &am.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteUnpaid removes a never-paid registration and returns its seats in
// one transaction: the event seat, every selected item's capacity and the
// row itself move together. Paid and refunded registrations map to
// engine.ErrInvalidStatusTransition; the payment history they carry must
// survive.
func (r *Repository) DeleteUnpaid(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Item quantities are read inside the transaction so a concurrent
	// amendment cannot leave stale releases behind.
	rows, err := tx.Query(ctx, `SELECT access_item_id, quantity FROM registration_access_items
		WHERE registration_id = $1`, id)
	if err != nil {
		return err
	}
	type heldItem struct {
		itemID uuid.UUID
		qty    int
	}
	var held []heldItem
	for rows.Next() {
		var h heldItem
		if err := rows.Scan(&h.itemID, &h.qty); err != nil {
			rows.Close()
			return err
		}
		held = append(held, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var eventID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM registrations
		WHERE id = $1 AND payment_status = $2 AND paid_amount_cents = 0
		RETURNING event_id`, id, models.PaymentStatusPending).Scan(&eventID)
	if err == pgx.ErrNoRows {
		var status string
		err := tx.QueryRow(ctx, `SELECT payment_status FROM registrations WHERE id = $1`, id).Scan(&status)
		if err == pgx.ErrNoRows {
			return engine.ErrNotFound
		}
		if err != nil {
			return err
		}
		return engine.ErrInvalidStatusTransition
	}
	if err != nil {
		return err
	}

	if err := events.ReleaseSeats(ctx, tx, eventID, 1); err != nil {
		return err
	}
	for _, h := range held {
		if err := accessitems.Release(ctx, tx, h.itemID, h.qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListAmendments returns a registration's amendment history in applied order.
func (r *Repository) ListAmendments(ctx context.Context, registrationID uuid.UUID) ([]models.Amendment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, registration_id, seq, form_changes, added_items, removed_items,
		previous_total_cents, new_total_cents, previous_additional_due_cents, new_additional_due_cents,
		price_breakdown, created_at
		FROM amendments WHERE registration_id = $1 ORDER BY seq`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Amendment
	for rows.Next() {
		var am models.Amendment
		err := rows.Scan(&am.ID, &am.RegistrationID, &am.Seq, &am.FormChanges, &am.AddedItems, &am.RemovedItems,
			&am.PreviousTotalCents, &am.NewTotalCents, &am.PreviousAdditionalDueCents, &am.NewAdditionalDueCents,
			&am.PriceBreakdown, &am.CreatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, am)
	}
	return list, rows.Err()
}

// ListFilter narrows ListByEvent.
type ListFilter struct {
	PaymentStatus string
	Search        string
}

// ListByEvent returns an event's registrations, newest first, without the
// per-registration item lists.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, f ListFilter) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1`
	args := []interface{}{eventID}
	if f.PaymentStatus != "" {
		args = append(args, f.PaymentStatus)
		query += fmt.Sprintf(` AND payment_status = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(` AND (email ILIKE $%d OR full_name ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// ListItemsForEvent returns every registration's selected items for an
// event in one query, keyed by registration ID. Used by roster exports.
func (r *Repository) ListItemsForEvent(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID][]models.RegistrationItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT ri.registration_id, ri.access_item_id, i.name, ri.quantity, ri.unit_price_cents
		FROM registration_access_items ri
		INNER JOIN access_items i ON i.id = ri.access_item_id
		INNER JOIN registrations reg ON reg.id = ri.registration_id
		WHERE reg.event_id = $1
		ORDER BY i.sort_order, i.name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.RegistrationItem)
	for rows.Next() {
		var it models.RegistrationItem
		if err := rows.Scan(&it.RegistrationID, &it.AccessItemID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out[it.RegistrationID] = append(out[it.RegistrationID], it)
	}
	return out, rows.Err()
}

// CheckIn stamps the registration's check-in time once; repeat calls keep
// the first timestamp.
func (r *Repository) CheckIn(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE registrations SET checked_in_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND checked_in_at IS NULL`, id)
	return err
}
