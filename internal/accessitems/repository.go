package accessitems

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/models"
)

const itemColumns = `id, event_id, name, description, item_type, group_label,
	starts_at, ends_at, available_from, available_to, price_cents,
	max_capacity, registered_count, conditions, condition_logic, active,
	sort_order, created_at, updated_at`

// Repository handles access item persistence. Prerequisite edges live in
// access_item_requirements and are attached on every read.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access item repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanItem(row pgx.Row, it *models.AccessItem) error {
	return row.Scan(&it.ID, &it.EventID, &it.Name, &it.Description, &it.ItemType, &it.GroupLabel,
		&it.StartsAt, &it.EndsAt, &it.AvailableFrom, &it.AvailableTo, &it.PriceCents,
		&it.MaxCapacity, &it.RegisteredCount, &it.Conditions, &it.ConditionLogic, &it.Active,
		&it.SortOrder, &it.CreatedAt, &it.UpdatedAt)
}

// Create inserts a new access item. Prerequisites are set separately via
// SetRequirements.
func (r *Repository) Create(ctx context.Context, it *models.AccessItem) error {
	const q = `INSERT INTO access_items (id, event_id, name, description, item_type, group_label,
		starts_at, ends_at, available_from, available_to, price_cents,
		max_capacity, conditions, condition_logic, active, sort_order)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, registered_count, created_at, updated_at`
	conds := it.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	return r.pool.QueryRow(ctx, q, it.EventID, it.Name, it.Description, it.ItemType, it.GroupLabel,
		it.StartsAt, it.EndsAt, it.AvailableFrom, it.AvailableTo, it.PriceCents,
		it.MaxCapacity, conds, it.ConditionLogic, it.Active, it.SortOrder).
		Scan(&it.ID, &it.RegisteredCount, &it.CreatedAt, &it.UpdatedAt)
}

// GetByID returns an access item with prerequisites, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessItem, error) {
	var it models.AccessItem
	err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM access_items WHERE id = $1`, id), &it)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT required_item_id FROM access_item_requirements
		WHERE access_item_id = $1 ORDER BY required_item_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var dep uuid.UUID
		if err := rows.Scan(&dep); err != nil {
			return nil, err
		}
		it.Prerequisites = append(it.Prerequisites, dep)
	}
	return &it, rows.Err()
}

// ListByEvent returns the event's access items ordered by sort_order then
// name, with prerequisite edges attached.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AccessItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM access_items
		WHERE event_id = $1 ORDER BY sort_order, name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.AccessItem
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var it models.AccessItem
		if err := scanItem(rows, &it); err != nil {
			return nil, err
		}
		index[it.ID] = len(list)
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges, err := r.pool.Query(ctx, `SELECT req.access_item_id, req.required_item_id
		FROM access_item_requirements req
		INNER JOIN access_items i ON i.id = req.access_item_id
		WHERE i.event_id = $1 ORDER BY req.access_item_id, req.required_item_id`, eventID)
	if err != nil {
		return nil, err
	}
	defer edges.Close()
	for edges.Next() {
		var from, to uuid.UUID
		if err := edges.Scan(&from, &to); err != nil {
			return nil, err
		}
		if i, ok := index[from]; ok {
			list[i].Prerequisites = append(list[i].Prerequisites, to)
		}
	}
	return list, edges.Err()
}

// ListItems implements the allocation engine's item lookup.
func (r *Repository) ListItems(ctx context.Context, eventID uuid.UUID) ([]models.AccessItem, error) {
	return r.ListByEvent(ctx, eventID)
}

// Update writes all mutable item columns. registered_count only moves
// through the ledger.
func (r *Repository) Update(ctx context.Context, it *models.AccessItem) error {
	const q = `UPDATE access_items SET name = $1, description = $2, item_type = $3,
		group_label = $4, starts_at = $5, ends_at = $6, available_from = $7,
		available_to = $8, price_cents = $9, max_capacity = $10, conditions = $11,
		condition_logic = $12, active = $13, sort_order = $14, updated_at = NOW()
		WHERE id = $15`
	conds := it.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	_, err := r.pool.Exec(ctx, q, it.Name, it.Description, it.ItemType,
		it.GroupLabel, it.StartsAt, it.EndsAt, it.AvailableFrom,
		it.AvailableTo, it.PriceCents, it.MaxCapacity, conds,
		it.ConditionLogic, it.Active, it.SortOrder, it.ID)
	return err
}

// Delete removes an access item. Requirement edges cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM access_items WHERE id = $1`, id)
	return err
}

// SetRequirements replaces the item's prerequisite edge list atomically.
// Cycle checking happens before this is called.
func (r *Repository) SetRequirements(ctx context.Context, itemID uuid.UUID, required []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM access_item_requirements WHERE access_item_id = $1`, itemID); err != nil {
		return err
	}
	for _, dep := range required {
		if _, err := tx.Exec(ctx, `INSERT INTO access_item_requirements (access_item_id, required_item_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, itemID, dep); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
