package pricingrules

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/models"
)

const ruleColumns = `id, event_id, name, rule_type, priority, conditions,
	condition_logic, price_type, price_value, valid_from, valid_until, active,
	created_at, updated_at`

// Repository handles pricing rule persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pricing rules repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRule(row pgx.Row, pr *models.PricingRule) error {
	return row.Scan(&pr.ID, &pr.EventID, &pr.Name, &pr.RuleType, &pr.Priority, &pr.Conditions,
		&pr.ConditionLogic, &pr.PriceType, &pr.PriceValue, &pr.ValidFrom, &pr.ValidUntil, &pr.Active,
		&pr.CreatedAt, &pr.UpdatedAt)
}

// Create inserts a new pricing rule.
func (r *Repository) Create(ctx context.Context, pr *models.PricingRule) error {
	const q = `INSERT INTO pricing_rules (id, event_id, name, rule_type, priority, conditions,
		condition_logic, price_type, price_value, valid_from, valid_until, active)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	conds := pr.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	return r.pool.QueryRow(ctx, q, pr.EventID, pr.Name, pr.RuleType, pr.Priority, conds,
		pr.ConditionLogic, pr.PriceType, pr.PriceValue, pr.ValidFrom, pr.ValidUntil, pr.Active).
		Scan(&pr.ID, &pr.CreatedAt, &pr.UpdatedAt)
}

// GetByID returns a pricing rule, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PricingRule, error) {
	var pr models.PricingRule
	err := scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id = $1`, id), &pr)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListByEvent returns the event's pricing rules. Resolution order (priority
// desc, created_at asc) is applied by the engine, not here.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.PricingRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM pricing_rules
		WHERE event_id = $1 ORDER BY priority DESC, created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PricingRule
	for rows.Next() {
		var pr models.PricingRule
		if err := scanRule(rows, &pr); err != nil {
			return nil, err
		}
		list = append(list, pr)
	}
	return list, rows.Err()
}

// ListRules implements the allocation engine's rule lookup.
func (r *Repository) ListRules(ctx context.Context, eventID uuid.UUID) ([]models.PricingRule, error) {
	return r.ListByEvent(ctx, eventID)
}

// Update writes all mutable rule columns.
func (r *Repository) Update(ctx context.Context, pr *models.PricingRule) error {
	const q = `UPDATE pricing_rules SET name = $1, rule_type = $2, priority = $3,
		conditions = $4, condition_logic = $5, price_type = $6, price_value = $7,
		valid_from = $8, valid_until = $9, active = $10, updated_at = NOW()
		WHERE id = $11`
	conds := pr.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	_, err := r.pool.Exec(ctx, q, pr.Name, pr.RuleType, pr.Priority,
		conds, pr.ConditionLogic, pr.PriceType, pr.PriceValue,
		pr.ValidFrom, pr.ValidUntil, pr.Active, pr.ID)
	return err
}

// Delete removes a pricing rule.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
	return err
}
