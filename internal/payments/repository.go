package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/models"
)

const paymentColumns = `id, event_id, registration_id, provider, provider_payment_id,
	kind, amount_cents, currency, created_at`

// Repository handles payment persistence. The registration's payment_status
// moves through conditional updates so concurrent charges and refunds
// serialize at the database, the same way the capacity ledger does.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPayment(row pgx.Row, p *models.Payment) error {
	return row.Scan(&p.ID, &p.EventID, &p.RegistrationID, &p.Provider, &p.ProviderPaymentID,
		&p.Kind, &p.AmountCents, &p.Currency, &p.CreatedAt)
}

// transitionError reports why a conditional status update matched no row.
func (r *Repository) transitionError(ctx context.Context, tx pgx.Tx, registrationID uuid.UUID) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT payment_status FROM registrations WHERE id = $1`, registrationID).Scan(&status)
	if err == pgx.ErrNoRows {
		return engine.ErrNotFound
	}
	if err != nil {
		return err
	}
	return engine.ErrInvalidStatusTransition
}

// RecordCharge marks the registration paid and appends the charge in one
// transaction. Charges are accepted while the registration is pending or
// already paid with an outstanding balance; refunded registrations reject
// with engine.ErrInvalidStatusTransition.
func (r *Repository) RecordCharge(ctx context.Context, p *models.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE registrations SET payment_status = $1,
		paid_amount_cents = paid_amount_cents + $2,
		additional_amount_due_cents = GREATEST(additional_amount_due_cents - $2, 0),
		updated_at = NOW()
		WHERE id = $3 AND payment_status IN ($4, $1)`,
		models.PaymentStatusPaid, p.AmountCents, p.RegistrationID, models.PaymentStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, tx, p.RegistrationID)
	}

	p.Kind = models.PaymentKindCharge
	if err := r.insert(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecordRefund marks a paid registration refunded and appends the refund in
// one transaction. Only paid registrations can be refunded; the paid amount
// stays on the row as history.
func (r *Repository) RecordRefund(ctx context.Context, p *models.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE registrations SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = $3`,
		models.PaymentStatusRefunded, p.RegistrationID, models.PaymentStatusPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, tx, p.RegistrationID)
	}

	p.Kind = models.PaymentKindRefund
	if err := r.insert(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insert(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	const q = `INSERT INTO payments (id, event_id, registration_id, provider, provider_payment_id, kind, amount_cents, currency)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return tx.QueryRow(ctx, q, p.EventID, p.RegistrationID, p.Provider, p.ProviderPaymentID,
		p.Kind, p.AmountCents, p.Currency).
		Scan(&p.ID, &p.CreatedAt)
}

// GetByProviderPaymentID returns the recorded payment for a provider's
// payment ID, or (nil, nil) when absent. Used to drop webhook replays.
func (r *Repository) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE provider = $1 AND provider_payment_id = $2`, provider, providerPaymentID), &p)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByRegistration returns a registration's payment history, oldest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE registration_id = $1 ORDER BY created_at`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListByEvent returns an event's payments, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
