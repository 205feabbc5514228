package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/models"
)

const logColumns = `id, event_id, registration_id, email_type, recipient_email,
	subject, body_html, status, sent_at, error_message, created_at`

// Repository handles email log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLog(row pgx.Row, l *models.EmailLog) error {
	return row.Scan(&l.ID, &l.EventID, &l.RegistrationID, &l.EmailType, &l.RecipientEmail,
		&l.Subject, &l.BodyHTML, &l.Status, &l.SentAt, &l.ErrorMessage, &l.CreatedAt)
}

// Create inserts an email log row, pending unless a status is set.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	if l.Status == "" {
		l.Status = models.EmailLogStatusPending
	}
	const q = `INSERT INTO email_logs (id, event_id, registration_id, email_type, recipient_email, subject, body_html, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.EventID, l.RegistrationID, l.EmailType, l.RecipientEmail,
		l.Subject, l.BodyHTML, l.Status).
		Scan(&l.ID, &l.CreatedAt)
}

// GetByID returns an email log, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	var l models.EmailLog
	err := scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM email_logs WHERE id = $1`, id), &l)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $1, sent_at = $2, error_message = ''
		WHERE id = $3`, models.EmailLogStatusSent, at, id)
	return err
}

// MarkFailed records a delivery failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $1, error_message = $2
		WHERE id = $3`, models.EmailLogStatusFailed, errMsg, id)
	return err
}

// ListByEvent returns an event's email logs, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM email_logs
		WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByRegistration returns a registration's email logs, newest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM email_logs
		WHERE registration_id = $1 ORDER BY created_at DESC`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// HasLog reports whether a registration already has a log of the given
// type. Used to send at-most-one reminder per registration.
func (r *Repository) HasLog(ctx context.Context, registrationID uuid.UUID, emailType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM email_logs
		WHERE registration_id = $1 AND email_type = $2)`, registrationID, emailType).Scan(&exists)
	return exists, err
}

func collect(rows pgx.Rows) ([]models.EmailLog, error) {
	var list []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := scanLog(rows, &l); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
