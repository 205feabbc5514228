package exports

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlane/backend/internal/models"
)

const exportColumns = `id, event_id, requested_by, status, s3_key, row_count, error_message, created_at, updated_at`

// Repository handles roster export persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a roster exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanExport(row pgx.Row, ex *models.RosterExport) error {
	return row.Scan(&ex.ID, &ex.EventID, &ex.RequestedBy, &ex.Status, &ex.S3Key,
		&ex.RowCount, &ex.ErrorMessage, &ex.CreatedAt, &ex.UpdatedAt)
}

// Create inserts a pending export row.
func (r *Repository) Create(ctx context.Context, ex *models.RosterExport) error {
	if ex.Status == "" {
		ex.Status = models.ExportStatusPending
	}
	const q = `INSERT INTO roster_exports (id, event_id, requested_by, status)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, ex.EventID, ex.RequestedBy, ex.Status).
		Scan(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt)
}

// GetByID returns an export, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RosterExport, error) {
	var ex models.RosterExport
	err := scanExport(r.pool.QueryRow(ctx, `SELECT `+exportColumns+` FROM roster_exports WHERE id = $1`, id), &ex)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// ListByEvent returns an event's exports, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.RosterExport, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+exportColumns+` FROM roster_exports
		WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RosterExport
	for rows.Next() {
		var ex models.RosterExport
		if err := scanExport(rows, &ex); err != nil {
			return nil, err
		}
		list = append(list, ex)
	}
	return list, rows.Err()
}

// Delete removes an export row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM roster_exports WHERE id = $1`, id)
	return err
}

// MarkCompleted records the uploaded object and row count.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, s3Key string, rowCount int) error {
	_, err := r.pool.Exec(ctx, `UPDATE roster_exports SET status = $1, s3_key = $2, row_count = $3,
		error_message = '', updated_at = NOW() WHERE id = $4`,
		models.ExportStatusCompleted, s3Key, rowCount, id)
	return err
}

// MarkFailed records the failure reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `UPDATE roster_exports SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3`, models.ExportStatusFailed, errMsg, id)
	return err
}
