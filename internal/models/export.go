package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterExportStatus lifecycle.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// RosterExport is an async attendee roster CSV export (worker → S3).
type RosterExport struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	RequestedBy  uuid.UUID `json:"requested_by"`
	Status       string    `json:"status"`
	S3Key        string    `json:"s3_key,omitempty"`
	RowCount     int       `json:"row_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
