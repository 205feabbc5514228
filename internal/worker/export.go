package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/exports"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/storage"
)

// ExportProcessor builds attendee roster CSVs and uploads them to S3.
type ExportProcessor struct {
	exports *exports.Repository
	regs    *registrations.Repository
	s3      *storage.S3
	logger  *zap.Logger
}

// NewExportProcessor creates a roster export processor.
func NewExportProcessor(exportRepo *exports.Repository, regRepo *registrations.Repository, s3 *storage.S3, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{exports: exportRepo, regs: regRepo, s3: s3, logger: logger}
}

// Process executes one roster export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.RosterExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	ex, err := p.exports.GetByID(ctx, payload.ExportID)
	if err != nil {
		return fmt.Errorf("get export: %w", err)
	}
	if ex == nil {
		return fmt.Errorf("export not found: %s", payload.ExportID)
	}
	if ex.Status == models.ExportStatusCompleted {
		p.logger.Info("export already completed", zap.String("export_id", ex.ID.String()))
		return nil
	}
	if p.s3 == nil {
		// Without S3 the export can never succeed; fail it instead of retrying.
		if markErr := p.exports.MarkFailed(ctx, ex.ID, "s3 not configured"); markErr != nil {
			p.logger.Error("mark export failed errored", zap.Error(markErr), zap.String("export_id", ex.ID.String()))
		}
		return nil
	}

	buf, rowCount, err := p.buildCSV(ctx, payload)
	if err != nil {
		if markErr := p.exports.MarkFailed(ctx, ex.ID, err.Error()); markErr != nil {
			p.logger.Error("mark export failed errored", zap.Error(markErr), zap.String("export_id", ex.ID.String()))
		}
		return fmt.Errorf("build csv: %w", err)
	}

	key := storage.ExportKey(payload.EventID.String(), payload.ExportID.String())
	if _, err := p.s3.Upload(ctx, p.s3.ExportsBucket(), key, "text/csv", bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		if markErr := p.exports.MarkFailed(ctx, ex.ID, "upload failed"); markErr != nil {
			p.logger.Error("mark export failed errored", zap.Error(markErr), zap.String("export_id", ex.ID.String()))
		}
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.exports.MarkCompleted(ctx, ex.ID, key, rowCount); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	p.logger.Info("roster export completed",
		zap.String("export_id", ex.ID.String()),
		zap.String("s3_key", key),
		zap.Int("rows", rowCount),
	)
	return nil
}

func (p *ExportProcessor) buildCSV(ctx context.Context, payload queue.RosterExportPayload) (*bytes.Buffer, int, error) {
	regs, err := p.regs.ListByEvent(ctx, payload.EventID, registrations.ListFilter{})
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	itemsByReg, err := p.regs.ListItemsForEvent(ctx, payload.EventID)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"registration_id", "email", "full_name", "payment_status",
		"total_amount_cents", "paid_amount_cents", "additional_amount_due_cents",
		"access_items", "sponsorship_codes", "form_data",
		"confirmed_at", "checked_in_at", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, 0, err
	}

	for _, reg := range regs {
		var items []string
		for _, it := range itemsByReg[reg.ID] {
			items = append(items, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
		}
		var formData string
		if len(reg.FormData) > 0 {
			if b, err := json.Marshal(reg.FormData); err == nil {
				formData = string(b)
			}
		}
		row := []string{
			reg.ID.String(),
			reg.Email,
			reg.FullName,
			reg.PaymentStatus,
			strconv.Itoa(reg.TotalAmountCents),
			strconv.Itoa(reg.PaidAmountCents),
			strconv.Itoa(reg.AdditionalAmountDueCents),
			strings.Join(items, "; "),
			strings.Join(reg.SponsorshipCodes, "; "),
			formData,
			formatTime(reg.ConfirmedAt),
			formatTime(reg.CheckedInAt),
			reg.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, err
	}
	return &buf, len(regs), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
