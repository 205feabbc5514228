package exports

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/middleware"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/response"
	"github.com/eventlane/backend/pkg/storage"
)

// Handler handles roster export HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	orgs   *organizations.Repository
	queue  *queue.Queue
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an exports handler. queue and s3 may be nil; creation
// and downloads then report 503.
func NewHandler(repo *Repository, eventRepo *events.Repository, orgRepo *organizations.Repository,
	q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: eventRepo, orgs: orgRepo, queue: q, s3: s3, logger: logger}
}

// Create handles POST /events/:id/exports (organizers). The CSV is
// produced asynchronously by the worker.
func (h *Handler) Create(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}
	if h.queue == nil {
		response.ServiceUnavailable(c, "export queue not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	ex := &models.RosterExport{EventID: event.ID, RequestedBy: userID}
	if err := h.repo.Create(c.Request.Context(), ex); err != nil {
		h.logger.Error("failed to create export", zap.Error(err))
		response.Internal(c, "failed to create export")
		return
	}

	err := h.queue.EnqueueRosterExport(c.Request.Context(), queue.RosterExportPayload{
		ExportID: ex.ID,
		EventID:  event.ID,
	})
	if err != nil {
		h.logger.Error("failed to enqueue export", zap.Error(err), zap.String("export_id", ex.ID.String()))
		if markErr := h.repo.MarkFailed(c.Request.Context(), ex.ID, "enqueue failed"); markErr != nil {
			h.logger.Error("failed to mark export failed", zap.Error(markErr))
		}
		response.Internal(c, "failed to enqueue export")
		return
	}

	response.Created(c, ex)
}

// ListByEvent handles GET /events/:id/exports (organizers).
func (h *Handler) ListByEvent(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	list, err := h.repo.ListByEvent(c.Request.Context(), event.ID)
	if err != nil {
		h.logger.Error("failed to list exports", zap.Error(err))
		response.Internal(c, "failed to list exports")
		return
	}
	if list == nil {
		list = []models.RosterExport{}
	}
	response.OK(c, list)
}

// loadManaged resolves :id to an export the caller may manage, writing the
// error response itself when it returns nil.
func (h *Handler) loadManaged(c *gin.Context) *models.RosterExport {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return nil
	}

	ex, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get export", zap.Error(err))
		response.Internal(c, "failed to get export")
		return nil
	}
	if ex == nil {
		response.NotFound(c, "export not found")
		return nil
	}

	event, err := h.events.GetByID(c.Request.Context(), ex.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return nil
	}
	if !events.CanManage(c, h.orgs, event) {
		response.Forbidden(c, "you do not have access to this event")
		return nil
	}
	return ex
}

// GetByID handles GET /exports/:id (organizers).
func (h *Handler) GetByID(c *gin.Context) {
	ex := h.loadManaged(c)
	if ex == nil {
		return
	}
	response.OK(c, ex)
}

// Delete handles DELETE /exports/:id (organizers). The S3 object goes
// first; a row without its object would still offer a dead download URL.
func (h *Handler) Delete(c *gin.Context) {
	ex := h.loadManaged(c)
	if ex == nil {
		return
	}

	if ex.S3Key != "" && h.s3 != nil {
		if err := h.s3.DeleteExport(c.Request.Context(), ex.S3Key); err != nil {
			h.logger.Error("failed to delete export object", zap.Error(err), zap.String("export_id", ex.ID.String()))
			response.Internal(c, "failed to delete export file")
			return
		}
	}
	if err := h.repo.Delete(c.Request.Context(), ex.ID); err != nil {
		h.logger.Error("failed to delete export", zap.Error(err))
		response.Internal(c, "failed to delete export")
		return
	}
	response.NoContent(c)
}

// DownloadURL handles GET /exports/:id/download-url (organizers).
func (h *Handler) DownloadURL(c *gin.Context) {
	ex := h.loadManaged(c)
	if ex == nil {
		return
	}
	if ex.Status != models.ExportStatusCompleted || ex.S3Key == "" {
		response.BadRequest(c, "export not ready for download")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}

	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ExportsBucket(), ex.S3Key, expire)
	if err != nil {
		h.logger.Error("failed to presign export download", zap.Error(err), zap.String("export_id", ex.ID.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}
