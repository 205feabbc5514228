package emaillogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	orgs   *organizations.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an email logs handler. queue may be nil when Redis is
// not configured; Resend then reports 503.
func NewHandler(repo *Repository, eventRepo *events.Repository, orgRepo *organizations.Repository,
	q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: eventRepo, orgs: orgRepo, queue: q, logger: logger}
}

// ListByEvent handles GET /events/:id/email-logs (organizers).
func (h *Handler) ListByEvent(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	logs, err := h.repo.ListByEvent(c.Request.Context(), event.ID)
	if err != nil {
		h.logger.Error("failed to list email logs", zap.Error(err))
		response.Internal(c, "failed to list email logs")
		return
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	response.OK(c, logs)
}

// Resend handles POST /email-logs/:id/resend (organizers). The stored
// subject and body are enqueued again as a fresh delivery.
func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email log id")
		return
	}

	l, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get email log", zap.Error(err))
		response.Internal(c, "failed to get email log")
		return
	}
	if l == nil {
		response.NotFound(c, "email log not found")
		return
	}
	if l.EventID == nil {
		response.BadRequest(c, "email log is not tied to an event")
		return
	}

	event, err := h.events.GetByID(c.Request.Context(), *l.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return
	}
	if !events.CanManage(c, h.orgs, event) {
		response.Forbidden(c, "you do not have access to this event")
		return
	}

	if h.queue == nil {
		response.ServiceUnavailable(c, "email queue not configured")
		return
	}
	payload := queue.EmailPayload{
		EmailType:      l.EmailType,
		EventID:        *l.EventID,
		RecipientEmail: l.RecipientEmail,
		Subject:        l.Subject,
		BodyHTML:       l.BodyHTML,
	}
	if l.RegistrationID != nil {
		payload.RegistrationID = *l.RegistrationID
	}
	if err := h.queue.EnqueueEmail(c.Request.Context(), payload); err != nil {
		h.logger.Error("failed to enqueue resend", zap.Error(err), zap.String("email_log_id", id.String()))
		response.Internal(c, "failed to enqueue resend")
		return
	}

	response.OK(c, gin.H{"queued": true})
}
