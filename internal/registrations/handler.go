package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/accessitems"
	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/response"
)

// CapacityNotifier pushes live seat counts to event watchers. The WebSocket
// hub implements it; a nil notifier disables the feed.
type CapacityNotifier interface {
	BroadcastToEvent(eventID uuid.UUID, event string, payload interface{})
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	repo   *Repository
	eng    *engine.Engine
	events *events.Repository
	items  *accessitems.Repository
	orgs   *organizations.Repository
	queue  *queue.Queue
	hub    CapacityNotifier
	logger *zap.Logger
}

// NewHandler creates a registrations handler. queue and hub may be nil when
// Redis is not configured.
func NewHandler(repo *Repository, eng *engine.Engine, eventRepo *events.Repository, itemRepo *accessitems.Repository,
	orgRepo *organizations.Repository, q *queue.Queue, hub CapacityNotifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eng: eng, events: eventRepo, items: itemRepo, orgs: orgRepo, queue: q, hub: hub, logger: logger}
}

// RegisterRequest is the body for POST /events/:id/registrations.
type RegisterRequest struct {
	Email            string                 `json:"email" binding:"required,email"`
	FullName         string                 `json:"full_name" binding:"required"`
	FormData         map[string]interface{} `json:"form_data"`
	Selections       []models.ItemSelection `json:"selections"`
	SponsorshipCodes []string               `json:"sponsorship_codes"`
	IdempotencyKey   string                 `json:"idempotency_key"`
}

// QuoteRequest is the body for POST /events/:id/price-quote.
type QuoteRequest struct {
	FormData         map[string]interface{} `json:"form_data"`
	Selections       []models.ItemSelection `json:"selections"`
	SponsorshipCodes []string               `json:"sponsorship_codes"`
}

// EditRequest is the body for PATCH /registrations/:id. A null selections
// field leaves the item set unchanged; an empty array clears it.
type EditRequest struct {
	FormData   map[string]interface{} `json:"form_data"`
	Selections []models.ItemSelection `json:"selections"`
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}

// writeEngineError maps engine errors onto HTTP statuses: validation issues
// to 422, capacity and state conflicts to 409, missing rows to 404.
func (h *Handler) writeEngineError(c *gin.Context, err error, notFoundMsg string) {
	var vErr *engine.ValidationError
	var cErr *engine.CapacityError
	switch {
	case errors.As(err, &vErr):
		response.Unprocessable(c, vErr.Error(), gin.H{"issues": vErr.Issues})
	case errors.As(err, &cErr):
		response.Conflict(c, cErr.Error())
	case errors.Is(err, engine.ErrNotFound):
		response.NotFound(c, notFoundMsg)
	case errors.Is(err, engine.ErrRegistrationClosed),
		errors.Is(err, engine.ErrRegistrationRefunded),
		errors.Is(err, engine.ErrAccessRemovalBlocked),
		errors.Is(err, engine.ErrInvalidStatusTransition),
		errors.Is(err, engine.ErrDuplicateKey):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("registration operation failed", zap.Error(err))
		response.Internal(c, "operation failed")
	}
}

// Create handles POST /events/:id/registrations
func (h *Handler) Create(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	reg, err := h.eng.CreateRegistration(c.Request.Context(), engine.CreateParams{
		EventID:          eventID,
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:         strings.TrimSpace(req.FullName),
		FormData:         req.FormData,
		Selections:       req.Selections,
		SponsorshipCodes: normalizeCodes(req.SponsorshipCodes),
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(c, err, "event not found")
		return
	}

	h.sendConfirmation(c.Request.Context(), reg)
	h.broadcastCapacity(c.Request.Context(), eventID)
	response.Created(c, reg)
}

// Quote handles POST /events/:id/price-quote. It prices a selection
// without booking anything; validation issues ride along so the client can
// show price and problems together.
func (h *Handler) Quote(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	issues, err := h.eng.ValidateSelections(ctx, eventID, req.Selections, req.FormData)
	if err != nil {
		h.writeEngineError(c, err, "event not found")
		return
	}
	bd, err := h.eng.CalculatePrice(ctx, eventID, req.FormData, req.Selections, normalizeCodes(req.SponsorshipCodes))
	if err != nil {
		h.writeEngineError(c, err, "event not found")
		return
	}
	if issues == nil {
		issues = []engine.ValidationIssue{}
	}
	response.OK(c, gin.H{"breakdown": bd, "issues": issues})
}

// GetByID handles GET /registrations/:id. Registration IDs are
// unguessable and act as the attendee's access token.
func (h *Handler) GetByID(c *gin.Context) {
	reg := h.load(c)
	if reg == nil {
		return
	}
	response.OK(c, reg)
}

// Amend handles PATCH /registrations/:id
func (h *Handler) Amend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.eng.ReconcileAmendment(c.Request.Context(), id, engine.EditRequest{
		FormData:   req.FormData,
		Selections: req.Selections,
	})
	if err != nil {
		h.writeEngineError(c, err, "registration not found")
		return
	}

	h.sendAmendmentNotice(c.Request.Context(), res.Registration, res.Amendment)
	h.broadcastCapacity(c.Request.Context(), res.Registration.EventID)
	response.OK(c, gin.H{
		"registration":                res.Registration,
		"amendment":                   res.Amendment,
		"additional_amount_due_cents": res.AdditionalAmountDueCents,
	})
}

// ListAmendments handles GET /registrations/:id/amendments
func (h *Handler) ListAmendments(c *gin.Context) {
	reg := h.load(c)
	if reg == nil {
		return
	}

	list, err := h.repo.ListAmendments(c.Request.Context(), reg.ID)
	if err != nil {
		h.logger.Error("failed to list amendments", zap.Error(err))
		response.Internal(c, "failed to list amendments")
		return
	}
	if list == nil {
		list = []models.Amendment{}
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations (organizers).
func (h *Handler) ListByEvent(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	list, err := h.repo.ListByEvent(c.Request.Context(), event.ID, ListFilter{
		PaymentStatus: c.Query("payment_status"),
		Search:        c.Query("search"),
	})
	if err != nil {
		h.logger.Error("failed to list registrations", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	if list == nil {
		list = []models.Registration{}
	}
	response.OK(c, list)
}

// CheckIn handles POST /registrations/:id/check-in (organizers).
func (h *Handler) CheckIn(c *gin.Context) {
	reg := h.load(c)
	if reg == nil {
		return
	}
	if !h.canManageRegistration(c, reg) {
		return
	}

	if err := h.repo.CheckIn(c.Request.Context(), reg.ID); err != nil {
		h.logger.Error("failed to check in registration", zap.Error(err))
		response.Internal(c, "failed to check in")
		return
	}
	updated, err := h.repo.GetRegistration(c.Request.Context(), reg.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to load registration")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /registrations/:id (organizers). Only never-paid
// registrations can be removed; their seats go back to the pool. Paid and
// refunded ones keep their payment history and reject with 409.
func (h *Handler) Delete(c *gin.Context) {
	reg := h.load(c)
	if reg == nil {
		return
	}
	if !h.canManageRegistration(c, reg) {
		return
	}

	if err := h.repo.DeleteUnpaid(c.Request.Context(), reg.ID); err != nil {
		h.writeEngineError(c, err, "registration not found")
		return
	}

	h.logger.Info("registration deleted",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", reg.EventID.String()),
	)
	h.broadcastCapacity(c.Request.Context(), reg.EventID)
	response.NoContent(c)
}

// load resolves :id to a registration, writing the error response itself
// when it returns nil.
func (h *Handler) load(c *gin.Context) *models.Registration {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return nil
	}
	reg, err := h.repo.GetRegistration(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get registration", zap.Error(err))
		response.Internal(c, "failed to get registration")
		return nil
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return nil
	}
	return reg
}

// canManageRegistration authorizes organizer actions on a registration via
// its event, writing the error response when it returns false.
func (h *Handler) canManageRegistration(c *gin.Context, reg *models.Registration) bool {
	event, err := h.events.GetByID(c.Request.Context(), reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return false
	}
	if !events.CanManage(c, h.orgs, event) {
		response.Forbidden(c, "you do not have access to this event")
		return false
	}
	return true
}

// sendConfirmation enqueues the registration confirmation email. Delivery is
// best effort; a full queue never fails the booking.
func (h *Handler) sendConfirmation(ctx context.Context, reg *models.Registration) {
	if h.queue == nil {
		return
	}
	event, err := h.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		return
	}
	err = h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationConfirmation,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		Subject:        fmt.Sprintf("You're registered for %s", event.Name),
		BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <strong>%s</strong> is confirmed. Total: %s.</p>",
			reg.FullName, event.Name, formatAmount(reg.TotalAmountCents, event.Currency)),
	})
	if err != nil {
		h.logger.Warn("failed to enqueue confirmation email",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

// sendAmendmentNotice enqueues the change summary email after an amendment.
func (h *Handler) sendAmendmentNotice(ctx context.Context, reg *models.Registration, am *models.Amendment) {
	if h.queue == nil {
		return
	}
	event, err := h.events.GetByID(ctx, reg.EventID)
	if err != nil || event == nil {
		return
	}
	err = h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeAmendmentNotice,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		Subject:        fmt.Sprintf("Your registration for %s was updated", event.Name),
		BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <strong>%s</strong> was updated (change #%d). New total: %s.</p>",
			reg.FullName, event.Name, am.Seq, formatAmount(reg.TotalAmountCents, event.Currency)),
	})
	if err != nil {
		h.logger.Warn("failed to enqueue amendment email",
			zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

type itemCapacity struct {
	AccessItemID    uuid.UUID `json:"access_item_id"`
	RegisteredCount int       `json:"registered_count"`
	Remaining       *int      `json:"remaining,omitempty"`
}

type capacityPayload struct {
	EventID         uuid.UUID      `json:"event_id"`
	RegisteredCount int            `json:"registered_count"`
	Remaining       *int           `json:"remaining,omitempty"`
	Items           []itemCapacity `json:"items"`
}

// CapacitySnapshot reports current seat counts for an event and its access
// items. Returns (nil, nil) when the event does not exist. Shared by the
// post-booking broadcast and the WebSocket connect snapshot.
func CapacitySnapshot(ctx context.Context, eventRepo *events.Repository, itemRepo *accessitems.Repository, eventID uuid.UUID) (interface{}, error) {
	event, err := eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	items, err := itemRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	payload := capacityPayload{
		EventID:         event.ID,
		RegisteredCount: event.RegisteredCount,
		Remaining:       event.Remaining(),
		Items:           make([]itemCapacity, 0, len(items)),
	}
	for _, it := range items {
		payload.Items = append(payload.Items, itemCapacity{
			AccessItemID:    it.ID,
			RegisteredCount: it.RegisteredCount,
			Remaining:       it.Remaining(),
		})
	}
	return payload, nil
}

// broadcastCapacity pushes the event's current seat counts to WebSocket
// subscribers after a booking or amendment moved them.
func (h *Handler) broadcastCapacity(ctx context.Context, eventID uuid.UUID) {
	if h.hub == nil {
		return
	}
	payload, err := CapacitySnapshot(ctx, h.events, h.items, eventID)
	if err != nil || payload == nil {
		return
	}
	h.hub.BroadcastToEvent(eventID, "capacity_update", payload)
}

func formatAmount(cents int, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
