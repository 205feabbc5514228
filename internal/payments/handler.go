package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/response"
)

// Handler handles payment HTTP endpoints.
type Handler struct {
	repo   *Repository
	regs   *registrations.Repository
	events *events.Repository
	orgs   *organizations.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a payments handler. queue may be nil when Redis is not
// configured.
func NewHandler(repo *Repository, regRepo *registrations.Repository, eventRepo *events.Repository,
	orgRepo *organizations.Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, regs: regRepo, events: eventRepo, orgs: orgRepo, queue: q, logger: logger}
}

// ChargeRequest is the body for POST /registrations/:id/payments. A zero
// amount charges the outstanding balance.
type ChargeRequest struct {
	AmountCents       int    `json:"amount_cents"`
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id"`
}

// loadManaged resolves :id to a registration the caller may manage together
// with its event, writing the error response itself when it returns nils.
func (h *Handler) loadManaged(c *gin.Context) (*models.Registration, *models.Event) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return nil, nil
	}
	reg, err := h.regs.GetRegistration(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get registration", zap.Error(err))
		response.Internal(c, "failed to get registration")
		return nil, nil
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return nil, nil
	}
	event, err := h.events.GetByID(c.Request.Context(), reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return nil, nil
	}
	if !events.CanManage(c, h.orgs, event) {
		response.Forbidden(c, "you do not have access to this event")
		return nil, nil
	}
	return reg, event
}

// Outstanding is the amount still owed on a registration: the unpaid part
// of the total plus any balance accrued by amendments after payment.
func Outstanding(reg *models.Registration) int {
	due := reg.TotalAmountCents - reg.PaidAmountCents + reg.AdditionalAmountDueCents
	if due < 0 {
		due = 0
	}
	return due
}

// Charge handles POST /registrations/:id/payments (organizers).
func (h *Handler) Charge(c *gin.Context) {
	reg, event := h.loadManaged(c)
	if reg == nil {
		return
	}

	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.AmountCents < 0 {
		response.BadRequest(c, "amount_cents must not be negative")
		return
	}
	amount := req.AmountCents
	if amount == 0 {
		amount = Outstanding(reg)
	}
	provider := req.Provider
	if provider == "" {
		provider = models.PaymentProviderManual
	}
	if provider != models.PaymentProviderManual && provider != models.PaymentProviderStripe {
		response.BadRequest(c, "unknown provider")
		return
	}

	p := &models.Payment{
		EventID:           reg.EventID,
		RegistrationID:    reg.ID,
		Provider:          provider,
		ProviderPaymentID: req.ProviderPaymentID,
		AmountCents:       amount,
		Currency:          event.Currency,
	}
	if err := h.repo.RecordCharge(c.Request.Context(), p); err != nil {
		h.writeStateError(c, err)
		return
	}

	updated, err := h.regs.GetRegistration(c.Request.Context(), reg.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to load registration")
		return
	}
	h.sendReceipt(c.Request.Context(), updated, event, p)

	h.logger.Info("payment recorded",
		zap.String("registration_id", reg.ID.String()),
		zap.String("provider", provider),
		zap.Int("amount_cents", amount),
	)
	response.Created(c, gin.H{"payment": p, "registration": updated})
}

// Refund handles POST /registrations/:id/refund (organizers). The
// full paid amount is returned; edits are blocked from here on.
func (h *Handler) Refund(c *gin.Context) {
	reg, event := h.loadManaged(c)
	if reg == nil {
		return
	}

	p := &models.Payment{
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		Provider:       models.PaymentProviderManual,
		AmountCents:    reg.PaidAmountCents,
		Currency:       event.Currency,
	}
	if err := h.repo.RecordRefund(c.Request.Context(), p); err != nil {
		h.writeStateError(c, err)
		return
	}

	updated, err := h.regs.GetRegistration(c.Request.Context(), reg.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to load registration")
		return
	}
	h.sendRefundNotice(c.Request.Context(), updated, event, p)

	h.logger.Info("refund recorded",
		zap.String("registration_id", reg.ID.String()),
		zap.Int("amount_cents", p.AmountCents),
	)
	response.OK(c, gin.H{"payment": p, "registration": updated})
}

// ListByRegistration handles GET /registrations/:id/payments (organizers).
func (h *Handler) ListByRegistration(c *gin.Context) {
	reg, _ := h.loadManaged(c)
	if reg == nil {
		return
	}

	list, err := h.repo.ListByRegistration(c.Request.Context(), reg.ID)
	if err != nil {
		h.logger.Error("failed to list payments", zap.Error(err))
		response.Internal(c, "failed to list payments")
		return
	}
	if list == nil {
		list = []models.Payment{}
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/payments (organizers). Charges and
// refunds interleave in the list; refunds carry kind "refund".
func (h *Handler) ListByEvent(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	list, err := h.repo.ListByEvent(c.Request.Context(), event.ID)
	if err != nil {
		h.logger.Error("failed to list payments", zap.Error(err))
		response.Internal(c, "failed to list payments")
		return
	}
	if list == nil {
		list = []models.Payment{}
	}
	response.OK(c, list)
}

func (h *Handler) writeStateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		response.NotFound(c, "registration not found")
	case errors.Is(err, engine.ErrInvalidStatusTransition):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("payment operation failed", zap.Error(err))
		response.Internal(c, "payment operation failed")
	}
}

func (h *Handler) sendReceipt(ctx context.Context, reg *models.Registration, event *models.Event, p *models.Payment) {
	if h.queue == nil {
		return
	}
	err := h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypePaymentReceipt,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		Subject:        fmt.Sprintf("Payment received for %s", event.Name),
		BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>We received your payment of %s for <strong>%s</strong>.</p>",
			reg.FullName, formatAmount(p.AmountCents, p.Currency), event.Name),
	})
	if err != nil {
		h.logger.Warn("failed to enqueue receipt email", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

func (h *Handler) sendRefundNotice(ctx context.Context, reg *models.Registration, event *models.Event, p *models.Payment) {
	if h.queue == nil {
		return
	}
	err := h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeRefundNotice,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		Subject:        fmt.Sprintf("Refund issued for %s", event.Name),
		BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>Your payment of %s for <strong>%s</strong> has been refunded.</p>",
			reg.FullName, formatAmount(p.AmountCents, p.Currency), event.Name),
	})
	if err != nil {
		h.logger.Warn("failed to enqueue refund email", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

func formatAmount(cents int, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
