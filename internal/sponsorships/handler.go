package sponsorships

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/response"
	"github.com/eventlane/backend/pkg/utils"
)

// Handler handles sponsorship code endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	orgs   *organizations.Repository
	logger *zap.Logger
}

// NewHandler creates a sponsorship codes handler.
func NewHandler(repo *Repository, eventRepo *events.Repository, orgRepo *organizations.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: eventRepo, orgs: orgRepo, logger: logger}
}

// CodeRequest is the create/update payload for a sponsorship code.
type CodeRequest struct {
	Code        string     `json:"code"`
	SponsorName string     `json:"sponsor_name" binding:"required"`
	AmountCents int        `json:"amount_cents"`
	MaxUses     *int       `json:"max_uses"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
	Active      *bool      `json:"active"`
}

func (req *CodeRequest) validate() string {
	if req.AmountCents <= 0 {
		return "amount_cents must be positive"
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return "max_uses must be positive when set"
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidUntil.After(*req.ValidFrom) {
		return "valid_until must be after valid_from"
	}
	return ""
}

func (req *CodeRequest) apply(sc *models.SponsorshipCode) {
	sc.SponsorName = req.SponsorName
	sc.AmountCents = req.AmountCents
	sc.MaxUses = req.MaxUses
	sc.ValidFrom = req.ValidFrom
	sc.ValidUntil = req.ValidUntil
	if req.Active != nil {
		sc.Active = *req.Active
	}
}

// Create handles POST /events/:id/sponsorship-codes
func (h *Handler) Create(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		generated, err := utils.GenerateCode(10)
		if err != nil {
			response.Internal(c, "failed to generate code")
			return
		}
		code = generated
	}

	sc := &models.SponsorshipCode{
		EventID: event.ID,
		Code:    code,
		Active:  true,
	}
	req.apply(sc)

	if err := h.repo.Create(c.Request.Context(), sc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			response.Conflict(c, "code already exists for this event")
			return
		}
		h.logger.Error("failed to create sponsorship code", zap.Error(err))
		response.Internal(c, "failed to create sponsorship code")
		return
	}

	response.Created(c, sc)
}

// ListByEvent handles GET /events/:id/sponsorship-codes
func (h *Handler) ListByEvent(c *gin.Context) {
	event, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event not loaded")
		return
	}

	codes, err := h.repo.ListByEvent(c.Request.Context(), event.ID)
	if err != nil {
		h.logger.Error("failed to list sponsorship codes", zap.Error(err))
		response.Internal(c, "failed to list sponsorship codes")
		return
	}
	if codes == nil {
		codes = []models.SponsorshipCode{}
	}
	response.OK(c, codes)
}

// loadManaged resolves :id to a code the caller may manage, writing the
// error response itself when it returns nil.
func (h *Handler) loadManaged(c *gin.Context) *models.SponsorshipCode {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid sponsorship code id")
		return nil
	}

	sc, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get sponsorship code", zap.Error(err))
		response.Internal(c, "failed to get sponsorship code")
		return nil
	}
	if sc == nil {
		response.NotFound(c, "sponsorship code not found")
		return nil
	}

	event, err := h.events.GetByID(c.Request.Context(), sc.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return nil
	}
	if !events.CanManage(c, h.orgs, event) {
		response.Forbidden(c, "you do not have access to this event")
		return nil
	}
	return sc
}

// Update handles PATCH /sponsorship-codes/:id
func (h *Handler) Update(c *gin.Context) {
	sc := h.loadManaged(c)
	if sc == nil {
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	req.apply(sc)
	if err := h.repo.Update(c.Request.Context(), sc); err != nil {
		h.logger.Error("failed to update sponsorship code", zap.Error(err))
		response.Internal(c, "failed to update sponsorship code")
		return
	}
	response.OK(c, sc)
}

// Delete handles DELETE /sponsorship-codes/:id
func (h *Handler) Delete(c *gin.Context) {
	sc := h.loadManaged(c)
	if sc == nil {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), sc.ID); err != nil {
		h.logger.Error("failed to delete sponsorship code", zap.Error(err))
		response.Internal(c, "failed to delete sponsorship code")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
