package pricingrules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/response"
)

// RuleRequest is the body for POST /events/:id/pricing-rules and PATCH
// /pricing-rules/:id.
type RuleRequest struct {
	Name           string             `json:"name" binding:"required"`
	RuleType       string             `json:"rule_type" binding:"required"`
	Priority       int                `json:"priority"`
	Conditions     []models.Condition `json:"conditions"`
	ConditionLogic string             `json:"condition_logic"`
	PriceType      string             `json:"price_type" binding:"required"`
	PriceValue     int                `json:"price_value"`
	ValidFrom      *string            `json:"valid_from"`
	ValidUntil     *string            `json:"valid_until"`
	Active         *bool              `json:"active"`
}

// Handler handles pricing rule HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	orgs   *organizations.Repository
}

// NewHandler creates a pricing rules handler.
func NewHandler(repo *Repository, eventRepo *events.Repository, orgs *organizations.Repository) *Handler {
	return &Handler{repo: repo, events: eventRepo, orgs: orgs}
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (req *RuleRequest) validate() string {
	if req.RuleType != models.RuleTypeBasePrice && req.RuleType != models.RuleTypeModifier {
		return "rule_type must be BASE_PRICE or MODIFIER"
	}
	if req.PriceType != models.PriceTypeFixed && req.PriceType != models.PriceTypePercentage {
		return "price_type must be FIXED or PERCENTAGE"
	}
	if req.ConditionLogic != "" && req.ConditionLogic != models.ConditionLogicAnd && req.ConditionLogic != models.ConditionLogicOr {
		return "condition_logic must be AND or OR"
	}
	for _, cond := range req.Conditions {
		if cond.Field == "" {
			return "condition field required"
		}
		if !models.KnownOperator(cond.Operator) {
			return "unknown condition operator: " + cond.Operator
		}
	}
	return ""
}

func (req *RuleRequest) apply(pr *models.PricingRule) string {
	validFrom, err := parseTimePtr(req.ValidFrom)
	if err != nil {
		return "invalid valid_from"
	}
	validUntil, err := parseTimePtr(req.ValidUntil)
	if err != nil {
		return "invalid valid_until"
	}
	pr.Name = req.Name
	pr.RuleType = req.RuleType
	pr.Priority = req.Priority
	pr.Conditions = req.Conditions
	pr.ConditionLogic = req.ConditionLogic
	if pr.ConditionLogic == "" {
		pr.ConditionLogic = models.ConditionLogicAnd
	}
	pr.PriceType = req.PriceType
	pr.PriceValue = req.PriceValue
	pr.ValidFrom = validFrom
	pr.ValidUntil = validUntil
	pr.Active = true
	if req.Active != nil {
		pr.Active = *req.Active
	}
	return ""
}

// Create handles POST /events/:id/pricing-rules (event org access enforced
// by middleware).
func (h *Handler) Create(c *gin.Context) {
	e, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event missing from context")
		return
	}
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	pr := &models.PricingRule{EventID: e.ID}
	if msg := req.apply(pr); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Create(c.Request.Context(), pr); err != nil {
		response.Internal(c, "failed to create pricing rule")
		return
	}
	response.Created(c, pr)
}

// ListByEvent handles GET /events/:id/pricing-rules (managers).
func (h *Handler) ListByEvent(c *gin.Context) {
	e, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event missing from context")
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list pricing rules")
		return
	}
	response.OK(c, list)
}

func (h *Handler) loadManaged(c *gin.Context) *models.PricingRule {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid pricing rule id")
		return nil
	}
	pr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load pricing rule")
		return nil
	}
	if pr == nil {
		response.NotFound(c, "pricing rule not found")
		return nil
	}
	e, err := h.events.GetByID(c.Request.Context(), pr.EventID)
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return nil
	}
	if !events.CanManage(c, h.orgs, e) {
		response.Forbidden(c, "not authorized for this event")
		return nil
	}
	return pr
}

// Update handles PATCH /pricing-rules/:id (managers).
func (h *Handler) Update(c *gin.Context) {
	pr := h.loadManaged(c)
	if pr == nil {
		return
	}
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if msg := req.apply(pr); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Update(c.Request.Context(), pr); err != nil {
		response.Internal(c, "failed to update pricing rule")
		return
	}
	response.OK(c, pr)
}

// Delete handles DELETE /pricing-rules/:id (managers).
func (h *Handler) Delete(c *gin.Context) {
	pr := h.loadManaged(c)
	if pr == nil {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), pr.ID); err != nil {
		response.Internal(c, "failed to delete pricing rule")
		return
	}
	response.NoContent(c)
}
