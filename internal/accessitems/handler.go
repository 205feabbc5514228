package accessitems

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/middleware"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/response"
)

var itemTypes = map[string]bool{
	models.ItemTypeSession:       true,
	models.ItemTypeWorkshop:      true,
	models.ItemTypeDinner:        true,
	models.ItemTypeNetworking:    true,
	models.ItemTypeAccommodation: true,
	models.ItemTypeTransport:     true,
	models.ItemTypeOther:         true,
}

// ItemRequest is the body for POST /events/:id/access-items and PATCH
// /access-items/:id.
type ItemRequest struct {
	Name           string             `json:"name" binding:"required"`
	Description    string             `json:"description"`
	ItemType       string             `json:"item_type" binding:"required"`
	GroupLabel     string             `json:"group_label"`
	StartsAt       *string            `json:"starts_at"`
	EndsAt         *string            `json:"ends_at"`
	AvailableFrom  *string            `json:"available_from"`
	AvailableTo    *string            `json:"available_to"`
	PriceCents     int                `json:"price_cents"`
	MaxCapacity    *int               `json:"max_capacity"`
	Conditions     []models.Condition `json:"conditions"`
	ConditionLogic string             `json:"condition_logic"`
	Active         *bool              `json:"active"`
	SortOrder      int                `json:"sort_order"`
}

// RequirementsRequest is the body for PUT /access-items/:id/requirements.
type RequirementsRequest struct {
	RequiredItemIDs []string `json:"required_item_ids"`
}

// Handler handles access item HTTP endpoints.
type Handler struct {
	repo   *Repository
	events *events.Repository
	orgs   *organizations.Repository
	eng    *engine.Engine
	logger *zap.Logger
}

// NewHandler creates an access items handler.
func NewHandler(repo *Repository, eventRepo *events.Repository, orgs *organizations.Repository, eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: eventRepo, orgs: orgs, eng: eng, logger: logger}
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

func (req *ItemRequest) validate() string {
	if !itemTypes[req.ItemType] {
		return "unknown item_type"
	}
	if req.PriceCents < 0 {
		return "price_cents must not be negative"
	}
	if req.MaxCapacity != nil && *req.MaxCapacity < 0 {
		return "max_capacity must not be negative"
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

func (req *ItemRequest) apply(it *models.AccessItem) string {
	startsAt, err := parseTimePtr(req.StartsAt)
	if err != nil {
		return "invalid starts_at"
	}
	endsAt, err := parseTimePtr(req.EndsAt)
	if err != nil {
		return "invalid ends_at"
	}
	availFrom, err := parseTimePtr(req.AvailableFrom)
	if err != nil {
		return "invalid available_from"
	}
	availTo, err := parseTimePtr(req.AvailableTo)
	if err != nil {
		return "invalid available_to"
	}
	it.Name = req.Name
	it.Description = req.Description
	it.ItemType = req.ItemType
	it.GroupLabel = req.GroupLabel
	it.StartsAt = startsAt
	it.EndsAt = endsAt
	it.AvailableFrom = availFrom
	it.AvailableTo = availTo
	it.PriceCents = req.PriceCents
	it.MaxCapacity = req.MaxCapacity
	it.Conditions = req.Conditions
	it.ConditionLogic = req.ConditionLogic
	if it.ConditionLogic == "" {
		it.ConditionLogic = models.ConditionLogicAnd
	}
	it.Active = true
	if req.Active != nil {
		it.Active = *req.Active
	}
	it.SortOrder = req.SortOrder
	return ""
}

// Create handles POST /events/:id/access-items (event org access enforced
// by middleware).
func (h *Handler) Create(c *gin.Context) {
	e, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event missing from context")
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	it := &models.AccessItem{EventID: e.ID}
	if msg := req.apply(it); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Create(c.Request.Context(), it); err != nil {
		response.Internal(c, "failed to create access item")
		return
	}
	response.Created(c, it)
}

// ListGrouped handles GET /events/:id/access-items (public). Items are
// filtered by availability, conditions against the submitted form data and
// prerequisites against the current selection, then grouped into slots.
// Form data arrives URL-encoded in ?form=, the selection in ?selected=.
func (h *Handler) ListGrouped(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.events.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil || (e.Status != models.EventStatusPublished && !events.CanManage(c, h.orgs, e)) {
		response.NotFound(c, "event not found")
		return
	}

	formData := map[string]interface{}{}
	if raw := c.Query("form"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &formData); err != nil {
			response.BadRequest(c, "form must be a JSON object")
			return
		}
	}
	var selected []uuid.UUID
	if raw := c.Query("selected"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				response.BadRequest(c, "invalid selected item id")
				return
			}
			selected = append(selected, id)
		}
	}

	groups, err := h.eng.GroupAccessItems(c.Request.Context(), eventID, formData, selected)
	if err != nil {
		response.Internal(c, "failed to group access items")
		return
	}
	response.OK(c, groups)
}

// ListAll handles GET /events/:id/access-items/all (managers): the raw item
// list including inactive items and prerequisite edges.
func (h *Handler) ListAll(c *gin.Context) {
	e, ok := events.EventFromContext(c)
	if !ok {
		response.Internal(c, "event missing from context")
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list access items")
		return
	}
	response.OK(c, list)
}

// loadManaged loads the item in :id and authorizes the caller against its
// event. Writes the error response itself and returns nil when unauthorized.
func (h *Handler) loadManaged(c *gin.Context) *models.AccessItem {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid access item id")
		return nil
	}
	it, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load access item")
		return nil
	}
	if it == nil {
		response.NotFound(c, "access item not found")
		return nil
	}
	e, err := h.events.GetByID(c.Request.Context(), it.EventID)
	if err != nil || e == nil {
		response.NotFound(c, "event not found")
		return nil
	}
	if !events.CanManage(c, h.orgs, e) {
		response.Forbidden(c, "not authorized for this event")
		return nil
	}
	return it
}

// GetByID handles GET /access-items/:id (managers).
func (h *Handler) GetByID(c *gin.Context) {
	it := h.loadManaged(c)
	if it == nil {
		return
	}
	response.OK(c, it)
}

// Update handles PATCH /access-items/:id (managers).
func (h *Handler) Update(c *gin.Context) {
	it := h.loadManaged(c)
	if it == nil {
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if msg := req.apply(it); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Update(c.Request.Context(), it); err != nil {
		response.Internal(c, "failed to update access item")
		return
	}
	response.OK(c, it)
}

// Delete handles DELETE /access-items/:id (managers).
func (h *Handler) Delete(c *gin.Context) {
	it := h.loadManaged(c)
	if it == nil {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), it.ID); err != nil {
		response.Internal(c, "failed to delete access item")
		return
	}
	response.NoContent(c)
}

// SetRequirements handles PUT /access-items/:id/requirements (managers).
// The proposed edge list is rejected with 409 when it would close a cycle.
func (h *Handler) SetRequirements(c *gin.Context) {
	it := h.loadManaged(c)
	if it == nil {
		return
	}
	var req RequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	required := make([]uuid.UUID, 0, len(req.RequiredItemIDs))
	seen := make(map[uuid.UUID]bool)
	for _, idStr := range req.RequiredItemIDs {
		depID, err := uuid.Parse(idStr)
		if err != nil {
			response.BadRequest(c, "invalid required item id: "+idStr)
			return
		}
		if depID == it.ID {
			response.Conflict(c, engine.ErrCircularDependency.Error())
			return
		}
		if seen[depID] {
			continue
		}
		seen[depID] = true
		dep, err := h.repo.GetByID(c.Request.Context(), depID)
		if err != nil {
			response.Internal(c, "failed to load required item")
			return
		}
		if dep == nil || dep.EventID != it.EventID {
			response.BadRequest(c, "required items must belong to the same event")
			return
		}
		required = append(required, depID)
	}

	cycle, err := h.eng.HasPrerequisiteCycle(c.Request.Context(), it.EventID, it.ID, required)
	if err != nil {
		response.Internal(c, "failed to check requirement graph")
		return
	}
	if cycle {
		response.Conflict(c, engine.ErrCircularDependency.Error())
		return
	}

	if err := h.repo.SetRequirements(c.Request.Context(), it.ID, required); err != nil {
		response.Internal(c, "failed to save requirements")
		return
	}
	h.logger.Info("access item requirements updated",
		zap.String("item_id", it.ID.String()),
		zap.Int("requirements", len(required)),
		zap.String("user_id", c.MustGet(middleware.ContextUserID).(uuid.UUID).String()))
	it.Prerequisites = required
	response.OK(c, it)
}
