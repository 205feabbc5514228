package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventlane/backend/internal/middleware"
	"github.com/eventlane/backend/internal/models"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	OrganizationID       *string                  `json:"organization_id"`
	Name                 string                   `json:"name" binding:"required"`
	Description          string                   `json:"description"`
	StartsAt             string                   `json:"starts_at" binding:"required"`
	EndsAt               *string                  `json:"ends_at"`
	RegistrationOpensAt  *string                  `json:"registration_opens_at"`
	RegistrationClosesAt *string                  `json:"registration_closes_at"`
	BasePriceCents       int                      `json:"base_price_cents"`
	Currency             string                   `json:"currency"`
	MaxCapacity          *int                     `json:"max_capacity"`
	FormFields           []models.FormFieldConfig `json:"form_fields"`
}

// UpdateRequest is the body for PATCH /events/:id. Nil fields stay unchanged.
type UpdateRequest struct {
	Name                 *string                   `json:"name"`
	Description          *string                   `json:"description"`
	StartsAt             *string                   `json:"starts_at"`
	EndsAt               *string                   `json:"ends_at"`
	RegistrationOpensAt  *string                   `json:"registration_opens_at"`
	RegistrationClosesAt *string                   `json:"registration_closes_at"`
	BasePriceCents       *int                      `json:"base_price_cents"`
	Currency             *string                   `json:"currency"`
	MaxCapacity          *int                      `json:"max_capacity"`
	FormFields           *[]models.FormFieldConfig `json:"form_fields"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo *Repository
	orgs *organizations.Repository
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, orgs *organizations.Repository) *Handler {
	return &Handler{repo: repo, orgs: orgs}
}

// CanManage reports whether the request user may administer the event:
// platform admin, event creator, or member of the event's organization.
func CanManage(c *gin.Context, orgs *organizations.Repository, e *models.Event) bool {
	userID, ok := middleware.UserID(c)
	if !ok {
		return false
	}
	if role, _ := c.Get(middleware.ContextUserRole); role == string(models.RoleAdmin) {
		return true
	}
	if e.CreatedBy == userID {
		return true
	}
	if e.OrganizationID != nil {
		ok, _ := orgs.UserHasOrgAccess(c.Request.Context(), *e.OrganizationID, userID)
		return ok
	}
	return false
}

func (h *Handler) canManage(c *gin.Context, e *models.Event) bool {
	return CanManage(c, h.orgs, e)
}

// Create handles POST /events (organizer or admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	startsAt, err := parseTime(req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	endsAt, err := parseTimePtr(req.EndsAt)
	if err != nil {
		response.BadRequest(c, "invalid ends_at")
		return
	}
	opensAt, err := parseTimePtr(req.RegistrationOpensAt)
	if err != nil {
		response.BadRequest(c, "invalid registration_opens_at")
		return
	}
	closesAt, err := parseTimePtr(req.RegistrationClosesAt)
	if err != nil {
		response.BadRequest(c, "invalid registration_closes_at")
		return
	}
	if req.BasePriceCents < 0 {
		response.BadRequest(c, "base_price_cents must not be negative")
		return
	}
	if req.MaxCapacity != nil && *req.MaxCapacity < 0 {
		response.BadRequest(c, "max_capacity must not be negative")
		return
	}

	var orgID *uuid.UUID
	if req.OrganizationID != nil && *req.OrganizationID != "" {
		id, err := uuid.Parse(*req.OrganizationID)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		ok, err := h.orgs.UserHasOrgAccess(c.Request.Context(), id, userID)
		if err != nil || !ok {
			response.Forbidden(c, "not a member of this organization")
			return
		}
		orgID = &id
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	e := &models.Event{
		OrganizationID:       orgID,
		Name:                 req.Name,
		Description:          req.Description,
		StartsAt:             startsAt,
		EndsAt:               endsAt,
		RegistrationOpensAt:  opensAt,
		RegistrationClosesAt: closesAt,
		BasePriceCents:       req.BasePriceCents,
		Currency:             currency,
		MaxCapacity:          req.MaxCapacity,
		FormFields:           req.FormFields,
		Status:               models.EventStatusDraft,
		CreatedBy:            userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// GetByID handles GET /events/:id. Unpublished events are visible only to
// their managers.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if e.Status != models.EventStatusPublished && !h.canManage(c, e) {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// List handles GET /events. Anonymous callers see published events;
// ?mine=1 lists the signed-in user's own events in any status.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if c.Query("mine") == "1" {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.Unauthorized(c, "sign in to list your events")
			return
		}
		f.CreatedBy = &userID
		f.Status = c.Query("status")
	} else {
		f.Status = models.EventStatusPublished
	}
	if orgStr := c.Query("organization_id"); orgStr != "" {
		orgID, err := uuid.Parse(orgStr)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		f.OrganizationID = &orgID
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /events/:id (manager only). Price changes affect
// future registrations; existing breakdowns are immutable.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canManage(c, e) {
		response.Forbidden(c, "not authorized for this event")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.StartsAt != nil {
		t, err := parseTime(*req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		e.StartsAt = t
	}
	if req.EndsAt != nil {
		t, err := parseTimePtr(req.EndsAt)
		if err != nil {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		e.EndsAt = t
	}
	if req.RegistrationOpensAt != nil {
		t, err := parseTimePtr(req.RegistrationOpensAt)
		if err != nil {
			response.BadRequest(c, "invalid registration_opens_at")
			return
		}
		e.RegistrationOpensAt = t
	}
	if req.RegistrationClosesAt != nil {
		t, err := parseTimePtr(req.RegistrationClosesAt)
		if err != nil {
			response.BadRequest(c, "invalid registration_closes_at")
			return
		}
		e.RegistrationClosesAt = t
	}
	if req.BasePriceCents != nil {
		if *req.BasePriceCents < 0 {
			response.BadRequest(c, "base_price_cents must not be negative")
			return
		}
		e.BasePriceCents = *req.BasePriceCents
	}
	if req.Currency != nil {
		e.Currency = *req.Currency
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity < 0 {
			response.BadRequest(c, "max_capacity must not be negative")
			return
		}
		e.MaxCapacity = req.MaxCapacity
	}
	if req.FormFields != nil {
		e.FormFields = *req.FormFields
	}

	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to update event")
		return
	}
	updated, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, updated)
}

// statusTransitions whitelists lifecycle moves.
var statusTransitions = map[string][]string{
	models.EventStatusDraft:     {models.EventStatusPublished, models.EventStatusCancelled},
	models.EventStatusPublished: {models.EventStatusCancelled, models.EventStatusCompleted},
}

// UpdateStatus handles PATCH /events/:id/status (manager only).
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canManage(c, e) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	allowed := false
	for _, next := range statusTransitions[e.Status] {
		if next == req.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		response.Conflict(c, "cannot move event from "+e.Status+" to "+req.Status)
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		response.Internal(c, "failed to update status")
		return
	}
	e.Status = req.Status
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (manager only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canManage(c, e) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// GetStats handles GET /events/:id/stats (manager only).
func (h *Handler) GetStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canManage(c, e) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	stats, err := h.repo.GetStats(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}
