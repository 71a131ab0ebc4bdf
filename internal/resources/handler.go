package resources

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/pkg/response"
)

// Handler handles resource inventory and allocation endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a resource handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// ListTypes handles GET /resources.
func (h *Handler) ListTypes(c *gin.Context) {
	list, err := h.svc.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to list resources")
		return
	}
	response.OK(c, list)
}

// GetType handles GET /resources/:id.
func (h *Handler) GetType(c *gin.Context) {
	id, ok := parseID(c, "resource type")
	if !ok {
		return
	}
	rt, err := h.svc.GetType(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load resource")
		return
	}
	response.OK(c, rt)
}

// CreateType handles POST /resources (admin).
func (h *Handler) CreateType(c *gin.Context) {
	var req TypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rt, err := h.svc.CreateType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err, "failed to create resource")
		return
	}
	response.Created(c, rt)
}

// UpdateType handles PATCH /resources/:id (admin).
func (h *Handler) UpdateType(c *gin.Context) {
	id, ok := parseID(c, "resource type")
	if !ok {
		return
	}
	var req TypeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rt, err := h.svc.UpdateType(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err, "failed to update resource")
		return
	}
	response.OK(c, rt)
}

// ListAllocations handles GET /events/:id/resources.
func (h *Handler) ListAllocations(c *gin.Context) {
	id, ok := parseID(c, "event")
	if !ok {
		return
	}
	list, err := h.svc.ListAllocations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to list allocations")
		return
	}
	response.OK(c, list)
}

// Allocate handles POST /events/:id/resources (admin).
func (h *Handler) Allocate(c *gin.Context) {
	id, ok := parseID(c, "event")
	if !ok {
		return
	}
	var req AllocateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Allocate(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		response.Error(c, err, "failed to allocate resource")
		return
	}
	response.Created(c, a)
}

// Deallocate handles DELETE /allocations/:id (admin). The body repeats the
// resource type and quantity being released.
func (h *Handler) Deallocate(c *gin.Context) {
	id, ok := parseID(c, "allocation")
	if !ok {
		return
	}
	var req DeallocateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.Deallocate(c.Request.Context(), id, req); err != nil {
		response.Error(c, err, "failed to release allocation")
		return
	}
	response.NoContent(c)
}
