package resourcerequests

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// SubmitRequest is the body for POST /events/:id/resource-requests.
type SubmitRequest struct {
	Requests []Item `json:"requests" binding:"required,min=1,dive"`
}

// ReviewRequest is the body for PATCH /resource-requests/:id.
type ReviewRequest struct {
	Status models.ResourceRequestStatus `json:"status" binding:"required"`
}

// Handler handles resource request endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a resource request handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListAll handles GET /resource-requests (admin).
func (h *Handler) ListAll(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), nil)
	if err != nil {
		response.Error(c, err, "failed to list resource requests")
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/resource-requests.
func (h *Handler) ListByEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.svc.List(c.Request.Context(), &id)
	if err != nil {
		response.Error(c, err, "failed to list resource requests")
		return
	}
	response.OK(c, list)
}

// Submit handles POST /events/:id/resource-requests.
func (h *Handler) Submit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	list, err := h.svc.Submit(c.Request.Context(), middleware.CurrentActor(c), id, req.Requests)
	if err != nil {
		response.Error(c, err, "failed to submit resource requests")
		return
	}
	response.Created(c, list)
}

// Review handles PATCH /resource-requests/:id (admin).
func (h *Handler) Review(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid resource request id")
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	r, err := h.svc.Review(c.Request.Context(), middleware.CurrentActor(c), id, req.Status)
	if err != nil {
		response.Error(c, err, "failed to review resource request")
		return
	}
	response.OK(c, r)
}
