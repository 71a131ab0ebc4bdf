package users

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// RoleRequest is the body for PATCH /users/:id/role.
type RoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// Handler serves the admin user endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a users handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /users?role=student.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		response.Error(c, err, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err, "failed to create user")
		return
	}
	response.Created(c, out)
}

// SetRole handles PATCH /users/:id/role.
func (h *Handler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), middleware.CurrentActor(c), id, req.Role)
	if err != nil {
		response.Error(c, err, "failed to change role")
		return
	}
	response.OK(c, u)
}

// Delete handles DELETE /users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err, "failed to delete user")
		return
	}
	response.NoContent(c)
}
