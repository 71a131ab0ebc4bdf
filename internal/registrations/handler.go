package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/pkg/response"
)

// AttendanceRequest is the body for PATCH /registrations/:id/attendance.
type AttendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

// CheckInRequest is the body for POST /events/:id/check-in.
type CheckInRequest struct {
	Ticket string `json:"ticket" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a registrations handler.
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

// Register handles POST /events/:id/register. Returns the registration and its ticket payload.
func (h *Handler) Register(c *gin.Context) {
	eventID, ok := parseID(c, "event")
	if !ok {
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), middleware.CurrentActor(c), eventID)
	if err != nil {
		response.Error(c, err, "failed to register")
		return
	}
	response.Created(c, gin.H{
		"registration": reg,
		"ticket":       Ticket(reg),
	})
}

// Cancel handles DELETE /events/:id/register.
func (h *Handler) Cancel(c *gin.Context) {
	eventID, ok := parseID(c, "event")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), middleware.CurrentActor(c), eventID); err != nil {
		response.Error(c, err, "failed to cancel registration")
		return
	}
	response.NoContent(c)
}

// ListMine handles GET /registrations/me.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := parseID(c, "event")
	if !ok {
		return
	}
	list, err := h.svc.ListByEvent(c.Request.Context(), middleware.CurrentActor(c), eventID)
	if err != nil {
		response.Error(c, err, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// SetAttendance handles PATCH /registrations/:id/attendance.
func (h *Handler) SetAttendance(c *gin.Context) {
	id, ok := parseID(c, "registration")
	if !ok {
		return
	}
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "attended required")
		return
	}
	reg, err := h.svc.SetAttendance(c.Request.Context(), middleware.CurrentActor(c), id, *req.Attended)
	if err != nil {
		response.Error(c, err, "failed to update attendance")
		return
	}
	response.OK(c, reg)
}

// CheckIn handles POST /events/:id/check-in with a scanned ticket.
func (h *Handler) CheckIn(c *gin.Context) {
	eventID, ok := parseID(c, "event")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "ticket required")
		return
	}
	reg, err := h.svc.CheckIn(c.Request.Context(), middleware.CurrentActor(c), eventID, req.Ticket)
	if err != nil {
		response.Error(c, err, "failed to check in")
		return
	}
	response.OK(c, reg)
}
