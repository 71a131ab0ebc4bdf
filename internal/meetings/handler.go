package meetings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// InviteRequest is the body for POST /meetings/:id/participants.
type InviteRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1"`
}

// RespondRequest is the body for PATCH /meetings/:id/response.
type RespondRequest struct {
	Status models.ParticipantStatus `json:"status" binding:"required"`
}

// Handler handles meeting endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a meeting handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func meetingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /meetings?event_id=.
func (h *Handler) List(c *gin.Context) {
	var eventID *uuid.UUID
	if s := c.Query("event_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		eventID = &id
	}
	list, err := h.svc.List(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err, "failed to list meetings")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /meetings/me.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err, "failed to list meetings")
		return
	}
	response.OK(c, list)
}

// Create handles POST /meetings.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		response.Error(c, err, "failed to create meeting")
		return
	}
	response.Created(c, m)
}

// Get handles GET /meetings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load meeting")
		return
	}
	response.OK(c, m)
}

// Update handles PATCH /meetings/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		response.Error(c, err, "failed to update meeting")
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /meetings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err, "failed to delete meeting")
		return
	}
	response.NoContent(c)
}

// Participants handles GET /meetings/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	list, err := h.svc.Participants(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to list participants")
		return
	}
	response.OK(c, list)
}

// Invite handles POST /meetings/:id/participants.
func (h *Handler) Invite(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	added, err := h.svc.Invite(c.Request.Context(), middleware.CurrentActor(c), id, req.UserIDs)
	if err != nil {
		response.Error(c, err, "failed to invite participants")
		return
	}
	response.Created(c, gin.H{"invited": added})
}

// Respond handles PATCH /meetings/:id/response.
func (h *Handler) Respond(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Respond(c.Request.Context(), middleware.CurrentActor(c), id, req.Status)
	if err != nil {
		response.Error(c, err, "failed to record response")
		return
	}
	response.OK(c, p)
}

// Join handles POST /meetings/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	p, err := h.svc.Join(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err, "failed to join meeting")
		return
	}
	response.OK(c, p)
}

// Leave handles POST /meetings/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	p, err := h.svc.Leave(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err, "failed to leave meeting")
		return
	}
	response.OK(c, p)
}
