package events

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
	"github.com/unievents/backend/pkg/storage"
)

// MaxImageSize bounds event image uploads.
const MaxImageSize = 5 << 20

// ImageStore uploads event images and returns their public URL.
type ImageStore interface {
	UploadEventImage(ctx context.Context, eventID uuid.UUID, filename, contentType string, body io.Reader, size int64) (string, error)
}

// StatusRequest is the body for PATCH /events/:id/status.
type StatusRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	images ImageStore
	logger *zap.Logger
}

// NewHandler creates an event handler. images may be nil when S3 is not configured.
func NewHandler(svc *Service, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, images: images, logger: logger}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /events. Students only see approved events.
func (h *Handler) List(c *gin.Context) {
	f := models.EventFilter{
		Status:   models.EventStatus(c.Query("status")),
		Category: models.EventCategory(c.Query("category")),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	if v := c.Query("organizer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid organizer_id")
			return
		}
		f.OrganizerID = &id
	}
	if c.Query("mine") == "true" {
		id := middleware.CurrentActor(c).ID
		f.OrganizerID = &id
	}
	if middleware.CurrentActor(c).Role == models.RoleStudent {
		f.Status = models.EventStatusApproved
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Create handles POST /events (organizer, admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		response.Error(c, err, "failed to create event")
		return
	}
	response.Created(c, out)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	actor := middleware.CurrentActor(c)
	if actor.Role == models.RoleStudent && e.Status != models.EventStatusApproved {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		response.Error(c, err, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// CheckConflict handles GET /events/conflicts?date=&venue=&exclude_id=.
func (h *Handler) CheckConflict(c *gin.Context) {
	var exclude *uuid.UUID
	if v := c.Query("exclude_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid exclude_id")
			return
		}
		exclude = &id
	}
	res, err := h.svc.CheckConflict(c.Request.Context(), c.Query("date"), c.Query("venue"), exclude)
	if err != nil {
		response.Error(c, err, "failed to check schedule")
		return
	}
	response.OK(c, res)
}

// SetStatus handles PATCH /events/:id/status (admin).
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	e, err := h.svc.SetStatus(c.Request.Context(), middleware.CurrentActor(c), id, req.Status)
	if err != nil {
		response.Error(c, err, "failed to update event status")
		return
	}
	response.OK(c, e)
}

// Cancel handles POST /events/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.svc.Cancel(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err, "failed to cancel event")
		return
	}
	response.OK(c, e)
}

// UploadImage handles POST /events/:id/image (multipart field "file").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	defer file.Close()
	if header.Size > MaxImageSize {
		response.BadRequest(c, "image exceeds 5MB")
		return
	}
	actor := middleware.CurrentActor(c)
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	if !actor.CanManage(e.OrganizerID) {
		response.Forbidden(c, "only the organizer or an admin can change the image")
		return
	}
	url, err := h.images.UploadEventImage(c.Request.Context(), id, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if errors.Is(err, storage.ErrUnsupportedType) {
		response.BadRequest(c, "image must be JPEG, PNG, WebP or GIF")
		return
	}
	if err != nil {
		h.logger.Warn("event image upload failed", zap.String("event_id", id.String()), zap.Error(err))
		response.Error(c, err, "failed to upload image")
		return
	}
	e, err = h.svc.SetImage(c.Request.Context(), actor, id, url)
	if err != nil {
		response.Error(c, err, "failed to save image")
		return
	}
	response.OK(c, e)
}
