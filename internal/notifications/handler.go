package notifications

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// Store is the inbox as seen by the HTTP layer.
type Store interface {
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Handler serves the signed-in user's inbox.
type Handler struct {
	store Store
}

// NewHandler creates a notifications handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List handles GET /notifications?unread=true&limit=20.
func (h *Handler) List(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	unread, _ := strconv.ParseBool(c.Query("unread"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.store.ListByUser(c.Request.Context(), actor.ID, unread, limit)
	if err != nil {
		response.Error(c, err, "failed to list notifications")
		return
	}
	response.OK(c, list)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.store.UnreadCount(c.Request.Context(), middleware.CurrentActor(c).ID)
	if err != nil {
		response.Error(c, err, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"unread": n})
}

// MarkRead handles PATCH /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.store.MarkRead(c.Request.Context(), middleware.CurrentActor(c).ID, id); err != nil {
		response.Error(c, err, "failed to update notification")
		return
	}
	response.NoContent(c)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.store.MarkAllRead(c.Request.Context(), middleware.CurrentActor(c).ID)
	if err != nil {
		response.Error(c, err, "failed to update notifications")
		return
	}
	response.OK(c, gin.H{"updated": n})
}
