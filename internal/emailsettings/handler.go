package emailsettings

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// Store is the persistence the handler needs; *Repository implements it.
type Store interface {
	ListSettings(ctx context.Context) ([]models.EmailSetting, error)
	SetSetting(ctx context.Context, typ models.NotificationType, enabled bool, by uuid.UUID) (*models.EmailSetting, error)
	ListPreferences(ctx context.Context, userID uuid.UUID) ([]models.EmailPreference, error)
	SetPreference(ctx context.Context, userID uuid.UUID, typ models.NotificationType, enabled bool) (*models.EmailPreference, error)
	ListLogs(ctx context.Context, recipient *uuid.UUID, limit int) ([]*models.EmailLog, error)
}

// ToggleRequest is the body for the settings and preference endpoints.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Handler handles email settings, preferences and log endpoints.
type Handler struct {
	store Store
}

// NewHandler creates an email settings handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func notificationType(c *gin.Context) (models.NotificationType, bool) {
	t := models.NotificationType(c.Param("type"))
	if !t.Valid() {
		response.BadRequest(c, "unknown notification type "+strconv.Quote(string(t)))
		return "", false
	}
	return t, true
}

// ListSettings handles GET /email/settings.
func (h *Handler) ListSettings(c *gin.Context) {
	list, err := h.store.ListSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to load email settings")
		return
	}
	response.OK(c, list)
}

// SetSetting handles PATCH /email/settings/:type (admin).
func (h *Handler) SetSetting(c *gin.Context) {
	t, ok := notificationType(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.store.SetSetting(c.Request.Context(), t, *req.Enabled, middleware.CurrentActor(c).ID)
	if err != nil {
		response.Error(c, err, "failed to update email setting")
		return
	}
	response.OK(c, s)
}

// ListPreferences handles GET /email/preferences. Every notification type is
// listed; types the user never touched show as enabled.
func (h *Handler) ListPreferences(c *gin.Context) {
	userID := middleware.CurrentActor(c).ID
	stored, err := h.store.ListPreferences(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err, "failed to load email preferences")
		return
	}
	response.OK(c, MergePreferences(userID, stored))
}

// SetPreference handles PUT /email/preferences/:type.
func (h *Handler) SetPreference(c *gin.Context) {
	t, ok := notificationType(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.store.SetPreference(c.Request.Context(), middleware.CurrentActor(c).ID, t, *req.Enabled)
	if err != nil {
		response.Error(c, err, "failed to update email preference")
		return
	}
	response.OK(c, p)
}

// ListLogs handles GET /email/logs. Admins see every delivery, others their own.
func (h *Handler) ListLogs(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	var recipient *uuid.UUID
	if !actor.IsAdmin() {
		recipient = &actor.ID
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.store.ListLogs(c.Request.Context(), recipient, limit)
	if err != nil {
		response.Error(c, err, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// MergePreferences returns one preference per notification type, defaulting to enabled.
func MergePreferences(userID uuid.UUID, stored []models.EmailPreference) []models.EmailPreference {
	byType := make(map[models.NotificationType]models.EmailPreference, len(stored))
	for _, p := range stored {
		byType[p.NotificationType] = p
	}
	out := make([]models.EmailPreference, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		p, ok := byType[t]
		if !ok {
			p = models.EmailPreference{UserID: userID, NotificationType: t, Enabled: true}
		}
		out = append(out, p)
	}
	return out
}
