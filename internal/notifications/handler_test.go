package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
)

type memInbox struct {
	list []*models.Notification
}

func (m *memInbox) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	out := []*models.Notification{}
	for _, n := range m.list {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memInbox) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, x := range m.list {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (m *memInbox) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for _, x := range m.list {
		if x.ID == id && x.UserID == userID {
			x.Read = true
			return nil
		}
	}
	return apperr.NotFound("notification", id)
}

func (m *memInbox) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, x := range m.list {
		if x.UserID == userID && !x.Read {
			x.Read = true
			n++
		}
	}
	return n, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
}

func serve(t *testing.T, h *Handler, me uuid.UUID, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, me, models.RoleStudent, "")
		c.Next()
	})
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.POST("/notifications/read-all", h.MarkAllRead)
	r.PATCH("/notifications/:id/read", h.MarkRead)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var out envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestInboxEndpoints(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	mine := &models.Notification{ID: uuid.New(), UserID: me, Type: models.NotifyEventApproved, Title: "Event approved"}
	inbox := &memInbox{list: []*models.Notification{
		mine,
		{ID: uuid.New(), UserID: me, Type: models.NotifyEventReminder, Title: "Event reminder"},
		{ID: uuid.New(), UserID: other, Type: models.NotifyEventCreated, Title: "New event"},
	}}
	h := NewHandler(inbox)

	w, body := serve(t, h, me, http.MethodGet, "/notifications")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Notification
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Len(t, list, 2)

	w, body = serve(t, h, me, http.MethodGet, "/notifications/unread-count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":2}`, string(body.Data))

	w, _ = serve(t, h, me, http.MethodPatch, "/notifications/"+mine.ID.String()+"/read")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mine.Read)

	w, body = serve(t, h, me, http.MethodGet, "/notifications?unread=true")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Len(t, list, 1)

	w, body = serve(t, h, me, http.MethodPost, "/notifications/read-all")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1}`, string(body.Data))
}

func TestMarkReadOtherUsersNotification(t *testing.T) {
	theirs := &models.Notification{ID: uuid.New(), UserID: uuid.New()}
	h := NewHandler(&memInbox{list: []*models.Notification{theirs}})

	w, body := serve(t, h, uuid.New(), http.MethodPatch, "/notifications/"+theirs.ID.String()+"/read")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body.Code)
	assert.False(t, theirs.Read)

	w, _ = serve(t, h, uuid.New(), http.MethodPatch, "/notifications/nope/read")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
