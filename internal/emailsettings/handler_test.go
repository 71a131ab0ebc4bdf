package emailsettings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
)

type memStore struct {
	settings map[models.NotificationType]bool
	prefs    map[uuid.UUID]map[models.NotificationType]bool
	logs     []*models.EmailLog
	asked    *uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{settings: map[models.NotificationType]bool{}, prefs: map[uuid.UUID]map[models.NotificationType]bool{}}
}

func (m *memStore) ListSettings(context.Context) ([]models.EmailSetting, error) {
	out := []models.EmailSetting{}
	for _, t := range models.NotificationTypes {
		enabled, ok := m.settings[t]
		out = append(out, models.EmailSetting{NotificationType: t, Enabled: !ok || enabled})
	}
	return out, nil
}

func (m *memStore) SetSetting(_ context.Context, t models.NotificationType, enabled bool, by uuid.UUID) (*models.EmailSetting, error) {
	m.settings[t] = enabled
	return &models.EmailSetting{NotificationType: t, Enabled: enabled, UpdatedBy: &by}, nil
}

func (m *memStore) ListPreferences(_ context.Context, userID uuid.UUID) ([]models.EmailPreference, error) {
	var out []models.EmailPreference
	for t, enabled := range m.prefs[userID] {
		out = append(out, models.EmailPreference{UserID: userID, NotificationType: t, Enabled: enabled})
	}
	return out, nil
}

func (m *memStore) SetPreference(_ context.Context, userID uuid.UUID, t models.NotificationType, enabled bool) (*models.EmailPreference, error) {
	if m.prefs[userID] == nil {
		m.prefs[userID] = map[models.NotificationType]bool{}
	}
	m.prefs[userID][t] = enabled
	return &models.EmailPreference{UserID: userID, NotificationType: t, Enabled: enabled}, nil
}

func (m *memStore) ListLogs(_ context.Context, recipient *uuid.UUID, _ int) ([]*models.EmailLog, error) {
	m.asked = recipient
	return m.logs, nil
}

func router(st Store, actor models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(st)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, actor.ID, actor.Role, "")
		c.Next()
	})
	r.GET("/email/settings", h.ListSettings)
	r.PATCH("/email/settings/:type", middleware.RequireRole(models.RoleAdmin), h.SetSetting)
	r.GET("/email/preferences", h.ListPreferences)
	r.PUT("/email/preferences/:type", h.SetPreference)
	r.GET("/email/logs", h.ListLogs)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSettingsAreAdminOnly(t *testing.T) {
	st := newMemStore()
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

	w := send(router(st, models.Actor{ID: uuid.New(), Role: models.RoleStudent}), http.MethodPatch, "/email/settings/event_reminder", `{"enabled":false}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := router(st, admin)
	w = send(r, http.MethodPatch, "/email/settings/event_reminder", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, st.settings[models.NotifyEventReminder])

	w = send(r, http.MethodPatch, "/email/settings/birthday", `{"enabled":false}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPatch, "/email/settings/event_reminder", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "enabled is required")
}

func TestPreferencesDefaultToEnabled(t *testing.T) {
	st := newMemStore()
	me := models.Actor{ID: uuid.New(), Role: models.RoleStudent}
	r := router(st, me)

	w := send(r, http.MethodPut, "/email/preferences/event_updated", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodGet, "/email/preferences", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.EmailPreference `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, len(models.NotificationTypes))
	for _, p := range body.Data {
		assert.Equal(t, p.NotificationType != models.NotifyEventUpdated, p.Enabled, p.NotificationType)
	}
}

func TestLogsScopedToRecipient(t *testing.T) {
	st := newMemStore()
	me := models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}

	send(router(st, me), http.MethodGet, "/email/logs", "")
	require.NotNil(t, st.asked)
	assert.Equal(t, me.ID, *st.asked)

	send(router(st, models.Actor{ID: uuid.New(), Role: models.RoleAdmin}), http.MethodGet, "/email/logs", "")
	assert.Nil(t, st.asked)
}

func TestDecide(t *testing.T) {
	on, off := true, false
	ok, reason := Decide(nil, nil)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = Decide(&off, &on)
	assert.False(t, ok)
	assert.Equal(t, SkipDisabledGlobally, reason)

	ok, reason = Decide(&on, &off)
	assert.False(t, ok)
	assert.Equal(t, SkipDisabledByUser, reason)
}
