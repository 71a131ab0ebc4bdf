package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/store/storetest"
	"github.com/unievents/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	response.Body
	Data json.RawMessage `json:"data"`
}

func newRouter(h *Handler, actor *models.Actor) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, actor.ID, actor.Role, "")
		c.Next()
	})
	g := r.Group("/events")
	g.GET("", h.List)
	g.GET("/conflicts", h.CheckConflict)
	g.GET("/:id", h.GetByID)
	g.POST("", middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), h.Create)
	g.PATCH("/:id", middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), h.Update)
	g.PATCH("/:id/status", middleware.RequireRole(models.RoleAdmin), h.SetStatus)
	g.POST("/:id/cancel", middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), h.Cancel)
	g.POST("/:id/image", middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), h.UploadImage)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerCreateAndConflict(t *testing.T) {
	svc := NewService(storetest.New(), nil, nil)
	actor := organizer
	r := newRouter(NewHandler(svc, nil, nil), &actor)

	w, env := do(t, r, http.MethodPost, "/events", newInput("Robotics Expo", "2025-06-01", "Hall 1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created Created
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, models.EventStatusPending, created.Event.Status)

	w, env = do(t, r, http.MethodPost, "/events", newInput("Chess Open", "2025-06-01", "Hall 1"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", env.Code)
	assert.Contains(t, env.Error, "Robotics Expo")

	w, env = do(t, r, http.MethodGet, "/events/conflicts?date=2025-06-01&venue=Hall+1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.ConflictResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.HasConflict)
	assert.Equal(t, "Robotics Expo", res.ConflictingEventTitle)

	w, _ = do(t, r, http.MethodGet, "/events/conflicts?date=2025-06-01&venue=Hall+1&exclude_id="+created.Event.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerRejectsMalformedInput(t *testing.T) {
	svc := NewService(storetest.New(), nil, nil)
	actor := organizer
	r := newRouter(NewHandler(svc, nil, nil), &actor)

	w, _ := do(t, r, http.MethodPost, "/events", map[string]any{"title": "no date"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/events/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, r, http.MethodGet, "/events/conflicts?date=tomorrow&venue=Hall+1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", env.Code)

	w, _ = do(t, r, http.MethodGet, "/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, "/events/"+uuid.NewString()+"/image", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlerApprovalGate(t *testing.T) {
	mem := storetest.New()
	svc := NewService(mem, nil, nil)
	actor := organizer
	r := newRouter(NewHandler(svc, nil, nil), &actor)

	e := mustCreate(t, svc, newInput("Robotics Expo", "2025-06-01", "Hall 1"))
	path := "/events/" + e.ID.String() + "/status"

	w, _ := do(t, r, http.MethodPatch, path, StatusRequest{Status: models.EventStatusApproved})
	assert.Equal(t, http.StatusForbidden, w.Code, "organizers cannot review")

	actor = admin
	w, env := do(t, r, http.MethodPatch, path, StatusRequest{Status: models.EventStatusApproved})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "precondition_failed", env.Code)
	assert.Equal(t, ApprovalNeedsResources, env.Error)

	seedAllocation(t, mem, e.ID, 2)
	w, env = do(t, r, http.MethodPatch, path, StatusRequest{Status: models.EventStatusApproved})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved models.Event
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, models.EventStatusApproved, approved.Status)
}

func TestHandlerStudentsOnlySeeApprovedEvents(t *testing.T) {
	mem := storetest.New()
	svc := NewService(mem, nil, nil)
	pending := mustCreate(t, svc, newInput("Pending", "2025-06-01", "Hall 1"))
	approved := mustCreate(t, svc, newInput("Approved", "2025-06-02", "Hall 1"))
	seedAllocation(t, mem, approved.ID, 1)
	_, err := svc.SetStatus(context.Background(), admin, approved.ID, models.EventStatusApproved)
	require.NoError(t, err)

	student := models.Actor{ID: uuid.New(), Role: models.RoleStudent}
	r := newRouter(NewHandler(svc, nil, nil), &student)

	w, env := do(t, r, http.MethodGet, "/events?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Event
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Approved", list[0].Title)

	w, _ = do(t, r, http.MethodGet, "/events/"+pending.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, "/events", newInput("Sneaky", "2025-06-03", "Hall 1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlerListRejectsMalformedDates(t *testing.T) {
	svc := NewService(storetest.New(), nil, nil)
	actor := organizer
	r := newRouter(NewHandler(svc, nil, nil), &actor)

	for _, q := range []string{"date_from=15/06/2025", "date_to=tomorrow", "date_from=2025-06-10&date_to=2025-06-01"} {
		w, env := do(t, r, http.MethodGet, "/events?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "validation", env.Code, q)
	}

	w, _ := do(t, r, http.MethodGet, "/events?date_from=2025-06-01&date_to=2025-06-30", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerStoreUnavailable(t *testing.T) {
	mem := storetest.New()
	svc := NewService(mem, nil, nil)
	actor := organizer
	r := newRouter(NewHandler(svc, nil, nil), &actor)
	mem.FailWith(errUnavailable())

	w, env := do(t, r, http.MethodGet, "/events/conflicts?date=2025-06-01&venue=Hall+1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "store_unavailable", env.Code)
}
