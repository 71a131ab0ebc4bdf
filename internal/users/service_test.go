package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/utils"
)

type fakeRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeRepo() *fakeRepo { return &fakeRepo{users: map[uuid.UUID]*models.User{}} }

func (f *fakeRepo) List(_ context.Context, role models.Role) ([]models.UserPublic, error) {
	out := []models.UserPublic{}
	for _, u := range f.users {
		if role == "" || u.Role == role {
			out = append(out, u.ToPublic())
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, email, hash, name string, role models.Role, p *auth.CreateUserParams) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, apperr.Conflict("email %s is already registered", email)
		}
	}
	u := &models.User{ID: uuid.New(), Email: email, Password: hash, FullName: name, Role: role, Department: p.Department, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) SetRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return apperr.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

type roleLog struct{ got []models.Role }

func (r *roleLog) RoleAssigned(_ context.Context, u *models.User) { r.got = append(r.got, u.Role) }

var admin = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

func TestCreateUser(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateInput{Email: " Prof@Campus.edu ", FullName: "Prof X", Role: models.RoleOrganizer})
	require.NoError(t, err)
	assert.Equal(t, "prof@campus.edu", out.User.Email)
	assert.Equal(t, models.RoleOrganizer, out.User.Role)
	require.NotEmpty(t, out.TemporaryPassword)
	stored := repo.users[out.User.ID]
	assert.True(t, utils.CheckPassword(out.TemporaryPassword, stored.Password))

	out, err = svc.Create(ctx, CreateInput{Email: "s@campus.edu", Password: "correct horse", FullName: "S", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Empty(t, out.TemporaryPassword)

	_, err = svc.Create(ctx, CreateInput{Email: "s@campus.edu", Password: "correct horse", FullName: "S", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.Create(ctx, CreateInput{Email: "x@campus.edu", FullName: "X", Role: "dean"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Create(ctx, CreateInput{Email: "y@campus.edu", Password: "short", FullName: "Y", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSetRoleNotifies(t *testing.T) {
	repo := newFakeRepo()
	log := &roleLog{}
	svc := NewService(repo, log, nil)
	ctx := context.Background()
	out, err := svc.Create(ctx, CreateInput{Email: "a@campus.edu", FullName: "A", Role: models.RoleStudent})
	require.NoError(t, err)

	u, err := svc.SetRole(ctx, admin, out.User.ID, models.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrganizer, u.Role)
	assert.Equal(t, []models.Role{models.RoleOrganizer}, log.got)

	_, err = svc.SetRole(ctx, admin, admin.ID, models.RoleStudent)
	assert.True(t, errors.Is(err, apperr.ErrPreconditionFailed))

	_, err = svc.SetRole(ctx, admin, uuid.New(), models.RoleStudent)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Len(t, log.got, 1)
}

func TestDeleteUser(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	out, err := svc.Create(ctx, CreateInput{Email: "a@campus.edu", FullName: "A", Role: models.RoleStudent})
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Delete(ctx, admin, admin.ID), apperr.ErrPreconditionFailed))
	require.NoError(t, svc.Delete(ctx, admin, out.User.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, admin, out.User.ID), apperr.ErrNotFound))
}

func TestHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeRepo()
	h := NewHandler(NewService(repo, nil, nil))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, admin.ID, models.RoleAdmin, "")
		c.Next()
	})
	r.GET("/users", h.List)
	r.POST("/users", h.Create)
	r.PATCH("/users/:id/role", h.SetRole)
	r.DELETE("/users/:id", h.Delete)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPost, "/users", `{"email":"o@campus.edu","full_name":"O","role":"organizer"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data Created `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.User.ID.String()

	w = send(http.MethodGet, "/users?role=organizer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "o@campus.edu")

	w = send(http.MethodGet, "/users?role=dean", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(http.MethodPatch, "/users/"+id+"/role", `{"role":"admin"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(http.MethodDelete, "/users/"+admin.ID.String(), "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = send(http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
