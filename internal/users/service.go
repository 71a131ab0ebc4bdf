// Package users is the admin side of account management: listing, creating
// accounts with any role, role changes and deletion.
package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/utils"
)

// Repository is the subset of auth.Repository the admin service needs.
type Repository interface {
	List(ctx context.Context, role models.Role) ([]models.UserPublic, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role, profile *auth.CreateUserParams) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier is told when a user's role changes.
type Notifier interface {
	RoleAssigned(ctx context.Context, u *models.User)
}

// CreateInput is the body for POST /users. A blank password is replaced by a
// generated one that is returned once.
type CreateInput struct {
	Email      string      `json:"email" binding:"required,email"`
	Password   string      `json:"password"`
	FullName   string      `json:"full_name" binding:"required"`
	Role       models.Role `json:"role" binding:"required"`
	Department string      `json:"department"`
	StudentID  string      `json:"student_id"`
	Phone      string      `json:"phone"`
}

// Created is a new account plus the generated password, if any.
type Created struct {
	User              models.UserPublic `json:"user"`
	TemporaryPassword string            `json:"temporary_password,omitempty"`
}

// Service manages accounts on behalf of admins.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a user admin service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// List returns every user, optionally filtered by role.
func (s *Service) List(ctx context.Context, role models.Role) ([]models.UserPublic, error) {
	if role != "" && !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	return s.repo.List(ctx, role)
}

// Create adds an account with any role.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	out := &Created{}
	password := in.Password
	switch {
	case password == "":
		p, err := utils.RandomPassword(12)
		if err != nil {
			return nil, err
		}
		password, out.TemporaryPassword = p, p
	case len(password) < 8:
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	profile := &auth.CreateUserParams{Department: in.Department, StudentID: in.StudentID, Phone: in.Phone}
	u, err := s.repo.Create(ctx, strings.ToLower(strings.TrimSpace(in.Email)), hash, strings.TrimSpace(in.FullName), in.Role, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	out.User = u.ToPublic()
	return out, nil
}

// SetRole changes another user's role and notifies them.
func (s *Service) SetRole(ctx context.Context, actor models.Actor, id uuid.UUID, role models.Role) (*models.UserPublic, error) {
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if id == actor.ID {
		return nil, apperr.PreconditionFailed("you cannot change your own role")
	}
	u, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed", zap.String("user_id", id.String()), zap.String("role", string(role)), zap.String("by", actor.ID.String()))
	if s.notifier != nil {
		s.notifier.RoleAssigned(ctx, u)
	}
	pub := u.ToPublic()
	return &pub, nil
}

// Delete removes another user's account.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if id == actor.ID {
		return apperr.PreconditionFailed("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()), zap.String("by", actor.ID.String()))
	return nil
}
