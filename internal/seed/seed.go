// Package seed loads initial users and resource types from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/unievents/backend/internal/apperr"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/resources"
	"github.com/unievents/backend/internal/users"
)

// File is the seed document.
type File struct {
	Users         []User         `yaml:"users"`
	ResourceTypes []ResourceType `yaml:"resource_types"`
}

// User is a seeded account. An empty password gets a generated one.
type User struct {
	Email      string      `yaml:"email"`
	FullName   string      `yaml:"full_name"`
	Password   string      `yaml:"password,omitempty"`
	Role       models.Role `yaml:"role"`
	Department string      `yaml:"department,omitempty"`
}

// ResourceType is a seeded inventory entry.
type ResourceType struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description,omitempty"`
	TotalQuantity int    `yaml:"total_quantity"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document, rejecting unknown fields.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := map[string]bool{}
	for i, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return fmt.Errorf("users[%d]: email is required", i)
		}
		if seen[email] {
			return fmt.Errorf("users[%d]: duplicate email %s", i, email)
		}
		seen[email] = true
		if u.Role != "" && !u.Role.Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
	}
	names := map[string]bool{}
	for i, rt := range f.ResourceTypes {
		if strings.TrimSpace(rt.Name) == "" {
			return fmt.Errorf("resource_types[%d]: name is required", i)
		}
		if names[rt.Name] {
			return fmt.Errorf("resource_types[%d]: duplicate name %s", i, rt.Name)
		}
		names[rt.Name] = true
		if rt.TotalQuantity < 0 {
			return fmt.Errorf("resource_types[%d]: total_quantity must not be negative", i)
		}
	}
	return nil
}

// Resources creates resource types.
type Resources interface {
	CreateType(ctx context.Context, in resources.TypeInput) (*models.ResourceType, error)
}

// Users creates accounts.
type Users interface {
	Create(ctx context.Context, in users.CreateInput) (*users.Created, error)
}

// Result counts what Apply did. Generated maps new accounts to their temporary passwords.
type Result struct {
	UsersCreated int
	UsersSkipped int
	TypesCreated int
	TypesSkipped int
	Generated    map[string]string
}

// Apply creates everything in f. Entries that already exist are skipped, so
// running the same file twice is harmless.
func Apply(ctx context.Context, f *File, us Users, res Resources, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := &Result{Generated: map[string]string{}}
	for _, u := range f.Users {
		role := u.Role
		if role == "" {
			role = models.RoleStudent
		}
		created, err := us.Create(ctx, users.CreateInput{
			Email: u.Email, Password: u.Password, FullName: u.FullName, Role: role, Department: u.Department,
		})
		if errors.Is(err, apperr.ErrConflict) {
			out.UsersSkipped++
			logger.Info("seed user exists", zap.String("email", u.Email))
			continue
		}
		if err != nil {
			return out, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		out.UsersCreated++
		if created.TemporaryPassword != "" {
			out.Generated[created.User.Email] = created.TemporaryPassword
		}
	}
	for _, rt := range f.ResourceTypes {
		_, err := res.CreateType(ctx, resources.TypeInput{Name: rt.Name, Description: rt.Description, TotalQuantity: rt.TotalQuantity})
		if errors.Is(err, apperr.ErrConflict) {
			out.TypesSkipped++
			logger.Info("seed resource type exists", zap.String("name", rt.Name))
			continue
		}
		if err != nil {
			return out, fmt.Errorf("seed resource type %s: %w", rt.Name, err)
		}
		out.TypesCreated++
	}
	return out, nil
}
