package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		SetActor(c, claims.UserID, models.Role(claims.Role), claims.Email)
		c.Next()
	}
}

// SetActor stores the caller identity in the gin context.
func SetActor(c *gin.Context, userID uuid.UUID, role models.Role, email string) {
	c.Set(ContextUserID, userID)
	c.Set(ContextUserRole, string(role))
	c.Set(ContextUserEmail, email)
}

// CurrentActor returns the caller set by JWT. Only valid behind the JWT middleware.
func CurrentActor(c *gin.Context) models.Actor {
	return models.Actor{
		ID:   c.MustGet(ContextUserID).(uuid.UUID),
		Role: models.Role(c.GetString(ContextUserRole)),
	}
}
