// Package middleware provides the gin middleware shared by every route group.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/platform/auth"
)

const (
	contextUserID = "user_id"
	contextRole   = "user_role"
)

// AuthMiddleware validates the bearer access token and stores the caller on the context.
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortAuth(c, "MISSING_AUTH_HEADER", "authorization header is required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortAuth(c, "INVALID_AUTH_FORMAT", "authorization header must be: Bearer <token>")
			return
		}

		claims, err := jwtManager.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortAuth(c, "TOKEN_EXPIRED", "access token has expired")
				return
			}
			abortAuth(c, "INVALID_TOKEN", "invalid access token")
			return
		}

		// legacy tokens may carry a synonym such as "cleaner"
		role, err := identity.ParseRole(claims.Role)
		if err != nil {
			abortAuth(c, "INVALID_TOKEN", "invalid access token")
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextRole, role.String())
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller's role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			abortAuth(c, "UNAUTHENTICATED", "authentication required")
			return
		}
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_PERMISSIONS",
					"message": "you do not have permission to access this resource",
				},
			})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user's ID.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// GetUserRole returns the authenticated user's canonical role.
func GetUserRole(c *gin.Context) (string, bool) {
	v, ok := c.Get(contextRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok && role != ""
}

func abortAuth(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
