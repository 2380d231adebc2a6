package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	customerdomain "github.com/mealora/mealora/internal/customer/domain"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
)

const (
	contextUserIDKey = "user_id"
	contextRoleKey   = "user_role"
)

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired validates the bearer token and stashes the caller's
// identity on the gin context. Tokens are HS256, claims {sub, role}.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var claims tokenClaims
		parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrUnauthorized
			}
			return []byte(s.cfg.AuthJWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(claims.Subject)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, id)
		c.Set(contextRoleKey, customerdomain.Role(claims.Role))
		c.Next()
	}
}

func RequireRole(roles ...customerdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := currentRole(c)
		for _, want := range roles {
			if role == want {
				c.Next()
				return
			}
		}
		// Superadmin passes every role gate.
		if role == customerdomain.RoleSuperadmin {
			c.Next()
			return
		}
		AbortWithError(c, ErrForbidden)
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentRole(c).IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

func currentRole(c *gin.Context) customerdomain.Role {
	if v, ok := c.Get(contextRoleKey); ok {
		if role, ok := v.(customerdomain.Role); ok {
			return role
		}
	}
	return customerdomain.RoleUser
}

func currentActor(c *gin.Context) subscriptiondomain.Actor {
	return subscriptiondomain.Actor{
		CustomerID: currentUserID(c),
		Admin:      currentRole(c).IsAdmin(),
	}
}
