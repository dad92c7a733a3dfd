package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
	"github.com/noah-isme/leadflow-api/pkg/logger"
	"github.com/noah-isme/leadflow-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator resolves a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.ActorKey, claims.Username)
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by JWT.
func CurrentUser(c *gin.Context) (models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.User{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil {
		return models.User{}, false
	}
	return models.User{Username: claims.Username, Role: claims.Role}, true
}
