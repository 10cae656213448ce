package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"obit-optout.backend/pkg/jwt"
	"obit-optout.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// OperatorIDKey is the context key for the operator ID
	OperatorIDKey = "operatorId"
	// OperatorEmailKey is the context key for the operator email
	OperatorEmailKey = "operatorEmail"
	// OperatorRoleKey is the context key for the operator role
	OperatorRoleKey = "operatorRole"
)

// OperatorAuthMiddleware guards the admin gateway with operator bearer
// tokens.
func OperatorAuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization format. Use: Bearer <token>",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			logger.Warn(c.Request.Context(), "operator auth rejected",
				zap.String("path", c.Request.URL.Path), zap.Error(err))
			if errors.Is(err, jwt.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Token has expired",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set(OperatorIDKey, claims.OperatorID)
		c.Set(OperatorEmailKey, claims.Email)
		c.Set(OperatorRoleKey, claims.Role)

		c.Next()
	}
}

// GetOperatorID gets the operator ID from context
func GetOperatorID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(OperatorIDKey)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

// GetOperatorEmail gets the operator email from context
func GetOperatorEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(OperatorEmailKey)
	if !exists {
		return "", false
	}
	return email.(string), true
}

// GetOperatorRole gets the operator role from context
func GetOperatorRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(OperatorRoleKey)
	if !exists {
		return "", false
	}
	return role.(string), true
}
