package middleware

import (
	"net/http"
	"strings"

	"automation-service/pkg/jwtutil"
	"automation-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token and extracts tenant information
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// Tenant scoping is mandatory: every workflow read/write is keyed by
		// tenant, so a token without one is unusable here.
		if claims.TenantID == "" {
			log.Warn("JWT token does not contain tenant_id")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required in the token"})
		}

		// Store user info in context for later use
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("tenant_id", claims.TenantID)
		c.Set("tenant_name", claims.TenantName)
		c.Set("user_role", claims.Role)

		return next(c)
	}
}

// GetTenantIDFromContext retrieves the tenant ID from the context
func GetTenantIDFromContext(c echo.Context) (string, bool) {
	tenantID, ok := c.Get("tenant_id").(string)
	return tenantID, ok && tenantID != ""
}

// GetUserIDFromContext retrieves the user ID from the context
func GetUserIDFromContext(c echo.Context) (string, bool) {
	userID, ok := c.Get("user_id").(string)
	return userID, ok && userID != ""
}
