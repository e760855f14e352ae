package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"crewlog/config"
	"crewlog/models"
	"crewlog/utils"
)

// Protected rejects requests without a valid bearer token and loads the
// authenticated user into c.Locals("user"). Role sources can change between
// requests, so nothing beyond identity is cached here.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format")
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required")
			}
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		var user models.User
		if err := config.DB.First(&user, claims.UserID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found")
		}

		if !user.IsActive {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active")
		}

		// Verify token version
		if claims.TokenVersion != user.TokenVersion {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token version")
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)

		return c.Next()
	}
}

// AdminOnly must run after Protected; it gates global-access administration.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals("user").(*models.User)
		if !user.IsAdmin {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Administrator access required")
		}
		return c.Next()
	}
}
