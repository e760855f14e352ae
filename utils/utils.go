package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse writes the fixed error envelope every endpoint uses:
// {status_code, error: <category>, message: <human string>}.
func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status_code": status,
		"error":       statusCategory(status),
		"message":     message,
	})
}

func statusCategory(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusConflict:
		return "Conflict"
	case fiber.StatusTooManyRequests:
		return "Too Many Requests"
	default:
		return "Internal Server Error"
	}
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, resourceID, path string) string {
	return "rl:" + strconv.FormatUint(uint64(userID), 10) + ":" + resourceID + ":" + path
}
