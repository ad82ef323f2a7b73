package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/rockgate/internal/logger"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// BadRequest returns a 400 Bad Request error response
func BadRequest(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusBadRequest, "Bad Request", message)
}

// NotFound returns a 404 Not Found error response
func NotFound(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusNotFound, "Not Found", message)
}

// Conflict returns a 409 Conflict error response
func Conflict(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusConflict, "Conflict", message)
}

// ServiceUnavailable returns a 503 Service Unavailable error response
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusServiceUnavailable, "Service Unavailable", message)
}

// InternalServerError returns a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusInternalServerError, "Internal Server Error", message)
}

// errorResponse creates a structured error response
func errorResponse(c *fiber.Ctx, status int, error string, message string) error {
	response := ErrorResponse{
		Error:     error,
		Message:   message,
		RequestID: GetRequestID(c),
		Timestamp: time.Now(),
		Path:      c.Path(),
	}

	log := GetLogger(c)
	log.Error("HTTP error response",
		logger.String("error", error),
		logger.String("message", message),
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status),
	)

	return c.Status(status).JSON(response)
}
