package middleware

import (
	"trivia-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// LocalSessionID is the fiber.Ctx locals key holding a validated session ID
const LocalSessionID = "validated_session_id"

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateSessionID validates the :id path parameter
func (vm *ValidationMiddleware) ValidateSessionID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		if errors := vm.validator.ValidateSessionID(id); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler
		}

		// Store validated value in context for handlers to use
		c.Locals(LocalSessionID, id)
		return c.Next()
	}
}

// SessionID returns the ID stored by ValidateSessionID, falling back to the path parameter
func SessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalSessionID).(string); ok && id != "" {
		return id
	}
	return c.Params("id")
}
