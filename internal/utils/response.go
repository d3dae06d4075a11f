package utils

import "github.com/gofiber/fiber/v2"

func JSONError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func JSONValidationError(c *fiber.Ctx, details []ValidationError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":   "validation failed",
		"details": details,
	})
}
