package middleware

import (
	"errors"

	"github.com/amirasaad/ledger/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// UserKey is the fiber locals key under which the verified *jwt.Token is stored.
const UserKey = "user"

// Protected requires a valid HS256 bearer token signed with cfg.Secret.
func Protected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.Secret)},
		ContextKey:   UserKey,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	c.Set(fiber.HeaderContentType, "application/problem+json")
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"type": "about:blank", "title": "Missing or malformed JWT", "status": fiber.StatusBadRequest})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"type": "about:blank", "title": "Invalid or expired JWT", "status": fiber.StatusUnauthorized})
}
