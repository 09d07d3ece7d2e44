package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/parkpass/internal/cart"
	"github.com/example/parkpass/internal/config"
	"github.com/example/parkpass/internal/utils"
)

const sessionContextKey = "checkoutSession"

// SessionMiddleware validates the checkout-session JWT and loads the
// live session into context. Expired or unknown sessions are rejected;
// the SPA must mint a fresh session and rebuild the flow.
func SessionMiddleware(cfg *config.Config, registry *cart.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, scope, err := parseBearer(c, cfg.JWTSecret)
		if err != nil {
			return err
		}
		if scope != utils.ScopeCheckout {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token scope")
		}

		session, ok := registry.Get(sessionID)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "checkout session expired")
		}

		c.Locals(sessionContextKey, session)
		return c.Next()
	}
}

// OpsMiddleware validates the back-office token.
func OpsMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := parseBearer(c, cfg.JWTSecret)
		if err != nil {
			return err
		}
		if scope != utils.ScopeOps {
			return fiber.NewError(fiber.StatusForbidden, "ops access required")
		}
		return c.Next()
	}
}

// GetSession extracts the checkout session from context.
func GetSession(c *fiber.Ctx) (*cart.Session, bool) {
	value := c.Locals(sessionContextKey)
	if value == nil {
		return nil, false
	}

	if session, ok := value.(*cart.Session); ok {
		return session, true
	}
	return nil, false
}

func parseBearer(c *fiber.Ctx, secret string) (uuid.UUID, string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	parsedID, parsedScope, err := utils.ParseToken(secret, parts[1])
	if err != nil {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return parsedID, parsedScope, nil
}
