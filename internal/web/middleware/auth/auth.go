package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	oidcauth "github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
)

// Authenticator authenticates an Authorization header value.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*oidcauth.Result, error)
	AuthenticateHeader() string
}

// New returns middleware that authenticates bearer tokens.
//
// A successful authentication stores the user, authorization and token in
// fiber.Locals. Requests without a bearer credential pass through
// unauthenticated, a rejected credential ends the request with 401.
func New(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))

		var authErr *oidcauth.AuthError

		switch {
		case errors.As(err, &authErr):
			c.Set(fiber.HeaderWWWAuthenticate, a.AuthenticateHeader())

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": authErr.Error()})
		case err != nil:
			log.Error().Err(err).Str("path", c.Path()).Msg("bearer authentication failed")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		case res == nil:
			return c.Next()
		}

		c.Locals(oidcauth.LocalsUser, res.User)
		c.Locals(oidcauth.LocalsAuthorization, res.Authorization)
		c.Locals(oidcauth.LocalsToken, res.Token)

		return c.Next()
	}
}

// Require ends requests that carry no authenticated user with 401.
func Require(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if oidcauth.CurrentUser(c) == nil {
			c.Set(fiber.HeaderWWWAuthenticate, a.AuthenticateHeader())

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}

		return c.Next()
	}
}

// Principal returns the username of the authenticated user for access logs.
func Principal(c *fiber.Ctx) string {
	if user := oidcauth.CurrentUser(c); user != nil {
		return user.Username
	}

	return ""
}
