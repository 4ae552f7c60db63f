package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

const (
	// LocalsUser is the fiber.Locals key of the authenticated *models.User.
	LocalsUser = "CurrentUser"
	// LocalsAuthorization is the fiber.Locals key of the request's *Authorization.
	LocalsAuthorization = "Authorization"
	// LocalsToken is the fiber.Locals key of the *VerifiedToken.
	LocalsToken = "Token"
)

// CurrentUser returns the authenticated user of the request, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(LocalsUser).(*models.User)
	return user
}

// CurrentAuthorization returns the authorization of the request, or nil.
func CurrentAuthorization(c *fiber.Ctx) *Authorization {
	authz, _ := c.Locals(LocalsAuthorization).(*Authorization)
	return authz
}

// RequireScope creates Fiber middleware that requires an API scope equal to
// prefix or below it.
func RequireScope(prefix string) fiber.Handler {
	return RequireAnyScope(prefix)
}

// RequireAnyScope creates Fiber middleware that requires an API scope below
// at least one of the prefixes.
func RequireAnyScope(prefixes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		authz := CurrentAuthorization(c)

		if user == nil || authz == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		if !authz.HasAnyAPIScopeWithPrefix(prefixes...) {
			log.Warn().Uint64("user_id", user.ID).Strs("scopes", prefixes).
				Msg("User lacks required API scope")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}

		return c.Next()
	}
}

// RequireADGroups creates Fiber middleware that requires membership of all the AD groups.
func RequireADGroups(groups ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		authz := CurrentAuthorization(c)

		if user == nil || authz == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		if !authz.HasADGroups(groups...) {
			log.Warn().Uint64("user_id", user.ID).Strs("ad_groups", groups).
				Msg("User lacks required AD groups")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}

		return c.Next()
	}
}
