// Package me provides the endpoint describing the authenticated caller.
package me

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/identity"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/handler"
)

// Path is relative to the API group.
const Path = "/me"

// Response is the JSON body of GET /me.
type Response struct {
	UUID           string   `json:"uuid"`
	Username       string   `json:"username"`
	DisplayName    string   `json:"display_name"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	DepartmentName string   `json:"department_name"`
	Issuer         string   `json:"issuer,omitempty"`
	Scopes         []string `json:"scopes"`
	ScopesKnown    bool     `json:"scopes_known"`
	ADGroups       []string `json:"ad_groups"`
	Groups         []string `json:"groups"`
}

// Service serves the caller's own principal.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes on the authenticated API router.
func (s *Service) Init(router fiber.Router, cfg *config.Config, db *gorm.DB) {
	if router == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	router.Get(Path, s.Get)
}

// Get returns the authenticated user with its scopes and groups.
func (s *Service) Get(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	resp := Response{
		UUID:           user.UUID.String(),
		Username:       user.PublicUsername(identity.UUIDToUsername),
		DisplayName:    user.DisplayName(),
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Email:          user.Email,
		DepartmentName: user.DepartmentName,
		Scopes:         []string{},
		ADGroups:       []string{},
		Groups:         []string{},
	}

	if authz := auth.CurrentAuthorization(c); authz != nil && authz.ScopesKnown() {
		resp.Scopes = authz.Scopes()
		resp.ScopesKnown = true
	}

	if token, ok := c.Locals(auth.LocalsToken).(*auth.VerifiedToken); ok {
		resp.Issuer = token.Issuer
	}

	if err := s.db.WithContext(c.UserContext()).Table("ad_groups").
		Joins("JOIN user_ad_groups ON user_ad_groups.ad_group_id = ad_groups.id").
		Where("user_ad_groups.user_id = ?", user.ID).
		Order("ad_groups.name").
		Pluck("ad_groups.name", &resp.ADGroups).Error; err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to load ad groups")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	if err := s.db.WithContext(c.UserContext()).Model(&models.Group{}).
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", user.ID).
		Order("groups.name").
		Pluck("groups.name", &resp.Groups).Error; err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to load groups")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}
