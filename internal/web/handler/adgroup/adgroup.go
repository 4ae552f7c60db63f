// Package adgroup provides the API for managing AD group to group mappings.
package adgroup

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	adgroupctl "github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/controller/adgroup"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/handler"
)

const (
	// Path is the mapping collection, relative to the API group.
	Path = "/adgroup-mappings"

	// QueryResync requests a resync of the AD group members after a change.
	QueryResync = "resync"

	// ErrFailedLoadMappings indicates an unexpected error while listing mappings.
	ErrFailedLoadMappings = "failed to load mappings"
	// ErrFailedCreateMapping indicates the create operation failed.
	ErrFailedCreateMapping = "failed to create mapping"
	// ErrFailedDeleteMapping indicates the delete operation failed.
	ErrFailedDeleteMapping = "failed to delete mapping"
	// ErrFailedResync indicates the members could not be resynced.
	ErrFailedResync = "failed to resync members"
	// ErrMappingNotFound is returned when the mapping to delete does not exist.
	ErrMappingNotFound = "mapping not found"
	// ErrValidationPrefix prefixes validation error messages.
	ErrValidationPrefix = "validation failed: "
)

type mappingInput struct {
	Group   string `json:"group" validate:"required,min=1,max=150"`
	ADGroup string `json:"ad_group" validate:"required,min=1,max=200"`
}

type mappingOutput struct {
	ID          uint   `json:"id,omitempty"`
	Group       string `json:"group"`
	ADGroup     string `json:"ad_group"`
	DisplayName string `json:"display_name,omitempty"`
	Resynced    *int   `json:"resynced,omitempty"`
}

// Service manages AD group mappings.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
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
	s.validator = validator.New()

	router.Get(Path,
		auth.RequireAnyScope(auth.ScopeAdmin, auth.ScopeAdminGroupMappings),
		s.List,
	)
	router.Post(Path,
		auth.RequireAnyScope(auth.ScopeAdmin, auth.ScopeAdminGroupMappings),
		s.Create,
	)
	router.Delete(Path,
		auth.RequireAnyScope(auth.ScopeAdmin, auth.ScopeAdminGroupMappings),
		s.Delete,
	)
}

// List returns every mapping.
func (s *Service) List(c *fiber.Ctx) error {
	mappings, err := adgroupctl.ListMappings(s.db.WithContext(c.UserContext()))
	if err != nil {
		log.Error().Err(err).Msg(ErrFailedLoadMappings)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrFailedLoadMappings})
	}

	out := make([]mappingOutput, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, mappingOutput{
			ID:          m.ID,
			Group:       m.GroupName,
			ADGroup:     m.ADGroupName,
			DisplayName: m.DisplayName,
		})
	}

	return c.JSON(out)
}

// Create maps an AD group onto a local group.
func (s *Service) Create(c *fiber.Ctx) error {
	input, err := s.parse(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	db := s.db.WithContext(c.UserContext())

	mapping, err := adgroupctl.CreateMapping(db, input.Group, input.ADGroup)
	if err != nil {
		log.Error().Err(err).Str("group", input.Group).Str("ad_group", input.ADGroup).Msg(ErrFailedCreateMapping)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrFailedCreateMapping})
	}

	out := mappingOutput{ID: mapping.ID, Group: input.Group, ADGroup: input.ADGroup}

	if c.QueryBool(QueryResync) {
		n, err := adgroupctl.ResyncMembers(db, input.ADGroup)
		if err != nil {
			log.Error().Err(err).Str("ad_group", input.ADGroup).Msg(ErrFailedResync)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrFailedResync})
		}

		out.Resynced = &n
	}

	log.Info().Str("group", input.Group).Str("ad_group", input.ADGroup).
		Str("by", auth.CurrentUser(c).Username).Msg("ad group mapping created")

	return c.Status(fiber.StatusCreated).JSON(out)
}

// Delete removes a mapping.
func (s *Service) Delete(c *fiber.Ctx) error {
	input, err := s.parse(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	db := s.db.WithContext(c.UserContext())

	if err := adgroupctl.DeleteMapping(db, input.Group, input.ADGroup); err != nil {
		if errors.Is(err, adgroupctl.ErrMappingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrMappingNotFound})
		}

		log.Error().Err(err).Str("group", input.Group).Str("ad_group", input.ADGroup).Msg(ErrFailedDeleteMapping)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrFailedDeleteMapping})
	}

	if c.QueryBool(QueryResync) {
		if _, err := adgroupctl.ResyncMembers(db, input.ADGroup); err != nil {
			log.Error().Err(err).Str("ad_group", input.ADGroup).Msg(ErrFailedResync)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrFailedResync})
		}
	}

	log.Info().Str("group", input.Group).Str("ad_group", input.ADGroup).
		Str("by", auth.CurrentUser(c).Username).Msg("ad group mapping deleted")

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) parse(c *fiber.Ctx) (*mappingInput, error) {
	input := new(mappingInput)
	if err := c.BodyParser(input); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(input); err != nil {
		return nil, errors.New(ErrValidationPrefix + err.Error()) //nolint:goerr113
	}

	return input, nil
}
